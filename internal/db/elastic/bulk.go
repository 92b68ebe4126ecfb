package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/gradsearch/internal/db"
)

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkIndex writes documents through the _bulk API, one index action per document.
func (s *Store) BulkIndex(ctx context.Context, index, vectorField string, docs []db.Doc) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if index == "" || vectorField == "" {
		return 0, fmt.Errorf("index and vector field are required: %w", db.ErrInvalidQuery)
	}
	index = strings.ToLower(index)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			return 0, fmt.Errorf("document [%d] has no id: %w", i, db.ErrInvalidQuery)
		}
		var action bulkAction
		action.Index.Index = index
		action.Index.ID = d.ID
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("encode action: %w", err)
		}

		source := make(map[string]any, len(d.Fields)+1)
		for k, v := range d.Fields {
			source[k] = v
		}
		source[vectorField] = d.Vector
		if err := enc.Encode(source); err != nil {
			return 0, fmt.Errorf("encode document %s: %w", d.ID, err)
		}
	}

	opts := []func(*esapi.BulkRequest){
		s.es.Bulk.WithIndex(index),
		s.es.Bulk.WithContext(ctx),
	}
	if s.refresh {
		opts = append(opts, s.es.Bulk.WithRefresh("true"))
	}

	res, err := s.es.Bulk(bytes.NewReader(buf.Bytes()), opts...)
	if err != nil {
		return 0, &db.Error{Op: db.OpESBulk, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return 0, responseError(db.OpESBulk, res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	accepted := 0
	var firstErr error
	for _, item := range br.Items {
		for _, r := range item {
			if r.Status >= 200 && r.Status < 300 {
				accepted++
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("document %s: status %d: %s: %s", r.ID, r.Status, r.Error.Type, r.Error.Reason)
			}
		}
	}
	if firstErr != nil {
		return accepted, &db.Error{Op: db.OpESBulk, Err: firstErr}
	}
	return accepted, nil
}
