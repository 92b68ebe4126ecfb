package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/gradsearch/internal/db"
)

// scoreScript is cosine similarity shifted by +1.0, matching similarity.Score.
const scoreScript = "cosineSimilarity(params.query_vector, '%s') + 1.0"

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ScoreSearch ranks every document with a script_score query over match_all.
func (s *Store) ScoreSearch(ctx context.Context, q *db.ScoreQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildScoreBody(q))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithIndex(strings.ToLower(q.Index)),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpESSearch, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError(db.OpESSearch, res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	entries := make([]db.SearchEntry, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		fields := make(map[string]string, len(h.Source))
		for k, v := range h.Source {
			if k == q.VectorField {
				continue
			}
			fields[k] = stringify(v)
		}
		entries = append(entries, db.SearchEntry{Key: h.ID, Score: h.Score, Fields: fields})
	}

	return &db.SearchResult{Total: sr.Hits.Total.Value, Entries: entries}, nil
}

func buildScoreBody(q *db.ScoreQuery) map[string]any {
	body := map[string]any{
		"size": q.Size,
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": fmt.Sprintf(scoreScript, q.VectorField),
					"params": map[string]any{"query_vector": q.Vector},
				},
			},
		},
	}
	if len(q.ReturnFields) > 0 {
		body["_source"] = map[string]any{"includes": q.ReturnFields}
	} else {
		body["_source"] = map[string]any{"excludes": []string{q.VectorField}}
	}
	return body
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
