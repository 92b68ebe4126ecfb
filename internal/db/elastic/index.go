package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/gradsearch/internal/db"
)

// CreateIndex creates an index whose vector field is a cosine dense_vector.
// TAG fields map to keyword; all other document fields use dynamic mapping.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(buildMapping(def))
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err := s.es.Indices.Create(
		strings.ToLower(def.Name),
		s.es.Indices.Create.WithBody(bytes.NewReader(body)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpESCreate, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError(db.OpESCreate, res)
	}
	return nil
}

// DropIndex deletes an index and its documents.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	res, err := s.es.Indices.Delete(
		[]string{strings.ToLower(name)},
		s.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpESDelete, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		err := responseError(db.OpESDelete, res)
		if isNotFound(err) {
			return db.ErrIndexNotFound
		}
		return err
	}
	return nil
}

// IndexExists issues HEAD /<index>.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.es.Indices.Exists(
		[]string{strings.ToLower(name)},
		s.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, &db.Error{Op: db.OpESExists, Err: err}
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &db.Error{Op: db.OpESExists, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
}

// CountDocuments returns the document count of an index.
func (s *Store) CountDocuments(ctx context.Context, name string) (int, error) {
	res, err := s.es.Count(
		s.es.Count.WithIndex(strings.ToLower(name)),
		s.es.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, &db.Error{Op: db.OpESCount, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return 0, responseError(db.OpESCount, res)
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return out.Count, nil
}

func buildMapping(def *db.IndexDefinition) map[string]any {
	props := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		switch f.Type {
		case db.IndexFieldTag:
			props[f.Name] = map[string]any{"type": "keyword"}
		case db.IndexFieldVector:
			props[f.Name] = map[string]any{
				"type":       "dense_vector",
				"dims":       f.VectorDim,
				"index":      true,
				"similarity": esSimilarity(f.VectorDistance),
			}
		}
	}
	return map[string]any{
		"mappings": map[string]any{"properties": props},
	}
}

func esSimilarity(d db.DistanceMetric) string {
	switch d {
	case db.DistanceL2:
		return "l2_norm"
	case db.DistanceIP:
		return "dot_product"
	default:
		return "cosine"
	}
}
