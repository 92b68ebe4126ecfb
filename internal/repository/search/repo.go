package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	ScoreSearch(ctx context.Context, q *db.ScoreQuery) (*db.SearchResult, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Score ranks every document of index against vector by cosine + 1.0 and
// returns the top hits projected to fields, plus the number of scored documents.
func (r *Repo) Score(
	ctx context.Context, index string, vector []float32, topK int, fields []string,
) ([]result.Result, int, error) {
	q := &db.ScoreQuery{
		Index:        index,
		VectorField:  domain.VectorField,
		Vector:       vector,
		Function:     db.CosinePlusOne,
		Size:         topK,
		ReturnFields: fields,
	}

	sr, err := r.store.ScoreSearch(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("score search %s: %w", index, err)
	}
	return parseResults(sr, index, fields), sr.Total, nil
}

// parseResults converts db.SearchResult into []result.Result.
// Key-value drivers return prefixed keys; the prefix is stripped to get the document ID.
func parseResults(sr *db.SearchResult, index string, fields []string) []result.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return []result.Result{}
	}

	prefix := db.DocKeyPrefix(index)
	results := make([]result.Result, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)
		results = append(results, result.New(id, entry.Score, project(entry.Fields, fields)))
	}
	return results
}

// project keeps whitelisted fields only. Missing fields are returned as "".
func project(src map[string]string, fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if f == domain.VectorField {
			continue
		}
		out[f] = src[f]
	}
	return out
}
