package db

import "fmt"

// ScoreFunction names the scoring expression a driver must apply.
type ScoreFunction string

// CosinePlusOne scores documents by cosine similarity shifted by +1.0,
// so every score lies in [0, 2] and stays non-negative.
const CosinePlusOne ScoreFunction = "cosine_plus_one"

// ScoreQuery ranks all documents of an index against a query vector.
// Drivers encode it in their native query language.
type ScoreQuery struct {
	Index        string
	VectorField  string
	Vector       []float32
	Function     ScoreFunction
	Size         int
	ReturnFields []string
}

// Validate checks the query before it reaches a driver.
func (q *ScoreQuery) Validate() error {
	switch {
	case q.Index == "":
		return fmt.Errorf("index name is required: %w", ErrInvalidQuery)
	case q.VectorField == "":
		return fmt.Errorf("vector field is required: %w", ErrInvalidQuery)
	case len(q.Vector) == 0:
		return fmt.Errorf("vector is required: %w", ErrInvalidQuery)
	case q.Size <= 0:
		return fmt.Errorf("size must be positive: %w", ErrInvalidQuery)
	case q.Function != CosinePlusOne:
		return fmt.Errorf("unsupported score function %q: %w", q.Function, ErrInvalidQuery)
	}
	return nil
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
