package result

import "sort"

// Result is a single ranked hit. It carries only whitelisted metadata, never the vector.
type Result struct {
	id     string
	score  float64
	fields map[string]string
}

// New creates a search result.
func New(id string, score float64, fields map[string]string) Result {
	return Result{id: id, score: score, fields: fields}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.id }

// Score returns the similarity score (cosine + 1.0, in [0, 2]).
func (r *Result) Score() float64 { return r.score }

// Fields returns the projected metadata fields.
func (r *Result) Fields() map[string]string { return r.fields }

// Field returns one projected field or "".
func (r *Result) Field(name string) string { return r.fields[name] }

// SortByScore orders results by descending score. Equal scores keep their order.
func SortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
}
