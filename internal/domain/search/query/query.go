package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

// MaxTopK caps the number of results one query may request.
const MaxTopK = 100

// Query is a similarity query value object.
type Query struct {
	text   string
	topK   int
	fields []string
}

// New validates and creates a Query. A blank text fails with domain.ErrEmptyQuery.
// An empty field list falls back to domain.DefaultReturnedFields.
func New(text string, topK int, fields []string) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		return Query{}, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if topK > MaxTopK {
		return Query{}, fmt.Errorf("top_k must be at most %d, got %d", MaxTopK, topK)
	}
	if len(fields) == 0 {
		fields = domain.DefaultReturnedFields()
	}
	return Query{text: text, topK: topK, fields: append([]string(nil), fields...)}, nil
}

// Text returns the query text as given.
func (q Query) Text() string { return q.text }

// TopK returns the maximum number of results.
func (q Query) TopK() int { return q.topK }

// Fields returns the whitelist of metadata fields to return.
func (q Query) Fields() []string { return q.fields }
