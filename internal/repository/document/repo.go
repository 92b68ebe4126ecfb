package document

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/gradsearch/internal/bulk"
	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain"
	domdoc "github.com/kailas-cloud/gradsearch/internal/domain/document"
)

// store is the consumer interface for documents (ISP).
type store interface {
	BulkIndex(ctx context.Context, index, vectorField string, docs []db.Doc) (int, error)
}

// Repo writes embedded documents into the index store.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveLines stores bulk lines under index in one store call. Returns the accepted count.
func (r *Repo) SaveLines(ctx context.Context, index string, lines []bulk.Line) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	docs := make([]db.Doc, len(lines))
	for i := range lines {
		d, err := toDoc(&lines[i])
		if err != nil {
			return 0, err
		}
		docs[i] = d
	}

	n, err := r.store.BulkIndex(ctx, index, domain.VectorField, docs)
	if err != nil {
		return n, fmt.Errorf("bulk index %s: %w", index, err)
	}
	return n, nil
}

// toDoc flattens a line into string fields. Token payloads are stored as a JSON array string.
func toDoc(l *bulk.Line) (db.Doc, error) {
	doc := l.Document()
	fields := doc.Meta().Fields()
	if l.DocTokens != nil {
		data, err := json.Marshal(l.DocTokens)
		if err != nil {
			return db.Doc{}, fmt.Errorf("marshal tokens: %v: %w", err, domain.ErrSerialization)
		}
		fields[domdoc.FieldDocTokens] = string(data)
	} else {
		fields[domdoc.FieldDocText] = l.DocText
	}
	return db.Doc{ID: doc.ID(), Fields: fields, Vector: l.Vector}, nil
}
