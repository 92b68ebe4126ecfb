// Package bulk writes and reads the newline-delimited JSON bulk file that
// carries embedded documents from the pipeline to the index loader.
package bulk

import (
	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/document"
)

// Line is one indexable document as it appears in the bulk file.
// Exactly one of DocText and DocTokens is set.
type Line struct {
	OpType      string    `json:"_op_type"`
	Index       string    `json:"_index"`
	StudentName string    `json:"student_name"`
	Kana        string    `json:"kana"`
	Term        string    `json:"term"`
	Thema       string    `json:"thema"`
	Link        string    `json:"link"`
	Release     string    `json:"Release"`
	Score       string    `json:"score"`
	Comments    string    `json:"comments"`
	DocText     string    `json:"doc_text,omitempty"`
	DocTokens   []string  `json:"doc_tokens,omitempty"`
	Vector      []float32 `json:"documents_vector"`
}

// NewLine builds the line for an embedded document.
func NewLine(doc document.Document, vec []float32, index string) Line {
	m := doc.Meta()
	l := Line{
		OpType:      domain.OpIndex,
		Index:       index,
		StudentName: m.StudentName,
		Kana:        m.Kana,
		Term:        m.Term,
		Thema:       m.Thema,
		Link:        m.Link,
		Release:     m.Release,
		Score:       m.Score,
		Comments:    m.Comments,
		Vector:      vec,
	}
	if doc.Mode() == domain.ModeTokenized {
		l.DocTokens = doc.Tokens()
	} else {
		l.DocText = doc.Text()
	}
	return l
}

// Document rebuilds the normalized document carried by the line.
func (l Line) Document() document.Document {
	return document.Reconstruct(l.Metadata(), l.DocText, l.DocTokens)
}

// Metadata returns the identity fields.
func (l Line) Metadata() document.Metadata {
	return document.Metadata{
		StudentName: l.StudentName,
		Kana:        l.Kana,
		Term:        l.Term,
		Thema:       l.Thema,
		Link:        l.Link,
		Release:     l.Release,
		Score:       l.Score,
		Comments:    l.Comments,
	}
}
