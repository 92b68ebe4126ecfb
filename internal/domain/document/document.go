// Package document turns raw input rows into canonical documents ready for embedding.
package document

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/record"
)

// Column and output field names. They are a fixed contract with the data producer.
const (
	FieldStudentName = "student_name"
	FieldKana        = "kana"
	FieldTerm        = "term"
	FieldThema       = "thema"
	FieldLink        = "link"
	FieldRelease     = "Release"
	FieldScore       = "score"
	FieldComments    = "comments"
	FieldDocText     = "doc_text"
	FieldDocTokens   = "doc_tokens"
)

// idNamespace scopes deterministic document IDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/kailas-cloud/gradsearch/document"))

// Metadata holds the identity fields carried through to the index unchanged.
type Metadata struct {
	StudentName string
	Kana        string
	Term        string
	Thema       string
	Link        string
	Release     string
	Score       string
	Comments    string
}

// Fields returns the metadata keyed by output field name.
func (m Metadata) Fields() map[string]string {
	return map[string]string{
		FieldStudentName: m.StudentName,
		FieldKana:        m.Kana,
		FieldTerm:        m.Term,
		FieldThema:       m.Thema,
		FieldLink:        m.Link,
		FieldRelease:     m.Release,
		FieldScore:       m.Score,
		FieldComments:    m.Comments,
	}
}

// Document is a normalized graduation work (immutable value object).
// Exactly one of text and tokens is set, according to mode.
type Document struct {
	meta   Metadata
	mode   domain.Mode
	text   string
	tokens []string
}

// Normalize builds a Document from a raw record.
//
// Required after trimming: thema and the text source of the mode
// (doc_text for raw, doc_tokens for tokenized). Other identity fields
// default to "". Raw text is thema followed by doc_text with no separator.
func Normalize(rec record.Record, mode domain.Mode) (Document, error) {
	if !mode.IsValid() {
		return Document{}, domain.ErrEncoding
	}

	meta := Metadata{
		StudentName: rec.Value(FieldStudentName),
		Kana:        rec.Value(FieldKana),
		Term:        rec.Value(FieldTerm),
		Thema:       rec.Value(FieldThema),
		Link:        rec.Value(FieldLink),
		Release:     rec.Value(FieldRelease),
		Score:       rec.Value(FieldScore),
		Comments:    rec.Value(FieldComments),
	}
	if isBlank(meta.Thema) {
		return Document{}, domain.NewMissingField(FieldThema)
	}

	doc := Document{meta: meta, mode: mode}

	switch mode {
	case domain.ModeRaw:
		body := rec.Value(FieldDocText)
		if isBlank(body) {
			return Document{}, domain.NewMissingField(FieldDocText)
		}
		doc.text = meta.Thema + body
	case domain.ModeTokenized:
		raw := rec.Value(FieldDocTokens)
		if isBlank(raw) {
			return Document{}, domain.NewMissingField(FieldDocTokens)
		}
		tokens, err := ParseTokens(raw)
		if err != nil {
			return Document{}, err
		}
		if len(tokens) == 0 {
			return Document{}, domain.NewMissingField(FieldDocTokens)
		}
		doc.tokens = tokens
	}

	return doc, nil
}

// Reconstruct creates a Document without validation (parsing emitted output).
func Reconstruct(meta Metadata, text string, tokens []string) Document {
	if tokens != nil {
		return Document{meta: meta, mode: domain.ModeTokenized, tokens: tokens}
	}
	return Document{meta: meta, mode: domain.ModeRaw, text: text}
}

// Meta returns the identity fields.
func (d Document) Meta() Metadata { return d.meta }

// Mode returns the text representation of the payload.
func (d Document) Mode() domain.Mode { return d.mode }

// Text returns the raw text payload ("" in tokenized mode).
func (d Document) Text() string { return d.text }

// Tokens returns the token payload (nil in raw mode).
func (d Document) Tokens() []string { return d.tokens }

// Input returns the embedding input for this document.
func (d Document) Input() domain.Input {
	if d.mode == domain.ModeTokenized {
		return domain.TokenInput(d.tokens)
	}
	return domain.TextInput(d.text)
}

// ID returns a deterministic identifier derived from the identity fields and
// the text payload. Re-running the pipeline on the same data yields the same
// IDs, so loads upsert; rows that share a title but differ in text stay apart.
func (d Document) ID() string {
	key := d.meta.Link + "\x00" + d.meta.StudentName + "\x00" + d.meta.Thema + "\x00" + d.Input().Key()
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
