package document

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/record"
)

func fullRecord() record.Record {
	return record.Record{
		"student_name": "山田 太郎",
		"kana":         "やまだ たろう",
		"term":         "2019",
		"thema":        "深層学習による画像分類",
		"link":         "https://example.com/works/1",
		"Release":      "公開",
		"score":        "A",
		"comments":     "good",
		"doc_text":     "本研究では",
		"doc_tokens":   "['本', '研究', 'で', 'は']",
	}
}

func TestNormalize_Raw(t *testing.T) {
	doc, err := Normalize(fullRecord(), domain.ModeRaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text() != "深層学習による画像分類本研究では" {
		t.Errorf("text = %q, want thema followed by doc_text", doc.Text())
	}
	if doc.Tokens() != nil {
		t.Error("raw document must not carry tokens")
	}
	m := doc.Meta()
	if m.StudentName != "山田 太郎" || m.Release != "公開" || m.Link != "https://example.com/works/1" {
		t.Errorf("unexpected metadata %+v", m)
	}
	in := doc.Input()
	if in.Mode() != domain.ModeRaw || in.Text() != doc.Text() {
		t.Errorf("unexpected input %+v", in)
	}
}

func TestNormalize_Tokenized(t *testing.T) {
	doc, err := Normalize(fullRecord(), domain.ModeTokenized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"本", "研究", "で", "は"}
	if !reflect.DeepEqual(doc.Tokens(), want) {
		t.Errorf("tokens = %v, want %v", doc.Tokens(), want)
	}
	if doc.Text() != "" {
		t.Error("tokenized document must not carry raw text")
	}
	if doc.Input().Mode() != domain.ModeTokenized {
		t.Error("expected tokenized input")
	}
}

func TestNormalize_LowercaseRelease(t *testing.T) {
	rec := fullRecord()
	delete(rec, "Release")
	rec["release"] = "非公開"

	doc, err := Normalize(rec, domain.ModeRaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Meta().Release != "非公開" {
		t.Errorf("release = %q", doc.Meta().Release)
	}
}

func TestNormalize_OptionalFieldsDefaultEmpty(t *testing.T) {
	doc, err := Normalize(record.Record{"thema": "A", "doc_text": "apple banana"}, domain.ModeRaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Meta().StudentName != "" || doc.Meta().Comments != "" {
		t.Errorf("expected empty optional fields, got %+v", doc.Meta())
	}
	if doc.Text() != "Aapple banana" {
		t.Errorf("text = %q", doc.Text())
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r record.Record)
		mode      domain.Mode
		wantField string
	}{
		{"no thema", func(r record.Record) { delete(r, "thema") }, domain.ModeRaw, FieldThema},
		{"blank thema", func(r record.Record) { r["thema"] = "  \t" }, domain.ModeRaw, FieldThema},
		{"blank doc_text", func(r record.Record) { r["doc_text"] = " " }, domain.ModeRaw, FieldDocText},
		{"no doc_tokens", func(r record.Record) { delete(r, "doc_tokens") }, domain.ModeTokenized, FieldDocTokens},
		{"empty token list", func(r record.Record) { r["doc_tokens"] = "[]" }, domain.ModeTokenized, FieldDocTokens},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fullRecord()
			tt.mutate(rec)
			_, err := Normalize(rec, tt.mode)
			if !errors.Is(err, domain.ErrMissingField) {
				t.Fatalf("expected ErrMissingField, got %v", err)
			}
			var mf *domain.MissingFieldError
			if !errors.As(err, &mf) || mf.Field != tt.wantField {
				t.Errorf("expected field %q, got %v", tt.wantField, err)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, mode := range []domain.Mode{domain.ModeRaw, domain.ModeTokenized} {
		a, err := Normalize(fullRecord(), mode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := Normalize(fullRecord(), mode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("mode %s: normalizing twice differs: %+v vs %+v", mode, a, b)
		}
		if a.ID() != b.ID() {
			t.Errorf("mode %s: ids differ", mode)
		}
	}
}

func TestNormalize_InvalidMode(t *testing.T) {
	if _, err := Normalize(fullRecord(), "bm25"); !errors.Is(err, domain.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}
}

func TestID_DistinctPerWork(t *testing.T) {
	a, _ := Normalize(fullRecord(), domain.ModeRaw)
	rec := fullRecord()
	rec["link"] = "https://example.com/works/2"
	b, _ := Normalize(rec, domain.ModeRaw)
	if a.ID() == b.ID() {
		t.Error("different works must get different ids")
	}
}

func TestID_SameTitleDifferentText(t *testing.T) {
	a, err := Normalize(record.Record{"thema": "AI", "doc_text": "first"}, domain.ModeRaw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize(record.Record{"thema": "AI", "doc_text": "second"}, domain.ModeRaw)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() {
		t.Error("works sharing only a title must get different ids")
	}
}

func TestReconstruct(t *testing.T) {
	meta := Metadata{Thema: "A"}
	raw := Reconstruct(meta, "Atext", nil)
	if raw.Mode() != domain.ModeRaw || raw.Text() != "Atext" {
		t.Errorf("unexpected raw document %+v", raw)
	}
	tok := Reconstruct(meta, "", []string{"a"})
	if tok.Mode() != domain.ModeTokenized {
		t.Errorf("unexpected tokenized document %+v", tok)
	}
}

func TestMetadata_Fields(t *testing.T) {
	f := Metadata{Release: "r", Thema: "t"}.Fields()
	if len(f) != 8 {
		t.Errorf("expected 8 identity fields, got %d", len(f))
	}
	if f["Release"] != "r" || f["thema"] != "t" {
		t.Errorf("unexpected fields %v", f)
	}
}
