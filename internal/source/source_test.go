package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/document"
)

const sampleCSV = "\ufeffstudent_name,kana,term,thema,link,Release,score,comments,doc_text\n" +
	"Taro,たろう,2019,Deep Learning,http://a,yes,A,\"good,\nwork\",body text\n" +
	"Hanako,はなこ,2020,Graphs,http://b,no,B,,graph body\n"

func TestReadCSV(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Value("student_name") != "Taro" {
		t.Errorf("BOM not stripped: %v", recs[0])
	}
	if recs[0].Value("comments") != "good,\nwork" {
		t.Errorf("quoted multi-line field = %q", recs[0].Value("comments"))
	}
	if recs[1].Value("release") != "no" {
		t.Errorf("Release lookup is case-insensitive, got %q", recs[1].Value("release"))
	}
}

func TestReadCSV_ShortRow(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader("thema,doc_text,link\nTitle,body\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if v, ok := recs[0].Get("link"); !ok || v != "" {
		t.Errorf("missing trailing cell should be empty, got %q %v", v, ok)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(""))
	if err != nil || recs != nil {
		t.Fatalf("expected no records and no error, got %v %v", recs, err)
	}
}

func TestLoad_CSVFeedsNormalizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "works.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	doc, err := document.Normalize(recs[1], domain.ModeRaw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if doc.Text() != "Graphsgraph body" {
		t.Errorf("text = %q", doc.Text())
	}
}

type parquetWork struct {
	StudentName string   `parquet:"student_name"`
	Thema       string   `parquet:"thema"`
	Link        string   `parquet:"link"`
	Term        int32    `parquet:"term"`
	DocTokens   []string `parquet:"doc_tokens,list"`
}

func writeParquet(t *testing.T, rows []parquetWork) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[parquetWork](&buf)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close parquet: %v", err)
	}
	return buf.Bytes()
}

func TestReadParquet(t *testing.T) {
	data := writeParquet(t, []parquetWork{
		{StudentName: "Taro", Thema: "Deep Learning", Link: "http://a", Term: 2019, DocTokens: []string{"深層", "学習"}},
		{StudentName: "Hanako", Thema: "Graphs", Link: "http://b", Term: 2020},
	})

	recs, err := ReadParquet(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Value("thema") != "Deep Learning" || recs[0].Value("term") != "2019" {
		t.Errorf("unexpected scalar columns %v", recs[0])
	}
	if recs[0].Value("doc_tokens") != `["深層","学習"]` {
		t.Errorf("doc_tokens = %q", recs[0].Value("doc_tokens"))
	}
	if recs[1].Value("doc_tokens") != "" {
		t.Errorf("empty list should be blank, got %q", recs[1].Value("doc_tokens"))
	}

	doc, err := document.Normalize(recs[0], domain.ModeTokenized)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := doc.Tokens(); len(got) != 2 || got[1] != "学習" {
		t.Errorf("tokens = %v", got)
	}
}

func TestLoad_ParquetByExtension(t *testing.T) {
	data := writeParquet(t, []parquetWork{{StudentName: "Taro", Thema: "T", Link: "L"}})
	path := filepath.Join(t.TempDir(), "works.PARQUET")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	recs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 || recs[0].Value("student_name") != "Taro" {
		t.Errorf("unexpected records %v", recs)
	}
}
