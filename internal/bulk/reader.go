package bulk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

const maxLineSize = 64 << 20

// ErrUnsupportedOp is returned for a line whose _op_type is not "index".
var ErrUnsupportedOp = errors.New("unsupported bulk operation")

// Reader parses a bulk file line by line. Blank lines are skipped.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader creates a reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc}
}

// Next returns the next line, or io.EOF after the last one.
func (r *Reader) Next() (Line, error) {
	for r.sc.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		return r.parse(raw)
	}
	if err := r.sc.Err(); err != nil {
		return Line{}, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return Line{}, io.EOF
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]Line, error) {
	var out []Line
	for {
		l, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
}

func (r *Reader) parse(raw []byte) (Line, error) {
	var l Line
	if err := json.Unmarshal(raw, &l); err != nil {
		return Line{}, fmt.Errorf("line %d: %v: %w", r.line, err, domain.ErrSerialization)
	}
	if l.OpType != "" && l.OpType != domain.OpIndex {
		return Line{}, fmt.Errorf("line %d: %q: %w", r.line, l.OpType, ErrUnsupportedOp)
	}
	if l.Index == "" {
		return Line{}, fmt.Errorf("line %d: missing _index: %w", r.line, domain.ErrSerialization)
	}
	if len(l.Vector) == 0 {
		return Line{}, fmt.Errorf("line %d: missing %s: %w", r.line, domain.VectorField, domain.ErrSerialization)
	}
	return l, nil
}
