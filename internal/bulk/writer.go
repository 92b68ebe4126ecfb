package bulk

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kailas-cloud/gradsearch/internal/domain/document"
)

// Writer appends exactly one line per Write to an underlying stream.
type Writer struct {
	w       *bufio.Writer
	emitter *Emitter
	index   string
	lines   int
}

// NewWriter creates a writer for index. Call Flush when done.
func NewWriter(w io.Writer, emitter *Emitter, index string) *Writer {
	return &Writer{w: bufio.NewWriter(w), emitter: emitter, index: index}
}

// Write emits and appends one line.
func (w *Writer) Write(doc document.Document, vec []float32) error {
	line, err := w.emitter.Emit(doc, vec, w.index)
	if err != nil {
		return fmt.Errorf("line %d: %w", w.lines+1, err)
	}
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("write line %d: %w", w.lines+1, err)
	}
	w.lines++
	return nil
}

// Lines reports how many lines were written.
func (w *Writer) Lines() int { return w.lines }

// Flush writes buffered lines to the underlying stream.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
