package bulk

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/domain/document"
)

// Emitter serializes embedded documents into bulk lines.
// All vectors of one emitter share a dimension: the configured one, or the
// first emitted vector's length when none was configured.
type Emitter struct {
	mu  sync.Mutex
	dim int
}

// NewEmitter creates an emitter. dim <= 0 fixes the dimension on first use.
func NewEmitter(dim int) *Emitter {
	if dim < 0 {
		dim = 0
	}
	return &Emitter{dim: dim}
}

// Dimension reports the fixed vector dimension, 0 until known.
func (e *Emitter) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

// Emit returns one newline-terminated JSON object for doc.
func (e *Emitter) Emit(doc document.Document, vec []float32, index string) ([]byte, error) {
	if err := e.check(doc, vec, index); err != nil {
		return nil, err
	}

	data, err := json.Marshal(NewLine(doc, vec, index))
	if err != nil {
		return nil, fmt.Errorf("marshal line: %v: %w", err, domain.ErrSerialization)
	}
	return append(data, '\n'), nil
}

func (e *Emitter) check(doc document.Document, vec []float32, index string) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("blank index name: %w", domain.ErrSerialization)
	}
	if strings.TrimSpace(doc.Meta().Thema) == "" {
		return fmt.Errorf("field %q is empty: %w", document.FieldThema, domain.ErrSerialization)
	}
	if doc.Input().IsEmpty() {
		return fmt.Errorf("document has no text payload: %w", domain.ErrSerialization)
	}
	if len(vec) == 0 {
		return fmt.Errorf("empty vector: %w", domain.ErrSerialization)
	}
	for i, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("vector[%d] is not finite: %w", i, domain.ErrSerialization)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = len(vec)
		return nil
	}
	if len(vec) != e.dim {
		return fmt.Errorf("vector has %d dimensions, want %d: %w", len(vec), e.dim, domain.ErrSerialization)
	}
	return nil
}
