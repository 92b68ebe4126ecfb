package valkey

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/gradsearch/internal/db"
)

// BulkIndex stores each document as a hash under the index prefix in a single
// DoMulti round-trip. The vector is written as little-endian FLOAT32 bytes.
func (s *Store) BulkIndex(ctx context.Context, index, vectorField string, docs []db.Doc) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if index == "" || vectorField == "" {
		return 0, fmt.Errorf("index and vector field are required: %w", db.ErrInvalidQuery)
	}

	prefix := db.DocKeyPrefix(index)
	cmds := make([]rueidis.Completed, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.ID == "" {
			return 0, fmt.Errorf("document [%d] has no id: %w", i, db.ErrInvalidQuery)
		}
		cmd := s.b().Hset().Key(prefix + d.ID).FieldValue()
		for k, v := range d.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmd = cmd.FieldValue(vectorField, vectorToBytes(d.Vector))
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return i, &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", prefix+docs[i].ID, err)}
		}
	}
	return len(docs), nil
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
