package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/gradsearch/internal/domain/record"
)

const parquetReadBatch = 1000

// ReadParquet reads every row of a Parquet file into records keyed by top-level column name.
// Scalar columns are stringified; repeated columns (lists) become a JSON array of strings,
// which is the form the token parser accepts for doc_tokens.
func ReadParquet(r io.ReaderAt, size int64) ([]record.Record, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	names, repeated := resolveColumns(pf)
	if err := requireHeader(names); err != nil {
		return nil, err
	}

	var out []record.Record
	for _, rg := range pf.RowGroups() {
		recs, err := readRowGroup(rg, names, repeated)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// ReadParquetFile opens path and parses it with ReadParquet.
func ReadParquetFile(path string) ([]record.Record, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	recs, err := ReadParquet(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return recs, nil
}

// resolveColumns maps leaf column indexes to their top-level names.
func resolveColumns(pf *parquet.File) ([]string, map[int]bool) {
	cols := pf.Schema().Columns()
	names := make([]string, len(cols))
	repeated := make(map[int]bool)
	for i, path := range cols {
		if len(path) == 0 {
			continue
		}
		names[i] = path[0]
		if len(path) > 1 {
			repeated[i] = true
		}
	}
	return names, repeated
}

func readRowGroup(rg parquet.RowGroup, names []string, repeated map[int]bool) ([]record.Record, error) {
	rows := parquet.NewRowGroupReader(rg)
	buf := make([]parquet.Row, parquetReadBatch)
	var out []record.Record

	for {
		n, readErr := rows.ReadRows(buf)
		for i := 0; i < n; i++ {
			rec, err := rowToRecord(buf[i], names, repeated)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read rows: %w", readErr)
		}
	}
	return out, nil
}

func rowToRecord(row parquet.Row, names []string, repeated map[int]bool) (record.Record, error) {
	rec := make(record.Record, len(names))
	lists := make(map[int][]string)

	for _, name := range names {
		if name != "" {
			rec[name] = ""
		}
	}

	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) || names[col] == "" {
			continue
		}
		if repeated[col] {
			if _, ok := lists[col]; !ok {
				lists[col] = []string{}
			}
			if !v.IsNull() {
				lists[col] = append(lists[col], v.String())
			}
			continue
		}
		if !v.IsNull() {
			rec[names[col]] = v.String()
		}
	}

	for col, items := range lists {
		if len(items) == 0 {
			continue
		}
		data, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("encode list column %q: %w", names[col], err)
		}
		rec[names[col]] = string(data)
	}
	return rec, nil
}
