// Package source reads raw tabular records from CSV or Parquet files.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/gradsearch/internal/domain/record"
)

// Load reads every record of the file at path. The format is chosen by extension:
// .parquet is read with ReadParquetFile, anything else as CSV with a header row.
func Load(path string) ([]record.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return ReadParquetFile(path)
	default:
		return ReadCSVFile(path)
	}
}

func requireHeader(header []string) error {
	if len(header) == 0 {
		return fmt.Errorf("no columns in header")
	}
	return nil
}
