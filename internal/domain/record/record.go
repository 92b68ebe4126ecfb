// Package record holds one row of tabular input before normalization.
package record

import "strings"

// Record is a raw input row keyed by column name. Values are untyped strings
// exactly as the source produced them.
type Record map[string]string

// Get returns the value of column name. An exact match wins; otherwise the
// case-insensitive match with the smallest column name is used, so lookups
// are stable when a source carries columns that differ only by case.
func (r Record) Get(name string) (string, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	best, found := "", false
	for k := range r {
		if strings.EqualFold(k, name) && (!found || k < best) {
			best, found = k, true
		}
	}
	if !found {
		return "", false
	}
	return r[best], true
}

// Value returns the column value or "" when absent.
func (r Record) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// FromRow zips a header with a row. Missing trailing cells become "".
func FromRow(header, row []string) Record {
	rec := make(Record, len(header))
	for i, h := range header {
		if i < len(row) {
			rec[h] = row[i]
		} else {
			rec[h] = ""
		}
	}
	return rec
}
