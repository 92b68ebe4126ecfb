package valkey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain/similarity"
)

// ScoreSearch runs a KNN query over the whole index via FT.SEARCH.
// The index is created with DISTANCE_METRIC COSINE, so the reported score is
// cosine distance and is converted to cosine + 1. Total is the number of
// indexed documents the query was scored against, taken from FT.INFO.
func (s *Store) ScoreSearch(ctx context.Context, q *db.ScoreQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	scoreField := "__" + q.VectorField + "_score"
	queryStr := fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.Size, q.VectorField, scoreField)

	args := []string{q.Index, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}

	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.Size),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
		}
		if isServerErr(err, "blob size", "dimension") {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %w", similarity.ErrDimensionMismatch, err)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := parseKNNResult(raw, scoreField)
	if err != nil || len(res.Entries) == 0 {
		return res, err
	}

	indexed, err := s.indexedDocs(ctx, q.Index)
	if err != nil {
		return nil, err
	}
	res.Total = max(res.Total, indexed)
	return res, nil
}

// indexedDocs reads num_docs from FT.INFO. A reply without num_docs counts as zero.
func (s *Store) indexedDocs(ctx context.Context, index string) (int, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(index).Build()
	info, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return 0, &db.Error{Op: db.OpIndexInfo, Err: db.ErrIndexNotFound}
		}
		return 0, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	for i := 0; i+1 < len(info); i += 2 {
		name, err := info[i].ToString()
		if err != nil || name != "num_docs" {
			continue
		}
		if n, err := info[i+1].AsInt64(); err == nil {
			return int(n), nil
		}
		str, err := info[i+1].ToString()
		if err != nil {
			return 0, nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("parse num_docs %q: %w", str, err)
		}
		return n, nil
	}
	return 0, nil
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage, scoreField string) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if scoreStr, ok := entry.Fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = similarity.FromCosineDistance(d)
			}
			delete(entry.Fields, scoreField)
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
