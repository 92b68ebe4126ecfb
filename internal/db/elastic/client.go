// Package elastic implements db.Store on Elasticsearch 8 using dense_vector
// mappings and script_score queries.
package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/gradsearch/internal/db"
	"github.com/kailas-cloud/gradsearch/internal/domain/similarity"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	// Refresh makes bulk writes visible to search before returning.
	Refresh bool
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Store implements db.Store via the official Elasticsearch client.
type Store struct {
	es      *elasticsearch.Client
	refresh bool
}

// NewStore creates an Elasticsearch store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("addresses is required")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{es: es, refresh: cfg.Refresh}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() {
	if t, ok := s.es.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for elasticsearch: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// responseError converts an error response to a db error, mapping the
// well-known exception types to sentinels.
func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch eb.Error.Type {
	case "index_not_found_exception":
		return &db.Error{Op: op, Err: db.ErrIndexNotFound}
	case "resource_already_exists_exception":
		return db.ErrIndexExists
	}

	msg := eb.Error.Reason
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	// script_score reports a wrong-length query vector deep inside caused_by
	if strings.Contains(string(body), "different number of dimensions") {
		return &db.Error{Op: op, Err: fmt.Errorf("%w: status %d: %s",
			similarity.ErrDimensionMismatch, res.StatusCode, msg)}
	}
	return &db.Error{Op: op, Err: fmt.Errorf("status %d: %s", res.StatusCode, msg)}
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrIndexNotFound)
}
