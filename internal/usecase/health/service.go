package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means queries will fail but the store is reachable.
	Degraded Status = "degraded"
	// Unhealthy means the index store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckMissing indicates the served index does not exist yet.
	CheckMissing CheckResult = "missing"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks for one served index.
type Service struct {
	store     StorePinger
	indexes   IndexChecker
	embedding EmbeddingChecker
	index     string
	timeout   time.Duration
}

// New creates a Service. indexes and embedding can be nil.
func New(store StorePinger, indexes IndexChecker, embedding EmbeddingChecker, index string) *Service {
	return &Service{store: store, indexes: indexes, embedding: embedding, index: index, timeout: 2 * time.Second}
}

// Check runs health checks against all components. Each probe is bounded by its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["store"] = s.probe(ctx, s.store.Ping)
	if checks["store"] == CheckError {
		return Report{Status: Unhealthy, Checks: checks}
	}

	if s.indexes != nil {
		checks["index"] = s.checkIndex(ctx)
	}
	if s.embedding != nil {
		checks["embedding"] = s.probe(ctx, s.embedding.HealthCheck)
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}

func (s *Service) checkIndex(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.indexes.IndexExists(ctx, s.index)
	switch {
	case err != nil:
		return CheckError
	case !ok:
		return CheckMissing
	default:
		return CheckOK
	}
}
