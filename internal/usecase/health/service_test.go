package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockIndexes struct {
	exists bool
	err    error
	name   string
}

func (m *mockIndexes) IndexExists(_ context.Context, name string) (bool, error) {
	m.name = name
	return m.exists, m.err
}

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	idx := &mockIndexes{exists: true}
	r := New(&mockPinger{}, idx, &mockEmbeddingChecker{}, "jobsearch").Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"store", "index", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
	if idx.name != "jobsearch" {
		t.Errorf("checked index %q", idx.name)
	}
}

func TestCheck_StoreDown(t *testing.T) {
	r := New(&mockPinger{err: errors.New("conn refused")}, &mockIndexes{exists: true}, &mockEmbeddingChecker{}, "i").
		Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["store"] != CheckError {
		t.Errorf("expected store %q, got %q", CheckError, r.Checks["store"])
	}
	if _, ok := r.Checks["index"]; ok {
		t.Error("index check should be skipped when the store is down")
	}
}

func TestCheck_IndexMissing(t *testing.T) {
	r := New(&mockPinger{}, &mockIndexes{}, nil, "i").Check(context.Background())

	if r.Status != Degraded || r.Checks["index"] != CheckMissing {
		t.Errorf("status %q index %q", r.Status, r.Checks["index"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	r := New(&mockPinger{}, &mockIndexes{exists: true}, &mockEmbeddingChecker{err: errors.New("timeout")}, "i").
		Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_OptionalComponents(t *testing.T) {
	r := New(&mockPinger{}, nil, nil, "i").Check(context.Background())

	if r.Status != Healthy || len(r.Checks) != 1 {
		t.Errorf("status %q checks %v", r.Status, r.Checks)
	}
}
