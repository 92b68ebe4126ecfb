package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

func TestSession_Lifecycle(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{1}}
	var connects int
	s := NewSession(func(context.Context) (domain.Embedder, error) {
		connects++
		return inner, nil
	}, domain.ModeRaw, zap.NewNop())

	if s.State() != Disconnected {
		t.Fatalf("initial state = %s", s.State())
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if s.State() != Connected || connects != 1 {
		t.Fatalf("state = %s, connects = %d", s.State(), connects)
	}

	if _, err := s.BatchEmbed(context.Background(), texts(2)); err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.State() != Disconnected || !inner.closed {
		t.Fatalf("state = %s, closed = %v", s.State(), inner.closed)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSession_ReconnectsOnDemand(t *testing.T) {
	var connects int
	s := NewSession(func(context.Context) (domain.Embedder, error) {
		connects++
		return &mockEmbedder{vec: []float32{1}}, nil
	}, domain.ModeRaw, zap.NewNop())

	if _, err := s.BatchEmbed(context.Background(), texts(1)); err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	_ = s.Close()
	if _, err := s.BatchEmbed(context.Background(), texts(1)); err != nil {
		t.Fatalf("BatchEmbed after close: %v", err)
	}
	if connects != 2 || s.State() != Connected {
		t.Errorf("connects = %d, state = %s", connects, s.State())
	}
}

func TestSession_ConnectFailure(t *testing.T) {
	s := NewSession(func(context.Context) (domain.Embedder, error) {
		return nil, errors.New("dial tcp: connection refused")
	}, domain.ModeRaw, zap.NewNop())

	err := s.Connect(context.Background())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if s.State() != Disconnected {
		t.Errorf("state = %s after failed connect", s.State())
	}
}

func TestSession_ModeMismatch(t *testing.T) {
	s := NewSession(func(context.Context) (domain.Embedder, error) {
		return &mockEmbedder{mode: domain.ModeTokenized}, nil
	}, domain.ModeRaw, zap.NewNop())

	if err := s.Connect(context.Background()); !errors.Is(err, ErrModeMismatch) || !errors.Is(err, domain.ErrEncoding) {
		t.Fatalf("expected ErrModeMismatch wrapping ErrEncoding, got %v", err)
	}
}

func TestSession_HealthCheck(t *testing.T) {
	s := NewSession(func(context.Context) (domain.Embedder, error) {
		return &mockEmbedder{healthErr: domain.ErrProviderUnavailable}, nil
	}, domain.ModeRaw, zap.NewNop())

	if err := s.HealthCheck(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
