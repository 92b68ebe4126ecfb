package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Connector opens a provider connection.
type Connector func(ctx context.Context) (domain.Embedder, error)

// ErrModeMismatch is returned when the connected provider does not produce the session's mode.
var ErrModeMismatch = errors.New("provider mode mismatch")

// Session owns a provider connection: Disconnected -> Connected -> Disconnected.
// A call on a disconnected session connects on demand.
type Session struct {
	connect Connector
	mode    domain.Mode
	logger  *zap.Logger

	mu    sync.Mutex
	inner domain.Embedder
	state State
}

// NewSession creates a disconnected session for a provider producing mode.
func NewSession(connect Connector, mode domain.Mode, logger *zap.Logger) *Session {
	return &Session{connect: connect, mode: mode, logger: logger}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mode implements domain.Embedder.
func (s *Session) Mode() domain.Mode { return s.mode }

// Connect opens the provider connection. Connecting twice is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ensureLocked(ctx)
	return err
}

// Close releases the provider connection. Closing a disconnected session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Disconnected {
		return nil
	}
	inner := s.inner
	s.inner = nil
	s.state = Disconnected
	s.logger.Info("Embedding session closed", zap.String("mode", string(s.mode)))

	if c, ok := inner.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close provider: %w", err)
		}
	}
	return nil
}

// BatchEmbed implements domain.Embedder, connecting first when needed.
func (s *Session) BatchEmbed(ctx context.Context, inputs []domain.Input) (domain.BatchEmbeddingResult, error) {
	s.mu.Lock()
	inner, err := s.ensureLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	res, err := inner.BatchEmbed(ctx, inputs)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("session batch embed: %w", err)
	}
	return res, nil
}

// HealthCheck connects when needed and probes the provider.
func (s *Session) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	inner, err := s.ensureLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if hc, ok := inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // already wrapped by the provider
	}
	return nil
}

func (s *Session) ensureLocked(ctx context.Context) (domain.Embedder, error) {
	if s.state == Connected {
		return s.inner, nil
	}

	inner, err := s.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect provider: %v: %w", err, domain.ErrProviderUnavailable)
	}
	if inner.Mode() != s.mode {
		return nil, fmt.Errorf("%w (%w): provider is %s, session wants %s",
			ErrModeMismatch, domain.ErrEncoding, inner.Mode(), s.mode)
	}

	s.inner = inner
	s.state = Connected
	s.logger.Info("Embedding session connected", zap.String("mode", string(s.mode)))
	return inner, nil
}
