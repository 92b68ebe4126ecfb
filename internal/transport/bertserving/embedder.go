// Package bertserving talks to a bert-as-service HTTP proxy.
package bertserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
)

const providerName = "bertserving"

// Embedder sends batches to POST <base>/encode.
// The proxy accepts either raw sentences or pre-tokenized sentences; the mode is fixed per instance.
type Embedder struct {
	baseURL string
	model   string
	mode    domain.Mode
	client  *http.Client
	logger  *zap.Logger
	seq     atomic.Int64
}

// Config holds the bert-as-service proxy settings.
type Config struct {
	BaseURL string
	// Model is only used as a metrics label; the server decides the model.
	Model      string
	Mode       domain.Mode
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type encodeRequest struct {
	ID          int64 `json:"id"`
	Texts       any   `json:"texts"`
	IsTokenized bool  `json:"is_tokenized"`
}

type encodeResponse struct {
	ID     int64       `json:"id"`
	Result [][]float32 `json:"result"`
	Status int         `json:"status"`
}

// NewEmbedder creates a bert-as-service provider. The mode must be valid.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("bertserving: invalid mode %q", cfg.Mode)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("bertserving: base url is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = "bert"
	}

	return &Embedder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   model,
		mode:    cfg.Mode,
		client:  client,
		logger:  logger,
	}, nil
}

// Mode implements domain.Embedder.
func (e *Embedder) Mode() domain.Mode { return e.mode }

// BatchEmbed implements domain.Embedder.
func (e *Embedder) BatchEmbed(ctx context.Context, inputs []domain.Input) (domain.BatchEmbeddingResult, error) {
	if len(inputs) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := domain.ValidateInputs(e.mode, inputs); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	req := encodeRequest{ID: e.seq.Add(1), IsTokenized: e.mode == domain.ModeTokenized}
	if req.IsTokenized {
		texts := make([][]string, len(inputs))
		for i, in := range inputs {
			texts[i] = in.Tokens()
		}
		req.Texts = texts
	} else {
		texts := make([]string, len(inputs))
		for i, in := range inputs {
			texts[i] = in.Text()
		}
		req.Texts = texts
	}

	metrics.EmbeddingInputsTotal.WithLabelValues(providerName, e.model, string(e.mode)).Add(float64(len(inputs)))

	start := time.Now()
	out, err := e.encode(ctx, &req)
	duration := time.Since(start)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, errorType(err)).Inc()
		return domain.BatchEmbeddingResult{}, err
	}

	res := domain.BatchEmbeddingResult{Embeddings: out.Result}
	if err := domain.CheckCardinality(len(inputs), res); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(duration.Seconds())

	e.logger.Debug("bert encode",
		zap.Int64("id", req.ID),
		zap.Int("inputs", len(inputs)),
		zap.Bool("is_tokenized", req.IsTokenized),
		zap.Duration("duration", duration),
	)
	return res, nil
}

// HealthCheck queries GET <base>/status/server.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/status/server", http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("bert server status: %v: %w", err, domain.ErrProviderUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bert server status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
	return nil
}

func (e *Embedder) encode(ctx context.Context, payload *encodeRequest) (*encodeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %v: %w", err, domain.ErrEncoding)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/encode", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bert encode: %v: %w", err, domain.ErrProviderUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := domain.ErrProviderUnavailable
		if resp.StatusCode == http.StatusBadRequest {
			cause = domain.ErrEncoding
		}
		return nil, fmt.Errorf("bert encode: status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(detail)), cause)
	}

	var out encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %v: %w", err, domain.ErrEncoding)
	}
	if out.Status != 0 && out.Status != http.StatusOK {
		return nil, fmt.Errorf("bert encode: response status %d: %w", out.Status, domain.ErrProviderUnavailable)
	}
	return &out, nil
}

func errorType(err error) string {
	if errors.Is(err, domain.ErrEncoding) {
		return "encoding"
	}
	return "unavailable"
}
