// Package gemini adapts the Google GenAI embedding endpoint.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/gradsearch/internal/domain"
	"github.com/kailas-cloud/gradsearch/internal/metrics"
)

const providerName = "gemini"

// Embedder wraps a genai.Client. Raw text only.
type Embedder struct {
	client     *genai.Client
	modelName  string
	dimensions int32
	taskType   string
	logger     *zap.Logger
}

// Config holds the Gemini settings.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL    string
	Model      string
	Dimensions int
	// TaskType is passed through as EmbedContentConfig.TaskType, e.g. RETRIEVAL_DOCUMENT.
	TaskType   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewEmbedder creates a Gemini embedder backed by the Gemini API.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     client,
		modelName:  cfg.Model,
		dimensions: int32(cfg.Dimensions), //nolint:gosec // dimensions are validated by config
		taskType:   cfg.TaskType,
		logger:     logger,
	}, nil
}

// Mode implements domain.Embedder.
func (e *Embedder) Mode() domain.Mode { return domain.ModeRaw }

// BatchEmbed implements domain.Embedder with one EmbedContent call per batch.
func (e *Embedder) BatchEmbed(ctx context.Context, inputs []domain.Input) (domain.BatchEmbeddingResult, error) {
	if len(inputs) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := domain.ValidateInputs(domain.ModeRaw, inputs); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	contents := make([]*genai.Content, len(inputs))
	for i, in := range inputs {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: in.Text()}}}
	}

	cfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		dims := e.dimensions
		cfg.OutputDimensionality = &dims
	}

	metrics.EmbeddingInputsTotal.WithLabelValues(providerName, e.modelName, string(domain.ModeRaw)).Add(float64(len(inputs)))

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx, e.modelName, contents, cfg)
	duration := time.Since(start)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelName, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.modelName, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, mapError(err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if emb != nil {
			embeddings[i] = emb.Values
		}
	}

	res := domain.BatchEmbeddingResult{Embeddings: embeddings}
	if err := domain.CheckCardinality(len(inputs), res); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelName, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.modelName, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelName, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.modelName).Observe(duration.Seconds())
	e.logger.Debug("gemini embed",
		zap.String("model", e.modelName),
		zap.Int("inputs", len(inputs)),
		zap.Duration("duration", duration),
	)
	return res, nil
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		cause := domain.ErrProviderUnavailable
		if apiErr.Code == http.StatusBadRequest {
			cause = domain.ErrEncoding
		}
		return fmt.Errorf("gemini embed %d %s: %s: %w", apiErr.Code, apiErr.Status, apiErr.Message, cause)
	}
	return fmt.Errorf("gemini embed: %v: %w", err, domain.ErrProviderUnavailable)
}
