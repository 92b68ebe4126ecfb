package domain

import (
	"context"
	"fmt"
	"strings"
)

// Mode is the text representation an embedding provider accepts.
// It is fixed per provider and per pipeline run.
type Mode string

// Supported text input modes.
const (
	// ModeRaw embeds raw concatenated text.
	ModeRaw Mode = "raw"
	// ModeTokenized embeds pre-tokenized word sequences.
	ModeTokenized Mode = "tokenized"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == ModeRaw || m == ModeTokenized
}

// ParseMode converts a config value to a Mode. There is no default.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown text mode %q (want %q or %q)", s, ModeRaw, ModeTokenized)
	}
	return m, nil
}

// Input is one element of an embedding batch: raw text or a token sequence, never both.
type Input struct {
	text   string
	tokens []string
}

// TextInput creates a raw-text input.
func TextInput(text string) Input { return Input{text: text} }

// TokenInput creates a pre-tokenized input.
func TokenInput(tokens []string) Input {
	return Input{tokens: append([]string(nil), tokens...)}
}

// Mode reports the representation this input carries.
func (in Input) Mode() Mode {
	if in.tokens != nil {
		return ModeTokenized
	}
	return ModeRaw
}

// Text returns the raw text (empty for tokenized inputs).
func (in Input) Text() string { return in.text }

// Tokens returns the token sequence (nil for raw inputs).
func (in Input) Tokens() []string { return in.tokens }

// IsEmpty reports whether the input carries no embeddable content.
func (in Input) IsEmpty() bool {
	if in.tokens != nil {
		for _, t := range in.tokens {
			if strings.TrimSpace(t) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(in.text) == ""
}

// Key returns a canonical string form, stable across runs. Used for cache keys.
func (in Input) Key() string {
	if in.tokens != nil {
		return string(ModeTokenized) + "\x00" + strings.Join(in.tokens, "\x1f")
	}
	return string(ModeRaw) + "\x00" + in.text
}

// Embedder is the embedding provider contract shared between layers.
// out.Embeddings[i] corresponds to inputs[i]; len(out.Embeddings) == len(inputs).
type Embedder interface {
	Mode() Mode
	BatchEmbed(ctx context.Context, inputs []Input) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BatchEmbeddingResult carries embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// ValidateInputs rejects empty inputs and inputs whose mode differs from the provider's.
func ValidateInputs(mode Mode, inputs []Input) error {
	for i, in := range inputs {
		if in.Mode() != mode {
			return fmt.Errorf("input [%d] is %s, provider expects %s: %w", i, in.Mode(), mode, ErrEncoding)
		}
		if in.IsEmpty() {
			return fmt.Errorf("input [%d] is empty: %w", i, ErrEncoding)
		}
	}
	return nil
}

// CheckCardinality verifies that a provider returned one non-empty vector per input.
func CheckCardinality(inputs int, res BatchEmbeddingResult) error {
	if len(res.Embeddings) != inputs {
		return fmt.Errorf("provider returned %d vectors for %d inputs: %w",
			len(res.Embeddings), inputs, ErrEncoding)
	}
	for i, v := range res.Embeddings {
		if len(v) == 0 {
			return fmt.Errorf("provider returned empty vector [%d]: %w", i, ErrEncoding)
		}
	}
	return nil
}

// EmbedOne embeds a single input through the batch contract.
func EmbedOne(ctx context.Context, e Embedder, in Input) ([]float32, int, error) {
	res, err := e.BatchEmbed(ctx, []Input{in})
	if err != nil {
		return nil, 0, err
	}
	if err := CheckCardinality(1, res); err != nil {
		return nil, 0, err
	}
	return res.Embeddings[0], res.TotalTokens, nil
}

// InstructionEmbedder is a domain decorator that prepends instruction text to raw inputs.
// Tokenized inputs pass through unchanged.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Mode reports the inner provider's mode.
func (e *InstructionEmbedder) Mode() Mode { return e.inner.Mode() }

// BatchEmbed prepends the instruction to each raw input and delegates.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, inputs []Input) (BatchEmbeddingResult, error) {
	prefixed := make([]Input, len(inputs))
	for i, in := range inputs {
		if in.Mode() == ModeRaw {
			prefixed[i] = TextInput(e.instruction + in.Text())
		} else {
			prefixed[i] = in
		}
	}

	res, err := e.inner.BatchEmbed(ctx, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return res, nil
}
