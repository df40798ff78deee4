// Package embed turns formatted hospital documents into vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/pkg/config"
	"github.com/bippobippo/hospital-vectors/pkg/ollama"
)

// ErrEmptyEmbedding is returned when a provider answers with no vector.
var ErrEmptyEmbedding = errors.New("embed: provider returned an empty embedding")

// Embedder maps one text to one vector. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

// New builds the configured provider wrapped in rate limiting, a circuit
// breaker and retries.
func New(cfg config.EmbeddingConfig, log *zap.Logger) (Embedder, error) {
	transport := otelhttp.NewTransport(http.DefaultTransport)

	model := cfg.ResolvedModel()

	var provider Embedder
	switch cfg.Provider {
	case "openai":
		oa, err := NewOpenAI(OpenAIOpts{
			APIKey:     cfg.APIKey,
			Model:      model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		})
		if err != nil {
			return nil, err
		}
		provider = oa
	case "ollama":
		oc := ollama.New(cfg.OllamaURL, model, cfg.Timeout, transport)
		model = oc.Model()
		provider = oc
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
	if log != nil {
		log.Info("embedding provider ready", zap.String("provider", cfg.Provider), zap.String("model", model))
	}

	return NewResilient(provider, ResilientOptsFrom(cfg), log), nil
}
