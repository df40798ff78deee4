// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "nomic-embed-text"

// StatusError is returned when Ollama answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama: status %d: %s", e.Code, e.Body)
}

// Client calls POST /api/embeddings.
type Client struct {
	http  *resty.Client
	model string
}

// New creates a client for the server at baseURL. transport may be nil.
func New(baseURL, model string, timeout time.Duration, transport http.RoundTripper) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if transport != nil {
		c.SetTransport(transport)
	}
	return &Client{http: c, model: model}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: c.model, Prompt: text}).
		SetResult(&out).
		Post("/api/embeddings")
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Model is the configured model name.
func (c *Client) Model() string { return c.model }
