package embed

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/bippobippo/hospital-vectors/pkg/config"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = config.DefaultOpenAIModel

// langchaingo reports a non-200 answer only as text.
var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

// StatusError is a provider answer with a non-2xx HTTP status.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// OpenAIOpts configures the OpenAI adapter.
type OpenAIOpts struct {
	APIKey  string
	Model   string
	BaseURL string // empty uses api.openai.com
	// HTTPClient carries the instrumented transport and request timeout.
	HTTPClient *http.Client
}

// OpenAI embeds through the OpenAI embeddings endpoint.
type OpenAI struct {
	embedder embeddings.Embedder
	model    string
}

// NewOpenAI creates the adapter. Newlines are kept so the embedded text is
// exactly the stored document.
func NewOpenAI(opts OpenAIOpts) (*OpenAI, error) {
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	llmOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithEmbeddingModel(opts.Model),
	}
	if opts.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		llmOpts = append(llmOpts, openai.WithHTTPClient(opts.HTTPClient))
	}

	llm, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("embed: openai client: %w", err)
	}
	e, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("embed: openai embedder: %w", err)
	}
	return &OpenAI{embedder: e, model: opts.Model}, nil
}

// Embed returns the embedding of text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		err = fmt.Errorf("embed: openai %s: %w", o.model, err)
		if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
			code, _ := strconv.Atoi(m[1])
			return nil, &StatusError{Code: code, Err: err}
		}
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vec, nil
}
