// Package config loads the settings of an embedding run.
//
// Precedence, highest first:
//  1. Environment variables (HOSPITAL_SEARCH_INDEX, HOSPITAL_EMBEDDING_MODEL, ...)
//  2. YAML file passed with --config
//  3. Defaults from Default()
//
// OPENAI_API_KEY is read when no embedding key is configured otherwise.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/bippobippo/hospital-vectors/engine/hospital"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOSPITAL_"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full run configuration.
type Config struct {
	Search    SearchConfig    `koanf:"search"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Store     StoreConfig     `koanf:"store"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Notify    NotifyConfig    `koanf:"notify"`
}

// SearchConfig points at the Elasticsearch index holding the records.
type SearchConfig struct {
	Addresses  []string `koanf:"addresses"`
	Index      string   `koanf:"index"`
	Username   string   `koanf:"username"`
	Password   string   `koanf:"password"`
	APIKey     string   `koanf:"api_key"`
	SampleSize int      `koanf:"sample_size"`
	// SortField orders the sample so ids are stable across runs. It must
	// be a keyword or numeric field; ykiho is dynamically mapped as text,
	// so the default sorts on its keyword subfield. Empty sends the query
	// unsorted.
	SortField string `koanf:"sort_field"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider  string        `koanf:"provider"` // openai | ollama
	Model     string        `koanf:"model"`
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	OllamaURL string        `koanf:"ollama_url"`
	Timeout   time.Duration `koanf:"timeout"`

	Workers     int           `koanf:"workers"`
	RatePerSec  float64       `koanf:"rate_per_sec"`
	Burst       int           `koanf:"burst"`
	MaxAttempts int           `koanf:"max_attempts"`
	InitialWait time.Duration `koanf:"initial_wait"`
	MaxWait     time.Duration `koanf:"max_wait"`

	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend    string `koanf:"backend"` // chromem | qdrant
	Collection string `koanf:"collection"`
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	QdrantAddr string `koanf:"qdrant_addr"`
	Dims       int    `koanf:"dims"`
}

// PipelineConfig tunes the batch pipeline.
type PipelineConfig struct {
	BatchSize     int    `koanf:"batch_size"`
	Locale        string `koanf:"locale"`
	SampleEntries int    `koanf:"sample_entries"`
	Verify        bool   `koanf:"verify"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `koanf:"otlp_endpoint"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// MetricsConfig enables pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushURL string `koanf:"push_url"`
	Job     string `koanf:"job"`
}

// NotifyConfig enables the completion event on NATS.
type NotifyConfig struct {
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// Model names the provider falls back to when no model is configured.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
)

// ModelDims is the vector size of the embedding models the job knows.
// Unlisted models are trusted to match store.dims.
var ModelDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// ResolvedModel is the model the provider is called with. An ollama
// provider left on the OpenAI default uses DefaultOllamaModel.
func (e EmbeddingConfig) ResolvedModel() string {
	if e.Provider == "ollama" && (e.Model == "" || e.Model == DefaultOpenAIModel) {
		return DefaultOllamaModel
	}
	if e.Model == "" {
		return DefaultOpenAIModel
	}
	return e.Model
}

// Default returns the configuration the job runs with when nothing is set.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Addresses:  []string{"http://localhost:9200"},
			Index:      "hospitals",
			SampleSize: 100,
			SortField:  "ykiho.keyword",
		},
		Embedding: EmbeddingConfig{
			Provider:         "openai",
			Model:            DefaultOpenAIModel,
			OllamaURL:        "http://localhost:11434",
			Timeout:          30 * time.Second,
			Workers:          1,
			Burst:            1,
			MaxAttempts:      3,
			InitialWait:      time.Second,
			MaxWait:          30 * time.Second,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Store: StoreConfig{
			Backend:    "chromem",
			Collection: "hospital_info",
			Path:       "server/vector_db/chroma_db",
			QdrantAddr: "localhost:6334",
			Dims:       1536,
		},
		Pipeline: PipelineConfig{
			BatchSize:     10,
			Locale:        string(hospital.Korean),
			SampleEntries: 5,
			Verify:        true,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{
			ServiceName: "hospital-embed",
		},
		Metrics: MetricsConfig{Job: "hospital_embed"},
		Notify:  NotifyConfig{Subject: "hospital.vectors.indexed"},
	}
}

// Load reads path (optional) and the environment on top of Default().
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	// store.dims follows the model unless set explicitly
	if !k.Exists("store.dims") {
		if dims, ok := ModelDims[cfg.Embedding.ResolvedModel()]; ok {
			cfg.Store.Dims = dims
		}
	}
	return cfg, nil
}

// envKey maps HOSPITAL_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Validate rejects settings the run cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Search.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("search.sample_size must be positive, got %d", c.Search.SampleSize))
	}
	if len(c.Search.Addresses) == 0 {
		errs = append(errs, errors.New("search.addresses is empty"))
	}
	if c.Search.Index == "" {
		errs = append(errs, errors.New("search.index is empty"))
	}
	if c.Pipeline.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize))
	}
	if !hospital.Locale(c.Pipeline.Locale).Valid() {
		errs = append(errs, fmt.Errorf("pipeline.locale %q has no phrase table", c.Pipeline.Locale))
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			errs = append(errs, errors.New("embedding.api_key or OPENAI_API_KEY is required for openai"))
		}
	case "ollama":
		if c.Embedding.OllamaURL == "" {
			errs = append(errs, errors.New("embedding.ollama_url is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not openai or ollama", c.Embedding.Provider))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is empty"))
	}
	if c.Store.Collection == "" {
		errs = append(errs, errors.New("store.collection is empty"))
	}
	switch c.Store.Backend {
	case "chromem":
	case "qdrant":
		if c.Store.QdrantAddr == "" {
			errs = append(errs, errors.New("store.qdrant_addr is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not chromem or qdrant", c.Store.Backend))
	}
	if c.Store.Dims <= 0 {
		errs = append(errs, fmt.Errorf("store.dims must be positive, got %d", c.Store.Dims))
	} else if model := c.Embedding.ResolvedModel(); ModelDims[model] != 0 && ModelDims[model] != c.Store.Dims {
		errs = append(errs, fmt.Errorf("store.dims is %d but %s returns %d-dimensional vectors",
			c.Store.Dims, model, ModelDims[model]))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
