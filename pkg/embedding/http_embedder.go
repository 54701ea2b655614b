package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"

	errs "github.com/Gondolav/inventory-connector/errors"
)

// HTTPEmbedder calls an external OpenAI-compatible embedding service.
//
// This works with Hugging Face TEI, LocalAI, OpenAI and any other service
// exposing the OpenAI /embeddings endpoint.
type HTTPEmbedder struct {
	client     *openai.Client
	model      string
	dimensions atomic.Int64
	cache      Cache
	logger     *slog.Logger
}

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// BaseURL is the base URL of the embedding service.
	// Examples:
	//   - "http://localhost:8082" (TEI)
	//   - "https://api.openai.com/v1" (OpenAI cloud)
	BaseURL string

	// Model is the embedding model to use, e.g. "all-MiniLM-L6-v2".
	Model string

	// APIKey for authentication (optional for local services).
	APIKey string

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	// Cache for embedding results (optional).
	Cache Cache

	// Logger (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

const defaultDimensions = 384

// NewHTTPEmbedder creates a new HTTP-based embedder.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errs.WrapInvalid(fmt.Errorf("base_url is required"), "HTTPEmbedder", "New", "validate config")
	}
	if cfg.Model == "" {
		return nil, errs.WrapInvalid(fmt.Errorf("model is required"), "HTTPEmbedder", "New", "validate config")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused" // local services ignore the key
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL
	// HTTPDoer is an interface: assigning a nil *http.Client would make it non-nil
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	} else {
		clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		cache:  cfg.Cache,
		logger: logger.With("component", "http-embedder", "model", cfg.Model),
	}
	h.dimensions.Store(defaultDimensions)
	return h, nil
}

// Generate returns embeddings for texts, serving cached vectors first and
// calling the API once for the remaining texts.
func (h *HTTPEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	var missIndexes []int
	var missTexts []string

	for i, text := range texts {
		if h.cache != nil {
			if cached, err := h.cache.Get(ctx, ContentHash(text)); err == nil {
				embeddings[i] = cached
				continue
			}
		}
		missIndexes = append(missIndexes, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return embeddings, nil
	}

	resp, err := h.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: missTexts,
		Model: openai.EmbeddingModel(h.model),
	})
	if err != nil {
		return nil, errs.WrapTransient(err, "HTTPEmbedder", "Generate", "call embedding API")
	}
	if len(resp.Data) != len(missTexts) {
		return nil, errs.WrapInvalid(
			fmt.Errorf("API returned %d embeddings for %d texts", len(resp.Data), len(missTexts)),
			"HTTPEmbedder", "Generate", "check response")
	}

	for i, data := range resp.Data {
		pos := i
		if data.Index >= 0 && data.Index < len(missTexts) {
			pos = data.Index
		}
		embeddings[missIndexes[pos]] = data.Embedding
		if len(data.Embedding) > 0 {
			h.dimensions.Store(int64(len(data.Embedding)))
		}

		if h.cache != nil {
			hash := ContentHash(missTexts[pos])
			if err := h.cache.Put(ctx, hash, data.Embedding); err != nil {
				h.logger.Warn("Embedding cache put failed", "hash", hash, "error", err)
			}
		}
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of the last embeddings received,
// or 384 before the first call.
func (h *HTTPEmbedder) Dimensions() int {
	return int(h.dimensions.Load())
}

// Model returns the model identifier.
func (h *HTTPEmbedder) Model() string {
	return h.model
}

// Close is a no-op.
func (h *HTTPEmbedder) Close() error {
	return nil
}
