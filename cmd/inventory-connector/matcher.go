package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Gondolav/inventory-connector/config"
	"github.com/Gondolav/inventory-connector/matcher"
	"github.com/Gondolav/inventory-connector/pkg/embedding"
)

const embeddingCacheTTL = time.Hour

// buildMatcher returns the configured matcher and the embedder it owns, if
// any. The caller closes the embedder.
func buildMatcher(s *Settings, cfg *config.Config, logger *slog.Logger) (matcher.Matcher, embedding.Embedder, error) {
	var embedder embedding.Embedder

	switch s.Matcher {
	case "passthrough":
		return matcher.Passthrough{}, nil, nil
	case "bm25":
		embedder = embedding.NewBM25Embedder(embedding.BM25Config{})
	case "http":
		httpCfg := embedding.HTTPConfig{
			BaseURL: s.EmbeddingURL,
			Model:   s.EmbeddingModel,
			APIKey:  s.EmbeddingAPIKey,
			Timeout: s.QueryTimeout,
			Logger:  logger,
		}
		if s.EmbeddingCacheSize > 0 {
			httpCfg.Cache = embedding.NewLRUCache(s.EmbeddingCacheSize, embeddingCacheTTL)
		}
		h, err := embedding.NewHTTPEmbedder(httpCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = h
	default:
		return nil, nil, fmt.Errorf("unknown matcher %q", s.Matcher)
	}

	m := matcher.NewEmbeddingMatcher(embedder, cfg.Language,
		matcher.WithThreshold(s.MatchThreshold),
		matcher.WithLogger(logger))
	return m, embedder, nil
}
