package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
	"github.com/Gondolav/inventory-connector/pkg/embedding"
)

// DefaultThreshold is the minimum cosine similarity a candidate needs.
const DefaultThreshold = 0.6

// EmbeddingMatcher keeps candidates whose sentence embedding is close to the
// query's and orders them by descending similarity.
type EmbeddingMatcher struct {
	embedder  embedding.Embedder
	threshold float64
	stopWords map[string]bool
	logger    *slog.Logger
}

// Option configures an EmbeddingMatcher.
type Option func(*EmbeddingMatcher)

// WithThreshold sets the minimum similarity (inclusive).
func WithThreshold(threshold float64) Option {
	return func(m *EmbeddingMatcher) { m.threshold = threshold }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *EmbeddingMatcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewEmbeddingMatcher creates a matcher that drops the stop words of lang
// before embedding.
func NewEmbeddingMatcher(embedder embedding.Embedder, lang config.Language, opts ...Option) *EmbeddingMatcher {
	m := &EmbeddingMatcher{
		embedder:  embedder,
		threshold: DefaultThreshold,
		stopWords: StopWords(lang),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "matcher", "model", embedder.Model())
	return m
}

// Threshold returns the configured minimum similarity.
func (m *EmbeddingMatcher) Threshold() float64 {
	return m.threshold
}

type scored struct {
	index int
	score float64
}

// Match embeds the query and all candidates in one batch. Ties keep backend
// order.
func (m *EmbeddingMatcher) Match(ctx context.Context, query message.Item, candidates []message.Item) ([]message.Item, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, m.normalize(query.Sentence()))
	for _, c := range candidates {
		texts = append(texts, m.normalize(c.Sentence()))
	}

	vectors, err := m.embedder.Generate(ctx, texts)
	if err != nil {
		return nil, errs.Wrap(err, "EmbeddingMatcher", "Match", "embed sentences")
	}
	if len(vectors) != len(texts) {
		return nil, errs.WrapInvalid(
			fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts)),
			"EmbeddingMatcher", "Match", "check embeddings")
	}

	var kept []scored
	for i, vec := range vectors[1:] {
		score := embedding.CosineSimilarity(vectors[0], vec)
		if score >= m.threshold {
			kept = append(kept, scored{index: i, score: score})
		}
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].score > kept[b].score })

	matches := make([]message.Item, len(kept))
	for i, s := range kept {
		matches[i] = candidates[s.index]
	}
	m.logger.Debug("Matched candidates", "candidates", len(candidates), "matches", len(matches))
	return matches, nil
}

// normalize lowercases sentence and drops punctuation and stop words.
func (m *EmbeddingMatcher) normalize(sentence string) string {
	words := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	kept := words[:0]
	for _, w := range words {
		if !m.stopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
