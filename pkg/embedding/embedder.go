// Package embedding turns short texts into vectors for similarity matching.
//
// Two providers are available: BM25Embedder, a pure Go lexical embedder
// whose corpus statistics are scoped to one Generate call, and HTTPEmbedder,
// which calls an OpenAI-compatible embedding API and can sit behind an
// LRUCache.
package embedding

import "context"

// Embedder generates vector embeddings for text.
//
// All providers work on batches. For a single text, pass a slice with one
// element. Implementations must be safe for concurrent use.
type Embedder interface {
	// Generate returns one embedding per input text, in input order.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int

	// Model returns the model identifier, for logs.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides content-addressed caching for embeddings.
//
// Keys are ContentHash values of the embedded text.
type Cache interface {
	// Get returns the cached embedding, or ErrCacheMiss.
	Get(ctx context.Context, contentHash string) ([]float32, error)

	// Put stores an embedding under contentHash.
	Put(ctx context.Context, contentHash string, embedding []float32) error
}
