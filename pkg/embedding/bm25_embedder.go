package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode"
)

// BM25Embedder implements pure Go lexical embeddings using BM25 weighting.
//
// Each Generate call treats its input texts as the whole corpus: document
// frequencies and average length come from that batch alone. The embedder
// keeps no state between calls, so output depends only on the input and is
// safe for concurrent use.
//
// Vectors are built by:
//  1. Tokenizing text (lowercase, split on non-alphanumeric)
//  2. Computing term frequencies
//  3. Hashing terms to fixed dimensions (feature hashing)
//  4. Applying BM25 weighting (TF with IDF and length normalization)
//  5. L2 normalizing for cosine similarity compatibility
//
// Parameters:
//   - k1: term frequency saturation (default 1.5)
//   - b: document length normalization (default 0.75)
type BM25Embedder struct {
	dimensions int
	k1         float64
	b          float64
}

// BM25Config configures the BM25 embedder.
type BM25Config struct {
	// Dimensions is the output embedding dimension (default: 384)
	Dimensions int

	// K1 controls term frequency saturation (default: 1.5)
	K1 float64

	// B controls length normalization (default: 0.75)
	// B=1.0 means full normalization, B=0.0 means no normalization
	B float64
}

// NewBM25Embedder creates a new BM25-based embedder.
func NewBM25Embedder(cfg BM25Config) *BM25Embedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	if cfg.K1 == 0 {
		cfg.K1 = 1.5
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}

	return &BM25Embedder{
		dimensions: cfg.Dimensions,
		k1:         cfg.K1,
		b:          cfg.B,
	}
}

type bm25Doc struct {
	length   int
	termFreq map[string]int
}

// Generate creates BM25 embeddings for texts, using texts as the corpus.
func (e *BM25Embedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	docs := make([]bm25Doc, len(texts))
	docFreq := make(map[string]int)
	totalLength := 0
	for i, text := range texts {
		tokens := e.tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			docFreq[term]++
		}
		docs[i] = bm25Doc{length: len(tokens), termFreq: tf}
		totalLength += len(tokens)
	}

	n := float64(len(texts))
	avgLength := float64(totalLength) / n

	embeddings := make([][]float32, len(texts))
	for i, doc := range docs {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		embeddings[i] = e.vector(doc, docFreq, n, avgLength)
	}
	return embeddings, nil
}

// vector scores each term of doc and accumulates it into its hashed
// dimension. IDF uses the non-negative form log(1 + (N-df+0.5)/(df+0.5)).
func (e *BM25Embedder) vector(doc bm25Doc, docFreq map[string]int, n, avgLength float64) []float32 {
	vec := make([]float32, e.dimensions)
	if doc.length == 0 || avgLength == 0 {
		return vec
	}

	norm := 1 - e.b + e.b*(float64(doc.length)/avgLength)
	// sorted so hash collisions accumulate in a fixed order
	for _, term := range slices.Sorted(maps.Keys(doc.termFreq)) {
		tf := doc.termFreq[term]
		df := float64(docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score := idf * (float64(tf) * (e.k1 + 1)) / (float64(tf) + e.k1*norm)
		vec[e.hashTerm(term)] += float32(score)
	}

	l2Normalize(vec)
	return vec
}

// Dimensions returns the dimensionality of embeddings.
func (e *BM25Embedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model identifier.
func (e *BM25Embedder) Model() string {
	return fmt.Sprintf("bm25-go-k%.1f-b%.2f", e.k1, e.b)
}

// Close is a no-op.
func (e *BM25Embedder) Close() error {
	return nil
}

// tokenize lowercases text, splits it on non-alphanumeric runes and drops
// one-rune tokens.
func (e *BM25Embedder) tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, tok := range fields {
		if len([]rune(tok)) < 2 {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// hashTerm maps a term to a dimension using FNV-1a.
func (e *BM25Embedder) hashTerm(term string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dimensions))
}

func l2Normalize(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}

	norm := float32(math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] /= norm
	}
}
