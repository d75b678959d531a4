// Package embedding defines the text embedding engine used for semantic
// retrieval plus the similarity scoring shared by all stores. Concrete
// backends live in subpackages (mock for tests, openai for production).
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrModelLoad indicates the underlying embedding model failed to load.
	// Initialization is not retried after a load failure.
	ErrModelLoad = errors.New("embedding model failed to load")

	// ErrDimensionMismatch indicates two vectors of different lengths were
	// compared.
	ErrDimensionMismatch = errors.New("embedding vectors must have the same length")
)

// Engine converts text to fixed-length vectors. The model is loaded lazily
// exactly once; concurrent Initialize calls share a single in-flight load.
// Embed requires a successful Initialize and is deterministic for identical
// input.
type Engine interface {
	// Initialize loads the embedding model. Safe for concurrent use; only the
	// first call performs the load, later calls observe its result.
	Initialize(ctx context.Context) error

	// Embed converts text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// CosineSimilarity scores two vectors in [-1, 1]. Vectors of differing length
// yield ErrDimensionMismatch; a zero-magnitude vector scores 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	denominator := math.Sqrt(magA) * math.Sqrt(magB)
	if denominator == 0 {
		return 0, nil
	}
	return dot / denominator, nil
}
