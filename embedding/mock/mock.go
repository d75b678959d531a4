// Package mock provides a deterministic in-process embedding engine for tests
// and local development. Embeddings are derived from a text hash so identical
// input always yields identical vectors without any model download.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hupe1980/agentmem/embedding"
)

// Embedder generates deterministic hash-based embeddings.
type Embedder struct {
	dimensions int

	initOnce sync.Once
	initErr  error
	loadFn   func(ctx context.Context) error
}

// Options configure the mock embedder.
type Options struct {
	// Dimensions is the embedding vector size. Defaults to 384 to match
	// all-MiniLM-L6-v2 class models.
	Dimensions int

	// LoadFunc optionally simulates the model load performed by Initialize.
	// Used by tests to observe single-flight behavior or force load errors.
	LoadFunc func(ctx context.Context) error
}

// New creates a new mock embedder.
func New(optFns ...func(o *Options)) *Embedder {
	opts := Options{Dimensions: 384}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{dimensions: opts.Dimensions, loadFn: opts.LoadFunc}
}

// Initialize loads the simulated model exactly once. Concurrent calls share
// one in-flight load; a failed load is remembered and never retried.
func (e *Embedder) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		if e.loadFn == nil {
			return
		}
		if err := e.loadFn(ctx); err != nil {
			e.initErr = fmt.Errorf("%w: %v", embedding.ErrModelLoad, err)
		}
	})
	return e.initErr
}

// Embed creates a deterministic embedding from text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))

	// LCG seeded by the hash gives a stable pseudo-random unit vector.
	seed := h.Sum64()
	vec := make([]float64, e.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed)) / float64(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int { return e.dimensions }

func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
