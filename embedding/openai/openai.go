// Package openai provides an embedding.Engine backed by the OpenAI
// Embeddings API. It is the production counterpart of the mock embedder.
package openai

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentmem/embedding"
)

// Options configure the OpenAI embedder.
type Options struct {
	Model      openai.EmbeddingModel
	Dimensions int
}

// Embedder wraps the OpenAI Embeddings API behind the embedding.Engine interface.
type Embedder struct {
	client *openai.Client
	opts   Options

	// requireEnvKey marks embedders built on the default client, whose only
	// credential source is the environment.
	requireEnvKey bool

	initOnce sync.Once
	initErr  error
}

// New creates a new OpenAI embedder using the default client (API key from
// the environment).
func New(optFns ...func(o *Options)) *Embedder {
	client := openai.NewClient()
	e := NewFromClient(&client, optFns...)
	e.requireEnvKey = true
	return e
}

// NewFromClient creates a new OpenAI embedder from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Embedder {
	opts := Options{
		Model:      openai.EmbeddingModelTextEmbedding3Small,
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{client: client, opts: opts}
}

// Initialize validates configuration once. The remote model needs no local
// load, so this only fails when the embedder was built on the default client
// and no API key is present in the environment. Clients supplied through
// NewFromClient carry their own credentials and always initialize; auth
// failures there surface from the first Embed call. Concurrent calls share
// the single check.
func (e *Embedder) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		if e.requireEnvKey && os.Getenv("OPENAI_API_KEY") == "" {
			e.initErr = fmt.Errorf("%w: OPENAI_API_KEY is not configured", embedding.ErrModelLoad)
		}
	})
	return e.initErr
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.opts.Model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.opts.Dimensions }
