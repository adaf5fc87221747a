// Package vectorizer turns text into embedding vectors for vector fields.
package vectorizer

import (
	"context"
	"errors"
)

// ErrProviderError marks failures originating in the embedding provider.
var ErrProviderError = errors.New("embedding provider error")

// Vectorizer produces fixed-width embeddings for text.
type Vectorizer interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedMany returns one embedding per input text, in input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// Dims reports the embedding width the provider is configured for.
	Dims() int
}
