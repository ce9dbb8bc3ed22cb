// Package embeddings turns product and query text into vectors for the
// recommendation index.
package embeddings

import (
	"context"
	"errors"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder turns texts into fixed-size vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

var errNoVector = errors.New("embedder returned no vector")

// ToChromemFunc adapts e to chromem's one-text-at-a-time embedding func.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, errNoVector
		}
		return vecs[0], nil
	}
}
