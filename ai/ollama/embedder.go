package ollama

import (
	"context"
	"log/slog"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama's native API accepts long inputs but silently truncates to the
// model context; bounding here keeps behaviour explicit.
const defaultMaxChars = 4000

// Embedder implements ai.EmbeddingProvider against a local Ollama server's
// native API. It is typically configured as the fallback backend behind an
// OpenAI-compatible primary.
type Embedder struct {
	embedder embeddings.Embedder
	maxChars int
	logger   *slog.Logger
}

// NewEmbeddingProvider creates an embedding provider backed by the Ollama
// server at serverURL.
//
// Returns ai.EmbeddingProvider interface to enforce abstraction.
func NewEmbeddingProvider(serverURL, model string) (ai.EmbeddingProvider, error) {
	client, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		maxChars: defaultMaxChars,
		logger:   slog.Default().With("component", "ollama-embedder"),
	}, nil
}

var _ ai.EmbeddingProvider = (*Embedder)(nil)

// Name identifies the provider in logs and errors.
func (e *Embedder) Name() string { return "ollama" }

// MaxTextLength is the input limit in characters.
func (e *Embedder) MaxTextLength() int { return e.maxChars }

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vectors, nil
}
