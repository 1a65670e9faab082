// Copyright 2025 The Lexigraph Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reprocess

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/pipeline"
	"github.com/lexigraph/lexigraph/storage"
	"github.com/lexigraph/lexigraph/vectorstore"
)

// Config holds configuration for a reprocessing run.
type Config struct {
	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reprocessor re-embeds every completed document of an owner with the
// configured embedder and rewrites the vector index. Used after switching
// embedding models, when the stored vectors no longer match what queries
// produce.
type Reprocessor struct {
	documents storage.DocumentRepository
	embedder  ai.Embedder
	vectors   *vectorstore.Store
	config    *Config
	progress  io.Writer
}

// NewReprocessor creates a new reprocessor.
// progress: where to write progress output (typically os.Stderr)
func NewReprocessor(
	documents storage.DocumentRepository,
	embedder ai.Embedder,
	vectors *vectorstore.Store,
	config *Config,
	progress io.Writer,
) *Reprocessor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reprocessor{
		documents: documents,
		embedder:  embedder,
		vectors:   vectors,
		config:    config,
		progress:  progress,
	}
}

// Run executes the reprocessing operation for one owner. Every completed
// document is re-embedded chunk by chunk; documents whose embedding fails are
// reported and skipped, they keep their previous vectors.
func (r *Reprocessor) Run(ctx context.Context, ownerId string) error {
	documents, err := r.documents.ListDocumentsByStatus(ctx, ownerId, core.StatusCompleted)
	if err != nil {
		return fmt.Errorf("listing completed documents: %w", err)
	}

	total := len(documents)
	if total == 0 {
		fmt.Fprintf(r.progress, "No completed documents for owner %s\n", ownerId)
		return nil
	}

	fmt.Fprintf(r.progress, "Reprocessing %d documents for owner %s\n", total, ownerId)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	skipped := 0
	for _, document := range documents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.reprocessDocument(ctx, document); err != nil {
			fmt.Fprintf(r.progress, "\nskipping %s: %v\n", document.Id, err)
			skipped++
		}
		tracker.Increment(1)
	}
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reprocessing complete. %d documents in %v (%d skipped)\n",
		total, elapsed.Round(time.Second), skipped)
	return nil
}

// reprocessDocument re-embeds one document's chunks plus its document-level
// embedding, then replaces its vector records. The record is only updated
// after both the embedding and storage steps succeed.
func (r *Reprocessor) reprocessDocument(ctx context.Context, document *core.Document) error {
	if len(document.Chunks) == 0 {
		return fmt.Errorf("document has no chunks")
	}

	chunks := make([]core.Chunk, len(document.Chunks))
	copy(chunks, document.Chunks)

	for i := range chunks {
		var embedding []float32
		err := pipeline.RetryWithBackoff(ctx, func() error {
			var embedErr error
			embedding, embedErr = r.embedder.EmbedText(ctx, chunks[i].Content)
			return embedErr
		}, r.config.MaxRetries, r.config.RetryDelay)
		if err != nil {
			return fmt.Errorf("embedding chunk %s: %w", chunks[i].Id, err)
		}
		chunks[i].Embedding = embedding
	}

	textEmbedding, err := r.embedder.EmbedText(ctx, document.Content)
	if err != nil {
		return fmt.Errorf("embedding document text: %w", err)
	}

	meta := vectorstore.DocumentMetadata{
		DocumentType: document.DocumentType,
		Title:        document.Title,
		Tags:         document.Tags,
		CreatedAt:    document.CreatedAt,
	}
	err = pipeline.RetryWithBackoff(ctx, func() error {
		return r.vectors.Store(ctx, document.OwnerId, document.Id, chunks, meta)
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("storing vectors: %w", err)
	}

	document.Chunks = chunks
	document.Embeddings.Text = textEmbedding
	if _, err := r.documents.UpdateDocument(ctx, document); err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	return nil
}
