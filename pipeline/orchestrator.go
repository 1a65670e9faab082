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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/chunking"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/extraction"
	"github.com/lexigraph/lexigraph/storage"
	"github.com/lexigraph/lexigraph/vectorstore"
)

const (
	defaultEmbedBatchSize = 5
	defaultItemDelay      = 200 * time.Millisecond
	defaultBatchDelay     = time.Second

	storeRetryAttempts = 3
	storeRetryBase     = 500 * time.Millisecond
)

// Orchestrator drives a document through chunking, embedding, knowledge
// graph extraction, and completion. Embedding and graph failures degrade the
// document rather than failing it: the run records them as warnings and the
// document still completes with reduced capability. Only unreadable content
// fails a run.
//
// Runs for the same document are non-reentrant; runs for different documents
// are independent.
type Orchestrator struct {
	documents storage.DocumentRepository
	chunker   *chunking.Engine
	embedder  ai.Embedder
	vectors   *vectorstore.Store
	extractor *extraction.Extractor
	notifier  Notifier
	pool      *ants.Pool

	chunkOpts      chunking.Options
	embedBatchSize int
	itemDelay      time.Duration
	batchDelay     time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithChunkingOptions sets the chunking options applied to every document.
// Default is chunking.DefaultOptions().
func WithChunkingOptions(opts chunking.Options) Option {
	return func(o *Orchestrator) error {
		o.chunkOpts = opts
		return nil
	}
}

// WithEmbedPacing tunes embedding throughput: batch size, delay between
// consecutive items within a batch, and delay between batches. The defaults
// (5, 200ms, 1s) deliberately cap throughput to respect upstream rate
// limits.
func WithEmbedPacing(batchSize int, itemDelay, batchDelay time.Duration) Option {
	return func(o *Orchestrator) error {
		if batchSize < 1 {
			return fmt.Errorf("embed batch size must be at least 1, got %d", batchSize)
		}
		o.embedBatchSize = batchSize
		o.itemDelay = itemDelay
		o.batchDelay = batchDelay
		return nil
	}
}

// WithNotifier sets the lifecycle event sink.
// Default discards events.
func WithNotifier(notifier Notifier) Option {
	return func(o *Orchestrator) error {
		if notifier == nil {
			notifier = noopNotifier{}
		}
		o.notifier = notifier
		return nil
	}
}

// WithPoolSize sets the worker pool size for detached processing runs.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pool != nil {
			o.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a processing orchestrator.
func NewOrchestrator(
	documents storage.DocumentRepository,
	embedder ai.Embedder,
	vectors *vectorstore.Store,
	extractor *extraction.Extractor,
	opts ...Option,
) (*Orchestrator, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	chunker, err := chunking.NewEngine()
	if err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		documents:      documents,
		chunker:        chunker,
		embedder:       embedder,
		vectors:        vectors,
		extractor:      extractor,
		notifier:       noopNotifier{},
		pool:           pool,
		chunkOpts:      chunking.DefaultOptions(),
		embedBatchSize: defaultEmbedBatchSize,
		itemDelay:      defaultItemDelay,
		batchDelay:     defaultBatchDelay,
		logger:         slog.Default().With("component", "pipeline"),
		inFlight:       make(map[string]bool),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(o); err != nil {
			o.Release()
			return nil, err
		}
	}

	return o, nil
}

// Release releases the worker pool.
// The orchestrator should not be used after calling Release.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Submit schedules a detached processing run and returns immediately.
// Errors during the run are logged and emitted through the notifier, never
// returned to the caller.
func (o *Orchestrator) Submit(ownerId, documentId string) error {
	return o.pool.Submit(func() {
		if err := o.Process(context.Background(), ownerId, documentId); err != nil {
			o.logger.Error("detached processing run failed",
				"ownerId", ownerId, "documentId", documentId, "err", err)
		}
	})
}

// Process runs the full pipeline for one document synchronously:
// pending -> processing -> completed | failed.
func (o *Orchestrator) Process(ctx context.Context, ownerId, documentId string) error {
	key := ownerId + "/" + documentId
	if !o.begin(key) {
		return ErrAlreadyProcessing
	}
	defer o.end(key)

	document, err := o.documents.GetDocument(ctx, ownerId, documentId)
	if err != nil {
		return err
	}

	if !core.CanTransition(document.Status, core.StatusProcessing) {
		// A run that crashed mid-flight leaves the record in processing;
		// the in-flight map above is the reentrancy authority, so take over.
		o.logger.Warn("document stuck in processing state, taking over",
			"ownerId", ownerId, "documentId", documentId)
	}

	document.Status = core.StatusProcessing
	document.ProcessingErrors = nil
	if document, err = o.documents.UpdateDocument(ctx, document); err != nil {
		return fmt.Errorf("entering processing state: %w", err)
	}

	content, err := o.resolveContent(document)
	if err != nil {
		return o.fail(ctx, document, err)
	}

	// Chunking never aborts ingestion: the engine falls back to fixed
	// splitting internally on any strategy error.
	chunkOpts := o.chunkOpts
	chunkOpts.DocumentType = document.DocumentType
	chunks := o.chunker.Chunk(content, chunkOpts)
	if len(chunks) == 0 {
		return o.fail(ctx, document, fmt.Errorf("%w: no chunks produced", ErrContentUnavailable))
	}

	var warnings []string

	valid := chunks[:0]
	for _, chunk := range chunks {
		if err := core.ValidateChunk(&chunk); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropping malformed chunk %s: %v", chunk.Id, err))
			continue
		}
		valid = append(valid, chunk)
	}
	chunks = valid
	if len(chunks) == 0 {
		return o.fail(ctx, document, fmt.Errorf("%w: no valid chunks produced", ErrContentUnavailable))
	}

	warnings = append(warnings, o.embedChunks(ctx, chunks, documentId)...)

	if textEmbedding, err := o.embedder.EmbedText(ctx, content); err != nil {
		warnings = append(warnings, fmt.Sprintf("document embedding unavailable: %v", err))
	} else {
		document.Embeddings.Text = textEmbedding
	}

	warnings = append(warnings, o.storeVectors(ctx, document, chunks)...)

	if graph, err := o.extractor.ExtractKnowledgeGraph(ctx, chunks, document.Id, document.Title); err != nil {
		warnings = append(warnings, fmt.Sprintf("knowledge graph extraction unavailable: %v", err))
	} else {
		document.GraphNodes = graph.Entities
		document.GraphEdges = graph.Relationships
	}

	document.Chunks = chunks
	document.Status = core.StatusCompleted
	document.ProcessingErrors = warnings
	document.LastProcessedAt = time.Now().UTC().Truncate(time.Microsecond)

	if _, err := o.documents.UpdateDocument(ctx, document); err != nil {
		// Completion requires the record to be durably updated.
		o.notifier.OnDocumentProcessingError(documentId, ownerId, err)
		return fmt.Errorf("recording completion: %w", err)
	}

	o.logger.Info("document processed",
		"ownerId", ownerId, "documentId", documentId,
		"chunks", len(chunks), "warnings", len(warnings))
	o.notifier.OnDocumentProcessed(documentId, ownerId, core.StatusCompleted)
	return nil
}

// Delete removes a document and all of its vector records.
func (o *Orchestrator) Delete(ctx context.Context, ownerId, documentId string) error {
	if err := o.vectors.DeleteDocument(ctx, documentId); err != nil {
		return err
	}
	return o.documents.DeleteDocument(ctx, ownerId, documentId)
}

// begin marks a document in flight. Returns false if a run is active.
func (o *Orchestrator) begin(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[key] {
		return false
	}
	o.inFlight[key] = true
	return true
}

func (o *Orchestrator) end(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, key)
}

// resolveContent returns the document's inline content, or reads the source
// path as UTF-8 text. Format-specific extraction is out of scope; binary
// formats pass through as raw text.
func (o *Orchestrator) resolveContent(document *core.Document) (string, error) {
	if strings.TrimSpace(document.Content) != "" {
		return document.Content, nil
	}
	if document.SourcePath == "" {
		return "", ErrContentUnavailable
	}
	data, err := os.ReadFile(document.SourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrContentUnavailable, document.SourcePath, err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrContentUnavailable, document.SourcePath)
	}
	return content, nil
}

// embedChunks populates chunk embeddings in small sequential batches with
// inter-item and inter-batch delays. The pacing is a deliberate throughput
// cap against upstream rate limits, not a correctness requirement. Each
// failed chunk is recorded as a warning and skipped.
func (o *Orchestrator) embedChunks(ctx context.Context, chunks []core.Chunk, documentId string) []string {
	var warnings []string
	for start := 0; start < len(chunks); start += o.embedBatchSize {
		end := start + o.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		for i := start; i < end; i++ {
			if i > start && o.itemDelay > 0 {
				if !sleepCtx(ctx, o.itemDelay) {
					warnings = append(warnings, "embedding interrupted: context cancelled")
					return warnings
				}
			}
			embedding, err := o.embedder.EmbedText(ctx, chunks[i].Content)
			if err != nil {
				o.logger.Warn("chunk embedding failed",
					"documentId", documentId, "chunkId", chunks[i].Id, "err", err)
				warnings = append(warnings, fmt.Sprintf("embedding chunk %s: %v", chunks[i].Id, err))
				continue
			}
			chunks[i].Embedding = embedding
		}

		if end < len(chunks) && o.batchDelay > 0 {
			if !sleepCtx(ctx, o.batchDelay) {
				warnings = append(warnings, "embedding interrupted: context cancelled")
				return warnings
			}
		}
	}
	return warnings
}

// storeVectors upserts embedded chunks, retrying transient backend failures
// before degrading to a warning.
func (o *Orchestrator) storeVectors(ctx context.Context, document *core.Document, chunks []core.Chunk) []string {
	embedded := 0
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			embedded++
		}
	}
	if embedded == 0 {
		return nil
	}

	meta := vectorstore.DocumentMetadata{
		DocumentType: document.DocumentType,
		Title:        document.Title,
		Tags:         document.Tags,
		CreatedAt:    document.CreatedAt,
	}
	err := RetryWithBackoff(ctx, func() error {
		return o.vectors.Store(ctx, document.OwnerId, document.Id, chunks, meta)
	}, storeRetryAttempts, storeRetryBase)
	if err != nil {
		o.logger.Warn("vector storage failed",
			"documentId", document.Id, "err", err)
		return []string{fmt.Sprintf("storing vectors: %v", err)}
	}
	return nil
}

// fail transitions the document to failed with a human-readable error and
// emits the error event. Fatal failures are reserved for unreadable content;
// everything else degrades to a warning on a completed document.
func (o *Orchestrator) fail(ctx context.Context, document *core.Document, cause error) error {
	document.Status = core.StatusFailed
	document.ProcessingErrors = append(document.ProcessingErrors, cause.Error())
	document.LastProcessedAt = time.Now().UTC().Truncate(time.Microsecond)
	if _, err := o.documents.UpdateDocument(ctx, document); err != nil {
		o.logger.Error("failed to record failure status",
			"documentId", document.Id, "err", err)
	}
	o.notifier.OnDocumentProcessingError(document.Id, document.OwnerId, cause)
	o.notifier.OnDocumentProcessed(document.Id, document.OwnerId, core.StatusFailed)
	return cause
}

// sleepCtx sleeps for the duration unless the context is cancelled first.
// Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
