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


package lexigraph

import (
	"log/slog"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/ai/ollama"
	"github.com/lexigraph/lexigraph/ai/openai"
	"github.com/lexigraph/lexigraph/extraction"
	"github.com/lexigraph/lexigraph/pipeline"
	"github.com/lexigraph/lexigraph/search"
	"github.com/lexigraph/lexigraph/storage"
	"github.com/lexigraph/lexigraph/storage/badger"
	"github.com/lexigraph/lexigraph/vectorstore"
	"github.com/lexigraph/lexigraph/vectorstore/memory"
)

// Corpus wires the full document pipeline behind a single handle: document
// storage, the AI provider stack, the vector store, the processing
// orchestrator and the searcher.
type Corpus struct {
	backend      *badger.Backend
	documents    storage.DocumentRepository
	provider     ai.Provider
	embedder     ai.Embedder
	store        *vectorstore.Store
	extractor    *extraction.Extractor
	orchestrator *pipeline.Orchestrator
	searcher     *search.Searcher
	logger       *slog.Logger
}

// CorpusOption configures a Corpus.
type CorpusOption func(*corpusOptions)

type corpusOptions struct {
	aiConfig        *ai.Config
	provider        ai.Provider
	vectorBackend   vectorstore.Backend
	fallbackHost    string
	fallbackModel   string
	inMemory        bool
	pipelineOptions []pipeline.Option
}

// WithAIConfig sets the configuration for the default OpenAI-compatible
// provider. Ignored when WithProvider supplies one.
func WithAIConfig(config *ai.Config) CorpusOption {
	return func(o *corpusOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider instead of constructing the
// default OpenAI-compatible one.
func WithProvider(provider ai.Provider) CorpusOption {
	return func(o *corpusOptions) {
		o.provider = provider
	}
}

// WithVectorBackend sets the vector index backend.
// Default is an in-process index.
func WithVectorBackend(backend vectorstore.Backend) CorpusOption {
	return func(o *corpusOptions) {
		o.vectorBackend = backend
	}
}

// WithFallbackEmbedder adds an Ollama-served embedding provider that the
// gateway falls back to when the primary embedder fails.
func WithFallbackEmbedder(serverURL, model string) CorpusOption {
	return func(o *corpusOptions) {
		o.fallbackHost = serverURL
		o.fallbackModel = model
	}
}

// WithInMemoryStorage keeps document records in memory instead of on disk.
// Intended for tests.
func WithInMemoryStorage() CorpusOption {
	return func(o *corpusOptions) {
		o.inMemory = true
	}
}

// WithPipelineOptions forwards options to the processing orchestrator.
func WithPipelineOptions(opts ...pipeline.Option) CorpusOption {
	return func(o *corpusOptions) {
		o.pipelineOptions = append(o.pipelineOptions, opts...)
	}
}

// NewCorpus opens the document store at filePath and wires the processing and
// search stack around it.
func NewCorpus(filePath string, opts ...CorpusOption) (*Corpus, error) {
	options := &corpusOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	documents := badger.NewDocumentRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	embedder, err := buildEmbedder(provider, options)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	vectorBackend := options.vectorBackend
	if vectorBackend == nil {
		vectorBackend = memory.NewBackend()
	}
	store, err := vectorstore.NewStore(vectorBackend, embedder)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	extractor, err := extraction.NewExtractor(provider)
	if err != nil {
		store.Close()
		provider.Close()
		backend.Close()
		return nil, err
	}

	orchestrator, err := pipeline.NewOrchestrator(documents, embedder, store, extractor,
		options.pipelineOptions...)
	if err != nil {
		extractor.Release()
		store.Close()
		provider.Close()
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(documents, store)
	if err != nil {
		orchestrator.Release()
		extractor.Release()
		store.Close()
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Corpus{
		backend:      backend,
		documents:    documents,
		provider:     provider,
		embedder:     embedder,
		store:        store,
		extractor:    extractor,
		orchestrator: orchestrator,
		searcher:     searcher,
		logger:       slog.Default(),
	}, nil
}

// buildEmbedder assembles the embedding gateway from the provider's embedder
// plus any configured fallback. A provider whose embedder does not expose a
// gateway identity is used directly.
func buildEmbedder(provider ai.Provider, options *corpusOptions) (ai.Embedder, error) {
	providers := make([]ai.EmbeddingProvider, 0, 2)
	if primary, ok := provider.Embedder().(ai.EmbeddingProvider); ok {
		providers = append(providers, primary)
	}
	if options.fallbackHost != "" {
		fallback, err := ollama.NewEmbeddingProvider(options.fallbackHost, options.fallbackModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fallback)
	}

	if len(providers) == 0 {
		return provider.Embedder(), nil
	}
	return ai.NewEmbeddingGateway(providers)
}

// Close releases every component. The orchestrator drains first so no run
// touches a closed store.
func (c *Corpus) Close() error {
	c.orchestrator.Release()
	c.extractor.Release()

	if err := c.provider.Close(); err != nil {
		c.logger.Error("error closing AI provider", "err", err)
	}
	if err := c.store.Close(); err != nil {
		c.logger.Error("error closing vector store", "err", err)
		return err
	}
	if err := c.backend.Close(); err != nil {
		c.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

// Documents returns the document repository.
func (c *Corpus) Documents() storage.DocumentRepository {
	return c.documents
}

// Orchestrator returns the processing orchestrator.
func (c *Corpus) Orchestrator() *pipeline.Orchestrator {
	return c.orchestrator
}

// Searcher returns the query interface.
func (c *Corpus) Searcher() *search.Searcher {
	return c.searcher
}

// VectorStore returns the vector store.
func (c *Corpus) VectorStore() *vectorstore.Store {
	return c.store
}
