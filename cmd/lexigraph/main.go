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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lexigraph/lexigraph"
	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/ai/openai"
	"github.com/lexigraph/lexigraph/core"
	"github.com/lexigraph/lexigraph/reprocess"
	"github.com/lexigraph/lexigraph/storage/badger"
	"github.com/lexigraph/lexigraph/vectorstore"
	"github.com/lexigraph/lexigraph/vectorstore/chroma"
	"github.com/lexigraph/lexigraph/vectorstore/memory"
	"github.com/lexigraph/lexigraph/vectorstore/pinecone"
)

func main() {
	app := &cli.App{
		Name:  "lexigraph",
		Usage: "Document knowledge pipeline: chunking, embeddings, knowledge graphs and search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add a document and run it through the processing pipeline",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: append(corpusFlags(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "Document title (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Document type hint (text, markdown, code)",
						Value: "text",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag to attach to the document (repeatable)",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search processed documents",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "semantic-only",
						Usage: "Skip keyword matching and rank purely by similarity",
					},
				),
			},
			{
				Name:      "similar",
				Usage:     "Find documents similar to an existing one",
				ArgsUsage: "<document-id>",
				Action:    similarCommand,
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of documents",
						Value: 5,
					},
				),
			},
			{
				Name:      "status",
				Usage:     "Show the processing status of a document",
				ArgsUsage: "<document-id>",
				Action:    statusCommand,
				Flags:     corpusFlags(),
			},
			{
				Name:   "list",
				Usage:  "List documents for an owner",
				Action: listCommand,
				Flags: append(corpusFlags(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only list documents with this status (pending, processing, completed, failed)",
					},
				),
			},
			{
				Name:      "delete",
				Usage:     "Delete a document, its vectors and its graph",
				ArgsUsage: "<document-id>",
				Action:    deleteCommand,
				Flags:     corpusFlags(),
			},
			{
				Name:   "reprocess",
				Usage:  "Re-embed all completed documents after an embedding model change",
				Action: reprocessCommand,
				Flags: append(corpusFlags(),
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// corpusFlags are shared by every command that opens the corpus.
func corpusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the document database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "owner",
			Aliases:  []string{"o"},
			Usage:    "Owner id scoping all operations",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "extractor-host",
			Usage: "Extraction service host URL (defaults to embedding-host)",
		},
		&cli.StringFlag{
			Name:  "extractor-model",
			Usage: "Extraction model name",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:  "api-token",
			Usage: "API token for the AI services",
			Value: "none",
		},
		&cli.StringFlag{
			Name:  "fallback-embedding-host",
			Usage: "Ollama host used when the primary embedder fails",
		},
		&cli.StringFlag{
			Name:  "fallback-embedding-model",
			Usage: "Model served by the fallback embedder",
		},
		&cli.StringFlag{
			Name:  "vector-backend",
			Usage: "Vector index backend (memory, pinecone, chroma)",
			Value: "memory",
		},
		&cli.StringFlag{
			Name:    "pinecone-host",
			Usage:   "Pinecone index host URL",
			EnvVars: []string{"PINECONE_HOST"},
		},
		&cli.StringFlag{
			Name:    "pinecone-api-key",
			Usage:   "Pinecone API key",
			EnvVars: []string{"PINECONE_API_KEY"},
		},
		&cli.StringFlag{
			Name:  "pinecone-namespace",
			Usage: "Pinecone namespace",
		},
		&cli.StringFlag{
			Name:  "chroma-url",
			Usage: "Chroma server URL",
			Value: "http://localhost:8000",
		},
		&cli.StringFlag{
			Name:  "chroma-collection",
			Usage: "Chroma collection name",
			Value: "lexigraph",
		},
	}
}

func openCorpus(c *cli.Context) (*lexigraph.Corpus, error) {
	extractorHost := c.String("extractor-host")
	if extractorHost == "" {
		extractorHost = c.String("embedding-host")
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorHost(extractorHost),
		ai.WithExtractorModel(c.String("extractor-model")),
		ai.WithAPIToken(c.String("api-token")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	vectorBackend, err := buildVectorBackend(c)
	if err != nil {
		return nil, err
	}

	opts := []lexigraph.CorpusOption{
		lexigraph.WithAIConfig(aiConfig),
		lexigraph.WithVectorBackend(vectorBackend),
	}
	if host := c.String("fallback-embedding-host"); host != "" {
		opts = append(opts, lexigraph.WithFallbackEmbedder(host, c.String("fallback-embedding-model")))
	}

	return lexigraph.NewCorpus(c.String("db"), opts...)
}

func buildVectorBackend(c *cli.Context) (vectorstore.Backend, error) {
	switch c.String("vector-backend") {
	case "memory":
		return memory.NewBackend(), nil
	case "pinecone":
		return pinecone.NewBackend(pinecone.Config{
			Host:      c.String("pinecone-host"),
			APIKey:    c.String("pinecone-api-key"),
			Namespace: c.String("pinecone-namespace"),
		})
	case "chroma":
		return chroma.NewBackend(chroma.Config{
			URL:        c.String("chroma-url"),
			Collection: c.String("chroma-collection"),
		})
	default:
		return nil, fmt.Errorf("unknown vector backend %q: must be one of memory, pinecone, chroma", c.String("vector-backend"))
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	title := c.String("title")
	if title == "" {
		title = filepath.Base(path)
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	ctx := context.Background()
	document, err := corpus.Documents().CreateDocument(ctx, &core.Document{
		OwnerId:      c.String("owner"),
		Title:        title,
		DocumentType: c.String("type"),
		Tags:         c.StringSlice("tag"),
		SourcePath:   path,
	})
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}

	if err := corpus.Orchestrator().Process(ctx, document.OwnerId, document.Id); err != nil {
		return fmt.Errorf("processing document %s: %w", document.Id, err)
	}

	processed, err := corpus.Documents().GetDocument(ctx, document.OwnerId, document.Id)
	if err != nil {
		return err
	}

	fmt.Printf("Document: %s\n", processed.Id)
	fmt.Printf("Status:   %s\n", processed.Status)
	fmt.Printf("Chunks:   %d\n", len(processed.Chunks))
	fmt.Printf("Entities: %d\n", len(processed.GraphNodes))
	fmt.Printf("Edges:    %d\n", len(processed.GraphEdges))
	for _, warning := range processed.ProcessingErrors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one query argument")
	}
	query := c.Args().First()

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	ctx := context.Background()
	owner := c.String("owner")
	topK := c.Int("top-k")

	var results []core.SearchResult
	if c.Bool("semantic-only") {
		results, err = corpus.Searcher().SemanticSearch(ctx, owner, query, topK)
	} else {
		results, err = corpus.Searcher().HybridSearch(ctx, owner, query, topK)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.3f] %s (%s)\n", i+1, result.Score, result.DocumentId, result.ChunkId)
		fmt.Printf("    %s\n", snippet(result.Content, 160))
	}
	return nil
}

func similarCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document-id argument")
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	results, err := corpus.Searcher().FindSimilarDocuments(
		context.Background(), c.String("owner"), c.Args().First(), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("similarity query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No similar documents.")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.3f] %s\n", i+1, result.Score, result.DocumentId)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document-id argument")
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	document, err := corpus.Documents().GetDocument(
		context.Background(), c.String("owner"), c.Args().First())
	if err != nil {
		return err
	}

	fmt.Printf("Document: %s\n", document.Id)
	fmt.Printf("Title:    %s\n", document.Title)
	fmt.Printf("Status:   %s\n", document.Status)
	fmt.Printf("Chunks:   %d\n", len(document.Chunks))
	fmt.Printf("Entities: %d\n", len(document.GraphNodes))
	fmt.Printf("Edges:    %d\n", len(document.GraphEdges))
	if !document.LastProcessedAt.IsZero() {
		fmt.Printf("Processed: %s\n", document.LastProcessedAt.Format("2006-01-02 15:04:05"))
	}
	for _, warning := range document.ProcessingErrors {
		fmt.Printf("Warning:  %s\n", warning)
	}
	return nil
}

func listCommand(c *cli.Context) error {
	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	ctx := context.Background()
	owner := c.String("owner")

	var documents []*core.Document
	if status := c.String("status"); status != "" {
		documents, err = corpus.Documents().ListDocumentsByStatus(ctx, owner, core.ProcessingStatus(status))
	} else {
		documents, err = corpus.Documents().ListDocuments(ctx, owner)
	}
	if err != nil {
		return err
	}

	if len(documents) == 0 {
		fmt.Println("No documents.")
		return nil
	}
	for _, document := range documents {
		fmt.Printf("%s  %-10s  %s\n", document.Id, document.Status, document.Title)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document-id argument")
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	documentId := c.Args().First()
	if err := corpus.Orchestrator().Delete(context.Background(), c.String("owner"), documentId); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentId, err)
	}
	fmt.Printf("Deleted %s\n", documentId)
	return nil
}

func reprocessCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()
	repo := badger.NewDocumentRepository(backend)

	extractorHost := c.String("extractor-host")
	if extractorHost == "" {
		extractorHost = c.String("embedding-host")
	}
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorHost(extractorHost),
		ai.WithExtractorModel(c.String("extractor-model")),
		ai.WithAPIToken(c.String("api-token")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	vectorBackend, err := buildVectorBackend(c)
	if err != nil {
		return err
	}
	store, err := vectorstore.NewStore(vectorBackend, embedder)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer store.Close()

	config := &reprocess.Config{
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	runner := reprocess.NewReprocessor(repo, embedder, store, config, os.Stderr)
	if err := runner.Run(ctx, c.String("owner")); err != nil {
		return fmt.Errorf("reprocessing failed: %w", err)
	}
	return nil
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "…"
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
