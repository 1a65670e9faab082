// Package pipeline orchestrates document processing.
//
// A processing run moves a document through the lifecycle
// pending -> processing -> completed | failed. Chunking runs first and can
// never fail a document (the chunking engine falls back internally);
// embedding generation, vector storage, and knowledge graph extraction are
// each caught on failure and recorded as warnings on the document record, so
// text search stays available even when semantic search or graph enrichment
// is not. A document fails only when its content cannot be read at all.
//
// Runs are detached from the request that triggered ingestion: Submit
// enqueues the run on a worker pool and returns before processing completes.
// No two runs for the same document execute concurrently; runs for
// different documents are independent. Lifecycle transitions are emitted to
// a Notifier for consumption by external collaborators.
package pipeline
