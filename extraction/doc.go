// Package extraction builds knowledge graphs from chunked document text.
//
// Extraction runs in two phases. Per chunk, a rule-based linguistic tagger
// and a model-based extractor each propose entities; the proposals are
// merged by name, and when a chunk yields two or more entities a second
// model pass asks for relationships among exactly those entities. Chunks
// are processed concurrently and any single chunk's failure contributes an
// empty result rather than aborting the document.
//
// After all chunks fan back in, document-level resolution merges duplicate
// entities across chunks, deduplicates relationships, and runs co-occurrence
// inference: entity pairs whose chunk-id sets overlap strongly (Jaccard
// similarity above 0.5) are submitted to the model with their shared chunk
// context to discover relationships that never appear inside a single
// chunk. All resolution state is scoped to one extraction run; nothing is
// cached across documents.
package extraction
