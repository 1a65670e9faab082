// Package reprocess rebuilds embeddings for documents that were already
// processed, typically after an embedding model change. It walks an owner's
// completed documents, re-embeds every chunk with retry, rewrites the vector
// index and updates the stored records, reporting progress along the way.
package reprocess
