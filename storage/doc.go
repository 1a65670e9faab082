// Package storage defines the document persistence contract.
//
// The pipeline treats the document store as opaque: it creates a record when
// ingestion begins, reads content and metadata during processing, and writes
// chunks, embeddings, graph nodes, and lifecycle status as stages complete.
// Repository interfaces live here; the badger subpackage provides the
// embedded BadgerDB implementation used by default.
//
// Documents are serialized with the MUS binary format for compact storage
// of embedding vectors.
package storage
