// Package vectorstore persists embedded chunks and answers similarity
// queries over them behind one backend-agnostic contract.
//
// A Store wraps a Backend, converting chunks into vector records at
// ingestion time and embedding query text at search time. Backends are
// interchangeable: the pinecone subpackage talks to a managed serverless
// index, the chroma subpackage to a self-hosted index, and the memory
// subpackage keeps everything in-process for tests and local runs. All
// backends report scores on a common "higher is more similar" scale in
// roughly [0,1]; distance-reporting indexes are converted as 1 - distance.
//
// Besides plain semantic search the store offers hybrid search, which
// linearly combines vector similarity with literal keyword matches so
// exact-phrase queries still surface documents the embedding space ranks
// poorly.
package vectorstore
