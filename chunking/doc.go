// Package chunking splits raw document text into typed, leveled chunks under
// size constraints.
//
// Four strategies are available:
//
//   - fixed: sentence-boundary accumulation with word-count overlap
//   - semantic: fixed plus neighbour-coherence scoring
//   - agentic: reserved, currently delegates to semantic
//   - hybrid: semantic plus recursive re-splitting of oversized chunks
//
// A failing strategy degrades to fixed chunking rather than propagating an
// error; chunking never aborts document ingestion.
package chunking
