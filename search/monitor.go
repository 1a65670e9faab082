package search

import "github.com/lexigraph/lexigraph/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(ids []string)
	VerbatimHit(recordId string)
	Finish(results []core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                 {}
func (n *noopMonitor) AfterSemanticSearch(_ []string) {}
func (n *noopMonitor) VerbatimHit(_ string)           {}
func (n *noopMonitor) Finish(_ []core.SearchResult)   {}
