package pipeline

import "github.com/lexigraph/lexigraph/core"

// Notifier receives fire-and-forget lifecycle events from the orchestrator.
// Implementations must not block; events are emitted from the processing
// goroutine after the document record has been updated.
type Notifier interface {
	// OnDocumentProcessed is called when a document reaches a terminal
	// status, completed or failed.
	OnDocumentProcessed(documentId, ownerId string, status core.ProcessingStatus)

	// OnDocumentProcessingError is called when a run fails fatally.
	OnDocumentProcessingError(documentId, ownerId string, err error)
}

// noopNotifier discards all events.
type noopNotifier struct{}

func (noopNotifier) OnDocumentProcessed(string, string, core.ProcessingStatus) {}

func (noopNotifier) OnDocumentProcessingError(string, string, error) {}
