package badger

import "fmt"

// Key prefixes for different data types
const (
	documentPrefix = "docrec"
)

// makeDocumentKey generates a key for a document, scoped to its owner.
// Format: prefix:ownerId:documentId
func makeDocumentKey(ownerId, documentId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentPrefix, ownerId, documentId))
}

// makeOwnerPrefix generates the iteration prefix for one owner's documents.
func makeOwnerPrefix(ownerId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, ownerId))
}
