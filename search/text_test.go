package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeAndFilter(t *testing.T) {
	words := tokenizeAndFilter("The Quick, brown fox is on a (fence)!")
	assert.Equal(t, []string{"quick", "brown", "fox", "fence"}, words)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		query   string
		want    bool
	}{
		{"all words present", "Quantum computing systems remain fragile.", "quantum computing", true},
		{"missing word", "Quantum systems remain fragile.", "quantum computing", false},
		{"stop words ignored", "computing with quantum hardware", "the quantum and computing", true},
		{"punctuation trimmed", "Hello, world!", "hello world", true},
		{"stop-word-only query", "any content at all", "the and of", false},
		{"empty query", "content", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.content, tt.query))
		})
	}
}
