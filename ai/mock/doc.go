// Package mock provides test doubles for the ai package interfaces.
//
// The mocks generate deterministic results without network access so that
// pipeline, extraction, and store behavior can be tested in isolation. Each
// mock exposes injectable function fields for customizing behavior and call
// counters for verifying interactions:
//
//	provider := mock.NewMockProvider()
//	provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//		return nil, errors.New("embedding service down")
//	}
//
// Embeddings are derived from a hash of the input text, so the same text
// always produces the same vector and distinct texts almost always differ.
package mock
