package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/ai"
	"github.com/lexigraph/lexigraph/ai/mock"
)

func newTestGateway(t *testing.T, providers ...ai.EmbeddingProvider) *ai.EmbeddingGateway {
	t.Helper()
	gateway, err := ai.NewEmbeddingGateway(providers,
		ai.WithRateLimit(time.Millisecond),
		ai.WithRetry(3, time.Millisecond),
	)
	require.NoError(t, err)
	return gateway
}

func TestNewEmbeddingGateway_NoProviders(t *testing.T) {
	_, err := ai.NewEmbeddingGateway(nil)
	assert.ErrorIs(t, err, ai.ErrNoProviders)
}

func TestEmbeddingGateway_PrimarySucceeds(t *testing.T) {
	primary := mock.NewMockEmbedder()
	fallback := mock.NewMockEmbedder()
	gateway := newTestGateway(t, primary, fallback)

	embedding, err := gateway.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.NotEmpty(t, embedding)
	assert.Equal(t, 1, primary.CallCount())
	assert.Equal(t, 0, fallback.CallCount(), "fallback must not be consulted when the primary succeeds")
}

func TestEmbeddingGateway_FallbackOnFailure(t *testing.T) {
	primary := mock.NewMockEmbedder()
	primary.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}
	fallback := mock.NewMockEmbedder()
	gateway := newTestGateway(t, primary, fallback)

	embedding, err := gateway.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.NotEmpty(t, embedding)
	assert.Equal(t, 1, primary.CallCount(), "non-rate-limit errors must not be retried on the same provider")
	assert.Equal(t, 1, fallback.CallCount())
}

func TestEmbeddingGateway_AllProvidersFail(t *testing.T) {
	failing := func() *mock.MockEmbedder {
		m := mock.NewMockEmbedder()
		m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("boom")
		}
		return m
	}
	gateway := newTestGateway(t, failing(), failing())

	_, err := gateway.EmbedText(context.Background(), "hello world")
	assert.ErrorIs(t, err, ai.ErrAllProvidersFailed)
}

func TestEmbeddingGateway_RetriesOnRateLimit(t *testing.T) {
	primary := mock.NewMockEmbedder()
	calls := 0
	primary.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("429 too many requests")
		}
		return []float32{0.1, 0.2}, nil
	}
	gateway := newTestGateway(t, primary)

	embedding, err := gateway.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, embedding)
	assert.Equal(t, 3, calls, "rate-limit errors should be retried up to the budget")
}

func TestEmbeddingGateway_TruncatesToProviderLimit(t *testing.T) {
	primary := mock.NewMockEmbedder()
	primary.MaxChars = 10
	var received string
	primary.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		received = text
		return []float32{1}, nil
	}
	gateway := newTestGateway(t, primary)

	_, err := gateway.EmbedText(context.Background(), "abcdefghijklmnopqrstuvwxyz")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", received)
}

func TestEmbeddingGateway_PerProviderLimits(t *testing.T) {
	// Each provider receives text truncated to its own limit, not a shared one.
	primary := mock.NewMockEmbedder()
	primary.MaxChars = 5
	primary.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("unavailable")
	}
	fallback := mock.NewMockEmbedder()
	fallback.MaxChars = 15
	var received string
	fallback.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		received = text
		return []float32{1}, nil
	}
	gateway := newTestGateway(t, primary, fallback)

	_, err := gateway.EmbedText(context.Background(), "abcdefghijklmnopqrstuvwxyz")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmno", received)
}

func TestEmbeddingGateway_EmbedTexts(t *testing.T) {
	primary := mock.NewMockEmbedder()
	gateway := newTestGateway(t, primary)

	texts := []string{"first", "second", "third"}
	embeddings, err := gateway.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, embeddings, 3)
	for i, e := range embeddings {
		assert.NotEmpty(t, e, "embedding %d should not be empty", i)
	}
}

func TestEmbeddingGateway_ContextCancellation(t *testing.T) {
	primary := mock.NewMockEmbedder()
	primary.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("429 too many requests")
	}
	gateway, err := ai.NewEmbeddingGateway([]ai.EmbeddingProvider{primary},
		ai.WithRetry(5, time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = gateway.EmbedText(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", errors.New("unexpected status 429"), true},
		{"rate limit phrase", errors.New("openai: rate limit exceeded"), true},
		{"too many requests", errors.New("Too Many Requests"), true},
		{"other error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ai.IsRateLimited(tt.err))
		})
	}
}
