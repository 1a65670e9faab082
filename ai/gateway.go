package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
)

// EmbeddingGateway generates embeddings through an ordered list of
// interchangeable backends. If the primary backend errors or is rate-limited
// the gateway retries against the next configured backend before surfacing
// failure. Text is truncated to each provider's own input limit before
// submission.
//
// The gateway implements Embedder and is safe for concurrent use.
type EmbeddingGateway struct {
	providers     []EmbeddingProvider
	limiter       *rate.Limiter
	retryAttempts int
	retryBase     time.Duration
	logger        *slog.Logger
}

// GatewayOption configures an EmbeddingGateway.
type GatewayOption func(*EmbeddingGateway) error

// WithRateLimit caps the request rate against upstream providers.
// Default is 5 requests per second.
func WithRateLimit(interval time.Duration) GatewayOption {
	return func(g *EmbeddingGateway) error {
		if interval <= 0 {
			return errors.New("rate limit interval must be positive")
		}
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
		return nil
	}
}

// WithRetry sets the retry budget applied per provider when it reports a
// rate-limit error. Backoff is exponential starting at base.
func WithRetry(attempts int, base time.Duration) GatewayOption {
	return func(g *EmbeddingGateway) error {
		if attempts < 1 {
			return errors.New("retry attempts must be at least 1")
		}
		g.retryAttempts = attempts
		g.retryBase = base
		return nil
	}
}

// WithGatewayLogger sets a custom logger.
// Default is slog.Default().
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *EmbeddingGateway) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewEmbeddingGateway creates a gateway over the given providers, tried in
// order on failure.
func NewEmbeddingGateway(providers []EmbeddingProvider, opts ...GatewayOption) (*EmbeddingGateway, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	g := &EmbeddingGateway{
		providers:     providers,
		limiter:       rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
		logger:        slog.Default().With("component", "embedding-gateway"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

var _ Embedder = (*EmbeddingGateway)(nil)

// EmbedText generates an embedding for a single text, walking the fallback
// list until a provider succeeds.
func (g *EmbeddingGateway) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var errs []error
	for _, provider := range g.providers {
		embedding, err := g.embedWithRetry(ctx, provider, truncate(text, provider.MaxTextLength()))
		if err == nil {
			return embedding, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn("embedding provider failed, trying next",
			"provider", provider.Name(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// EmbedTexts generates embeddings for multiple texts. Each item goes through
// the same fallback and throttling path as EmbedText so a mid-batch provider
// outage degrades to the next backend instead of failing the batch.
func (g *EmbeddingGateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := g.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding item %d of %d: %w", i+1, len(texts), err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// embedWithRetry calls one provider, backing off exponentially on
// rate-limit errors up to the retry budget. Other errors fail immediately so
// the gateway can move on to the next provider.
func (g *EmbeddingGateway) embedWithRetry(ctx context.Context, provider EmbeddingProvider, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= g.retryAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		embedding, err := provider.EmbedText(ctx, text)
		if err == nil {
			return embedding, nil
		}
		lastErr = err

		if !IsRateLimited(err) {
			return nil, err
		}
		if attempt == g.retryAttempts {
			break
		}

		delay := g.retryBase
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		g.logger.Debug("provider rate limited, backing off",
			"provider", provider.Name(), "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// truncate bounds text to the provider limit. A zero limit means unlimited.
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}
