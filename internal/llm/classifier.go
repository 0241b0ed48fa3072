package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
)

// Classifier wraps a raw model client with rate limiting, transport-level
// retries, and a short-lived response cache. It implements the engine's
// Classifier contract; the orchestration core above it never retries.
type Classifier struct {
	client      Client
	cache       *responseCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   common.RetryOptions
}

// NewClassifier creates a classifier for the configured provider.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Classifier{
		client:      client,
		cache:       newResponseCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// Categorize sends the payload to the model and returns the raw response
// text. Identical payloads within the cache TTL are served from cache
// without another API call.
func (c *Classifier) Categorize(ctx context.Context, payload model.ImagePayload, filename string) (string, error) {
	if !c.client.IsConfigured() {
		return "", fmt.Errorf("%w: no API key configured", common.ErrClassifierUnavailable)
	}

	key := payloadHash(payload)
	if raw, found := c.cache.get(key); found {
		c.logger.Debug("cache hit for payload", "filename", filename)
		return raw, nil
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()

	var raw string
	err := common.WithRetry(ctx, func() error {
		var callErr error
		raw, callErr = c.client.Categorize(ctx, payload, filename)
		if callErr != nil && !errors.Is(callErr, common.ErrClassifierUnavailable) {
			return &common.RetryableError{Err: callErr, Retryable: false}
		}
		return callErr
	}, c.retryOpts)
	if err != nil {
		return "", err
	}

	c.logger.Debug("model call completed",
		"filename", filename,
		"duration_ms", time.Since(start).Milliseconds())

	c.cache.set(key, raw)
	return raw, nil
}

// IsConfigured reports whether the underlying client is usable.
func (c *Classifier) IsConfigured() bool {
	return c.client.IsConfigured()
}

// CheckHealth probes the underlying provider.
func (c *Classifier) CheckHealth(ctx context.Context) bool {
	return c.client.CheckHealth(ctx)
}

// Close releases the background goroutines held by the classifier.
func (c *Classifier) Close() {
	c.rateLimiter.Close()
	c.cache.Close()
}

func payloadHash(payload model.ImagePayload) string {
	h := sha256.New()
	h.Write([]byte(payload.MIMEType))
	h.Write(payload.Data)
	return hex.EncodeToString(h.Sum(nil))
}
