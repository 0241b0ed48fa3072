// Package llm provides the vision-model collaborator used to categorize
// bill and receipt images, along with the normalizer that converts its raw
// responses into complete classification results.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/billsense/billsense/internal/model"
)

// Client defines the interface for vision-model providers. Categorize
// returns the provider's raw response text; converting it into a structured
// result is the normalizer's job.
type Client interface {
	Categorize(ctx context.Context, payload model.ImagePayload, filename string) (string, error)
	IsConfigured() bool
	CheckHealth(ctx context.Context) bool
}

// Config holds configuration for the model client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// NewClient creates a raw model client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}

	switch strings.ToLower(provider) {
	case "gemini":
		return newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}
