// Package openai embeds text through an OpenAI-compatible embeddings
// endpoint (OpenAI, Ollama, LM Studio and friends).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"memchat/internal/domain"
)

const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimension  = 1536
	DefaultAPIKeyEnv  = "OPENAI_API_KEY"
	defaultMaxRetries = 3
)

type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	// MaxRetries bounds retries of transient failures. Zero means the default.
	MaxRetries int
	RetryDelay time.Duration
}

type Embedder struct {
	client     *goopenai.Client
	model      string
	dimension  int
	maxRetries int
	retryDelay time.Duration
}

func New(cfg Config) (*Embedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}

	clientConfig := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

func (e *Embedder) Name() string { return "openai:" + e.model }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed retries rate limits and server errors with exponential backoff.
// Failures are returned as *domain.EmbeddingError.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(e.backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, domain.NewEmbeddingError(true, ctx.Err())
			}
		}
		vec, err := e.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		return nil, domain.NewEmbeddingError(true, ctx.Err())
	}
	return nil, domain.NewEmbeddingError(isTransient(lastErr), lastErr)
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	req := goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(e.model),
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, domain.DimensionError(len(vec), e.dimension)
	}
	return vec, nil
}

func (e *Embedder) backoff(attempt int) time.Duration {
	d := e.retryDelay << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// isTransient reports whether a retry may succeed: transport failures, rate
// limits and server-side errors.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code == 0
}
