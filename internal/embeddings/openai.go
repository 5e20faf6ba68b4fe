package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	DefaultModel   = string(openai.AdaEmbeddingV2)
	DefaultTimeout = 20 * time.Second
)

var (
	// ErrNotConfigured is returned by Embed when no API key was supplied.
	ErrNotConfigured = errors.New("embeddings: no API key configured")
	// ErrEmptyEmbedding means the service answered without a usable vector.
	ErrEmptyEmbedding = errors.New("embeddings: empty embedding")
	ErrEmptyInput     = errors.New("embeddings: empty input text")
)

// Config configures a Client. Only APIKey is required for a working client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond limits outgoing calls; zero means unlimited.
	RequestsPerSecond float64
}

type Client struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	c := &Client{
		model:   openai.EmbeddingModel(cfg.Model),
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if c.model == "" {
		c.model = openai.AdaEmbeddingV2
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	if cfg.APIKey == "" {
		return c
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{
		Timeout: c.timeout,
	}
	c.client = openai.NewClientWithConfig(oc)
	return c
}

// Configured reports whether the client has credentials to call the service.
func (c *Client) Configured() bool {
	return c.client != nil
}

// Embed returns the embedding vector for the given text. Any failure,
// including a missing key or a timeout, is returned as an error and the
// vector is nil.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.client == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed request: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	return resp.Data[0].Embedding, nil
}
