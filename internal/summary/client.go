package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultEndpoint = "https://api-inference.huggingface.co/models/facebook/bart-large-cnn"

var ErrNotConfigured = errors.New("summary: Hugging Face API key not set")

// UpstreamError carries a non-2xx answer from the inference API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("summarize: status %d: %s", e.StatusCode, e.Body)
}

type summarizeRequest struct {
	Inputs string `json:"inputs"`
}

type summarizeResponse []struct {
	SummaryText string `json:"summary_text"`
}

type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Summarize returns a short summary of content. An answer without a
// summary yields an empty string and no error.
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(summarizeRequest{Inputs: content})
	if err != nil {
		return "", fmt.Errorf("marshal summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summarize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode summarize response: %w", err)
	}

	// Anything other than [{"summary_text": ...}] means no summary.
	var result summarizeResponse
	if err := json.Unmarshal(raw, &result); err != nil || len(result) == 0 {
		return "", nil
	}
	return result[0].SummaryText, nil
}
