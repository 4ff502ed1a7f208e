package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumikid/kidcoach-core/internal/pkg/httpx"
	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client talks to the Generative Language REST API. It performs exactly one
// attempt per call: retry, backoff and model fallback are the orchestrator's
// job, and the API key is supplied per call for the same reason.
type Client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewClient(log *logger.Logger, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		log:        log.With("service", "gemini.Client"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type httpError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *httpError) RetryAfterHint() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

// GenerateContent issues one generateContent call against model.
func (c *Client) GenerateContent(ctx context.Context, model, apiKey string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var out GenerateContentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gemini decode error: %w; raw=%s", err, string(raw))
	}
	return &out, nil
}
