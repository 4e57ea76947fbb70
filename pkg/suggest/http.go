package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai"
	"github.com/chriscow/meetsl-go/pkg/version"
)

// SuggestPath is the suggestion endpoint relative to the service base URL.
const SuggestPath = "/llm/suggest"

// DefaultHTTPTimeout bounds a suggestion call when no timeout is given.
const DefaultHTTPTimeout = 15 * time.Second

// HTTPClient calls the remote suggestion service.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the service at baseURL
// (e.g. http://localhost:8000).
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(baseURL, "/") + SuggestPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the full suggestion URL.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// Suggest posts req and decodes the suggestion. Transport failures and 5xx
// responses are recoverable; 4xx and undecodable bodies are fatal.
func (c *HTTPClient) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	if len(req.Tokens) == 0 {
		return Suggestion{}, ai.NewFatalError(ErrNoTokens, "suggest request")
	}
	if req.Domain == "" {
		req.Domain = DefaultDomain
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Suggestion{}, ai.NewFatalError(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, ai.NewFatalError(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Suggestion{}, ctx.Err()
		}
		return Suggestion{}, ai.NewRecoverableError(err, "suggest request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return Suggestion{}, ai.NewRecoverableError(statusErr, "suggest failed")
		}
		return Suggestion{}, ai.NewFatalError(statusErr, "suggest failed")
	}

	var s Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		if ctx.Err() != nil {
			return Suggestion{}, ctx.Err()
		}
		return Suggestion{}, ai.NewFatalError(err, "failed to decode suggestion")
	}
	if err := s.Validate(); err != nil {
		return Suggestion{}, ai.NewFatalError(err, "invalid suggestion")
	}
	if len(s.Alternatives) > MaxAlternatives {
		s.Alternatives = s.Alternatives[:MaxAlternatives]
	}
	return s, nil
}
