package anthropic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/tgrelay/pkg/utils"
)

const (
	// DefaultURL is the Anthropic Messages API endpoint.
	DefaultURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	apiKeyHeader     = "x-api-key"
	apiVersionHeader = "anthropic-version"
)

// Transport performs a single POST attempt bounded by timeout.
// Any returned error is treated as retryable by the Client.
type Transport interface {
	Post(ctx context.Context, body []byte, timeout time.Duration) ([]byte, error)
}

// HTTPTransport posts request bodies to the Messages API with credential headers.
type HTTPTransport struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport for the given endpoint and API key.
// An empty url uses DefaultURL. The timeout of each attempt is applied per
// request, so the underlying http.Client carries none.
func NewHTTPTransport(url, apiKey string) *HTTPTransport {
	if url == "" {
		url = DefaultURL
	}

	return &HTTPTransport{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Post sends body and returns the response payload of a 2xx response.
func (t *HTTPTransport) Post(ctx context.Context, body []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, t.apiKey)
	req.Header.Set(apiVersionHeader, APIVersion)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading anthropic response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(string(payload), 400),
		}
	}

	return payload, nil
}
