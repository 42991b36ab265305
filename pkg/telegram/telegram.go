// Package telegram is a minimal Telegram Bot API client covering long
// polling and plain text replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAPIBase is the public Bot API endpoint.
	DefaultAPIBase = "https://api.telegram.org"

	// DefaultPollTimeout is the long-poll timeout in seconds.
	DefaultPollTimeout = 30

	// MaxMessageLength is the largest text a single sendMessage accepts, in characters.
	MaxMessageLength = 4096

	// requestTimeout bounds every call except the long poll itself.
	requestTimeout = 30 * time.Second
)

// Client calls the Bot API for a single bot token.
type Client struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty apiBase uses DefaultAPIBase.
func NewClient(apiBase, token string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, requestTimeout, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for message updates starting at offset. The server
// holds the request for up to timeout seconds when nothing is pending.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        timeout,
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	httpTimeout := time.Duration(timeout)*time.Second + requestTimeout
	if err := c.call(ctx, "getUpdates", req, httpTimeout, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// DropPending discards every update queued before the bot started and
// returns the offset to poll from next.
func (c *Client) DropPending(ctx context.Context) (int64, error) {
	var updates []Update
	req := getUpdatesRequest{Offset: -1, Timeout: 0, AllowedUpdates: []string{"message"}}
	if err := c.call(ctx, "getUpdates", req, requestTimeout, &updates); err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}
	return updates[len(updates)-1].UpdateID + 1, nil
}

// SendMessage sends text to a chat. Text longer than MaxMessageLength is
// rejected by the Bot API, so callers segment replies first.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	req := sendMessageRequest{ChatID: chatID, Text: text}
	return c.call(ctx, "sendMessage", req, requestTimeout, nil)
}

func (c *Client) call(ctx context.Context, method string, params any, timeout time.Duration, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &NetworkError{Method: method, Err: redact(err, c.token)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: method, Err: err}
	}

	var tgResp response
	if err := json.Unmarshal(raw, &tgResp); err != nil {
		return &NetworkError{
			Method: method,
			Err:    fmt.Errorf("unreadable response (status %d): %w", resp.StatusCode, err),
		}
	}

	if !tgResp.OK {
		code := tgResp.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: tgResp.Description}
	}

	if result == nil || len(tgResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(tgResp.Result, result); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", method, err)
	}
	return nil
}

// redact hides the bot token in transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{err: err, token: token}
}

type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "<redacted>")
}

func (e *redactedError) Unwrap() error {
	return e.err
}
