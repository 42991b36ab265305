// Package anthropic implements the completion client for Anthropic's
// Messages API: request construction, bounded retries and reply normalization.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/papercomputeco/tgrelay/pkg/llm"
	"github.com/papercomputeco/tgrelay/pkg/logger"
)

const (
	// DefaultMaxTokens bounds the reply length of every request.
	DefaultMaxTokens = 2000

	// DefaultMaxRetries is the total number of attempts per Complete call.
	DefaultMaxRetries = 3

	// DefaultBaseTimeout is the timeout of the first attempt, in units.
	// Attempt n waits BaseTimeout * 2^n units.
	DefaultBaseTimeout = 30

	// backoffBase is the wait after the first failed attempt, in units.
	// The wait after failed attempt k is 2^k units.
	backoffBase = 2

	// EmptyReply replaces a reply that normalizes to empty text.
	EmptyReply = "(empty model response)"
)

// DefaultSystemPrompt is the system instruction sent with every request.
const DefaultSystemPrompt = "Answer the following request as thoroughly and clearly as possible."

// Observer is notified after every attempt. err is nil for a successful attempt.
type Observer func(attempt int, err error, elapsed time.Duration)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures a Client.
type Config struct {
	// Model is the model identifier sent with every request.
	Model string

	// System is the system instruction. Defaults to DefaultSystemPrompt.
	System string

	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int

	// MaxRetries is the number of attempts. Defaults to DefaultMaxRetries.
	MaxRetries int

	// BaseTimeout is the first attempt's timeout in units. Defaults to DefaultBaseTimeout.
	BaseTimeout int

	// Unit is the time unit of BaseTimeout and the backoff waits. Defaults to one second.
	Unit time.Duration

	// Transport performs each attempt. Required.
	Transport Transport

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep SleepFunc

	// Observer is optional.
	Observer Observer

	// Logger defaults to logger.Nop().
	Logger *slog.Logger
}

// Client sends conversations to the Messages API.
type Client struct {
	config Config
	logger *slog.Logger
}

// attemptState is the state of the retry loop in Complete.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateSucceeded
	stateExhausted
)

// New creates a Client, filling zero-value config fields with defaults.
func New(c Config) (*Client, error) {
	if c.Transport == nil {
		return nil, fmt.Errorf("anthropic transport is required")
	}
	if c.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	if c.System == "" {
		c.System = DefaultSystemPrompt
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseTimeout <= 0 {
		c.BaseTimeout = DefaultBaseTimeout
	}
	if c.Unit <= 0 {
		c.Unit = time.Second
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Client{
		config: c,
		logger: c.Logger.With("provider", "anthropic"),
	}, nil
}

// Name
func (c *Client) Name() string {
	return "anthropic"
}

// Model
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends turns to the Messages API and returns the normalized reply.
//
// Attempts are bounded by MaxRetries. Attempt n (from 0) runs with a timeout
// of BaseTimeout*2^n units; after failed attempt k (from 1) the client waits
// 2^k units before the next one, and never waits after the last attempt.
// When every attempt fails the last failure is returned as a *TransportError.
func (c *Client) Complete(ctx context.Context, turns []llm.Turn) (string, error) {
	body, err := c.buildRequest(turns)
	if err != nil {
		return "", err
	}

	// Two independent schedules: per-attempt timeouts and inter-attempt waits.
	timeouts := retry.NewExponential(time.Duration(c.config.BaseTimeout) * c.config.Unit)
	waits := retry.NewExponential(backoffBase * c.config.Unit)

	var (
		state   = stateAttempting
		attempt int
		payload []byte
		lastErr error
	)

	for state == stateAttempting {
		timeout, _ := timeouts.Next()

		start := time.Now()
		payload, lastErr = c.config.Transport.Post(ctx, body, timeout)
		if c.config.Observer != nil {
			c.config.Observer(attempt, lastErr, time.Since(start))
		}
		attempt++

		switch {
		case lastErr == nil:
			state = stateSucceeded

		case attempt >= c.config.MaxRetries:
			state = stateExhausted

		default:
			wait, _ := waits.Next()
			c.logger.Warn("completion attempt failed",
				"attempt", attempt,
				"max_attempts", c.config.MaxRetries,
				"timeout", timeout,
				"error", lastErr,
			)
			c.logger.Info("waiting before next attempt", "wait", wait)

			if err := c.config.Sleep(ctx, wait); err != nil {
				lastErr = err
				state = stateExhausted
			}
		}
	}

	if state == stateExhausted {
		c.logger.Error("all completion attempts failed",
			"attempts", attempt,
			"error", lastErr,
		)
		return "", &TransportError{Attempts: attempt, Err: lastErr}
	}

	c.logger.Debug("completion succeeded", "attempts", attempt, "bytes", len(payload))
	return ExtractReply(payload), nil
}

func (c *Client) buildRequest(turns []llm.Turn) ([]byte, error) {
	req := llm.CompletionRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		System:    c.config.System,
		Messages:  turns,
	}
	if req.Messages == nil {
		req.Messages = []llm.Turn{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	return payload, nil
}

// ExtractReply normalizes a response payload into reply text.
//
// The text of the first content block wins, then a flat "completion" field.
// Any other shape is returned as the compacted raw body so unexpected
// responses are never dropped. An empty result becomes EmptyReply.
func ExtractReply(payload []byte) string {
	reply := extract(payload)
	if strings.TrimSpace(reply) == "" {
		return EmptyReply
	}
	return reply
}

func extract(payload []byte) string {
	var resp messagesResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		// Not a JSON object: hand back the body as-is.
		return strings.TrimSpace(string(payload))
	}

	if len(resp.Content) > 0 {
		var blocks []contentBlock
		if err := json.Unmarshal(resp.Content, &blocks); err == nil && len(blocks) > 0 {
			return blocks[0].Text
		}
	}

	if len(resp.Completion) > 0 {
		var completion string
		if err := json.Unmarshal(resp.Completion, &completion); err == nil {
			return completion
		}
		return string(resp.Completion)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return string(payload)
	}
	return compact.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
