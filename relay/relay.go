// Package relay connects chat messages to the completion client: it keeps
// each conversation's context, asks the model for a reply and segments the
// reply for delivery.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/tgrelay/pkg/conversation"
	"github.com/papercomputeco/tgrelay/pkg/eventstream"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tgrelay/pkg/logger"
	"github.com/papercomputeco/tgrelay/pkg/metrics"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
	"github.com/papercomputeco/tgrelay/relay/worker"
)

// User-visible replies.
const (
	StartText   = "Hi! Send me a message and I will pass it on to Claude. Use /reset to clear the conversation context."
	ResetText   = "Conversation context has been reset."
	FailureText = "An error occurred while contacting the Claude API. Please try again later."
)

// Recorder receives relay activity. *metrics.Collector implements it.
type Recorder interface {
	MessageHandled(kind string)
	CompletionFinished(status string, elapsed time.Duration)
}

// TurnSink accepts completed turns for asynchronous publishing.
// *worker.Pool implements it.
type TurnSink interface {
	Enqueue(job worker.Job) bool
}

// Options configures a Relay.
type Options struct {
	// Store holds conversation context. Required.
	Store *conversation.Store

	// Completer produces replies. Required.
	Completer provider.Completer

	// SegmentSize defaults to telegram.MaxMessageLength.
	SegmentSize int

	Recorder Recorder
	Turns    TurnSink
	Logger   *slog.Logger
}

// Relay handles the three inbound operations: text messages, /reset and /start.
// It is safe for concurrent use.
type Relay struct {
	store       *conversation.Store
	completer   provider.Completer
	segmentSize int
	recorder    Recorder
	turns       TurnSink
	logger      *slog.Logger
}

// New creates a Relay.
func New(opts Options) (*Relay, error) {
	if opts.Store == nil {
		return nil, errors.New("relay requires a conversation store")
	}
	if opts.Completer == nil {
		return nil, errors.New("relay requires a completer")
	}
	if opts.SegmentSize <= 0 {
		opts.SegmentSize = telegram.MaxMessageLength
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Relay{
		store:       opts.Store,
		completer:   opts.Completer,
		segmentSize: opts.SegmentSize,
		recorder:    opts.Recorder,
		turns:       opts.Turns,
		logger:      opts.Logger,
	}, nil
}

// OnTextMessage records text as a user turn, asks the model for a reply
// over the conversation's current context, records the reply and returns
// it split into deliverable segments.
//
// Empty text produces no reply. When the completion fails after all retries
// the user turn stays in context, the returned segments hold FailureText,
// and the underlying error is returned alongside for logging. Other errors
// return no segments.
func (r *Relay) OnTextMessage(ctx context.Context, id conversation.ID, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	r.record(metrics.KindText)

	r.store.AppendUser(id, text)
	turns := r.store.Snapshot(id)

	log := r.logger.With("conversation_id", id)
	log.Debug("requesting completion", "turns", len(turns))

	start := time.Now()
	reply, err := r.completer.Complete(ctx, turns)
	elapsed := time.Since(start)

	if err != nil {
		r.finished(metrics.StatusError, elapsed)

		var transportErr *anthropic.TransportError
		if errors.As(err, &transportErr) {
			log.Error("completion failed", "attempts", transportErr.Attempts, "error", err)
			return []string{FailureText}, err
		}
		return nil, fmt.Errorf("completing conversation %d: %w", id, err)
	}
	r.finished(metrics.StatusSuccess, elapsed)

	r.store.AppendAssistant(id, reply)
	r.publish(id, text, reply, elapsed)

	log.Info("reply ready", "chars", len([]rune(reply)), "elapsed", elapsed)
	return Segments(reply, r.segmentSize), nil
}

// OnResetCommand clears the conversation and returns the confirmation text.
func (r *Relay) OnResetCommand(id conversation.ID) string {
	r.record(metrics.KindReset)
	r.store.Reset(id)
	r.logger.Info("conversation reset", "conversation_id", id)
	return ResetText
}

// OnStartCommand returns the greeting.
func (r *Relay) OnStartCommand() string {
	r.record(metrics.KindStart)
	return StartText
}

// Model returns the model replies come from.
func (r *Relay) Model() string {
	return r.completer.Model()
}

// Conversations returns the number of conversations held in memory.
func (r *Relay) Conversations() int {
	return r.store.Len()
}

// Windows returns the user and history context windows.
func (r *Relay) Windows() (user, history int) {
	return r.store.Windows()
}

func (r *Relay) publish(id conversation.ID, user, reply string, elapsed time.Duration) {
	if r.turns == nil {
		return
	}
	event := eventstream.NewTurnCompletedEvent(id, user, reply)
	event.Provider = r.completer.Name()
	event.Model = r.completer.Model()
	event.DurationMs = elapsed.Milliseconds()
	r.turns.Enqueue(worker.Job{Event: event})
}

func (r *Relay) record(kind string) {
	if r.recorder != nil {
		r.recorder.MessageHandled(kind)
	}
}

func (r *Relay) finished(status string, elapsed time.Duration) {
	if r.recorder != nil {
		r.recorder.CompletionFinished(status, elapsed)
	}
}
