package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/papercomputeco/tgrelay/pkg/logger"
	"github.com/papercomputeco/tgrelay/pkg/metrics"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
)

// Generic replies sent when handling an update fails.
const (
	NetworkFailureText = "A network error occurred while contacting the Telegram API. Please try again later."
	APIFailureText     = "An error occurred while processing the request. Please try again later."
	UnknownFailureText = "An unknown error occurred. Please try again later."
)

// Sender delivers text to a chat. *telegram.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Dispatcher routes Telegram updates to the Relay and delivers its replies.
// It never lets a handler failure escape: errors and panics are logged and
// answered with a generic message.
type Dispatcher struct {
	relay   *Relay
	sender  Sender
	botName string
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. botName is the bot's username and is
// used to accept addressed commands such as /reset@botName.
func NewDispatcher(r *Relay, sender Sender, botName string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		relay:   r,
		sender:  sender,
		botName: botName,
		logger:  log,
	}
}

// Handle processes one update.
func (d *Dispatcher) Handle(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	chatID := msg.Chat.ID
	log := d.logger.With(
		"update_id", update.UpdateID,
		"chat_id", chatID,
		"trace_id", uuid.NewString(),
	)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("update handler panicked", "panic", rec, "stack", string(debug.Stack()))
			d.reportFailure(ctx, log, chatID, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := d.route(ctx, log, chatID, msg.Text); err != nil {
		d.reportFailure(ctx, log, chatID, err)
	}
}

func (d *Dispatcher) route(ctx context.Context, log *slog.Logger, chatID int64, text string) error {
	command, isCommand := d.parseCommand(text)
	if !isCommand {
		segments, err := d.relay.OnTextMessage(ctx, chatID, text)
		if sendErr := d.send(ctx, chatID, segments...); sendErr != nil {
			return sendErr
		}
		if err != nil && len(segments) == 0 {
			return err
		}
		return nil
	}

	switch command {
	case "start":
		return d.send(ctx, chatID, d.relay.OnStartCommand())
	case "reset":
		return d.send(ctx, chatID, d.relay.OnResetCommand(chatID))
	default:
		log.Debug("ignoring command", "command", command)
		d.relay.record(metrics.KindIgnored)
		return nil
	}
}

// parseCommand reports whether text is a bot command and returns its name.
// Commands addressed to another bot are treated as an ignored command.
func (d *Dispatcher) parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if base, target, addressed := strings.Cut(name, "@"); addressed {
		if d.botName != "" && !strings.EqualFold(target, d.botName) {
			return "", true
		}
		name = base
	}
	return strings.ToLower(name), true
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, segments ...string) error {
	for _, segment := range segments {
		if err := d.sender.SendMessage(ctx, chatID, segment); err != nil {
			return fmt.Errorf("sending reply: %w", err)
		}
	}
	return nil
}

// reportFailure logs err by class and tries to tell the user something went wrong.
func (d *Dispatcher) reportFailure(ctx context.Context, log *slog.Logger, chatID int64, err error) {
	var (
		networkErr *telegram.NetworkError
		apiErr     *telegram.APIError
		text       string
	)

	switch {
	case errors.As(err, &networkErr):
		log.Warn("telegram network error", "error", err)
		text = NetworkFailureText
	case errors.As(err, &apiErr):
		log.Warn("telegram api error", "error", err)
		text = APIFailureText
	default:
		log.Error("unhandled error", "error", err)
		text = UnknownFailureText
	}

	if ctx.Err() != nil {
		return
	}
	if sendErr := d.sender.SendMessage(ctx, chatID, text); sendErr != nil {
		log.Warn("could not report failure to chat", "error", sendErr)
	}
}
