package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/papercomputeco/tgrelay/pkg/logger"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
)

const (
	// DefaultPollInterval is the pause after a failed poll.
	DefaultPollInterval = time.Second

	// DefaultMaxConcurrency bounds updates handled at once.
	DefaultMaxConcurrency = 16
)

// UpdateSource yields Telegram updates. *telegram.Client implements it.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
	DropPending(ctx context.Context) (int64, error)
}

// UpdateHandler handles a single update. *Dispatcher implements it.
type UpdateHandler interface {
	Handle(ctx context.Context, update telegram.Update)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Source  UpdateSource
	Handler UpdateHandler

	// Timeout is the long-poll timeout in seconds.
	Timeout int

	// Interval is the pause after a failed poll.
	Interval time.Duration

	// MaxConcurrency bounds the number of updates handled at once.
	MaxConcurrency int

	Logger *slog.Logger
}

// Poller long-polls for updates and hands each one to the handler on its own
// goroutine. Updates for the same chat are not serialized.
type Poller struct {
	config PollerConfig
	logger *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(c PollerConfig) (*Poller, error) {
	if c.Source == nil || c.Handler == nil {
		return nil, errors.New("poller requires an update source and a handler")
	}
	if c.Timeout <= 0 {
		c.Timeout = telegram.DefaultPollTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return &Poller{config: c, logger: c.Logger}, nil
}

// Run discards updates queued before startup, then polls until ctx is done.
// It waits for in-flight handlers before returning.
func (p *Poller) Run(ctx context.Context) error {
	offset, err := p.dropPending(ctx)
	if err != nil {
		return err
	}

	handlers := pool.New().WithMaxGoroutines(p.config.MaxConcurrency)
	defer handlers.Wait()

	p.logger.Info("polling for updates", "offset", offset, "timeout", p.config.Timeout)

	for ctx.Err() == nil {
		updates, err := p.config.Source.GetUpdates(ctx, offset, p.config.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("polling failed", "error", err)
			if !p.pause(ctx) {
				break
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			handlers.Go(func() {
				p.config.Handler.Handle(ctx, update)
			})
		}
	}

	p.logger.Info("polling stopped")
	return nil
}

func (p *Poller) dropPending(ctx context.Context) (int64, error) {
	for {
		offset, err := p.config.Source.DropPending(ctx)
		if err == nil {
			p.logger.Debug("dropped pending updates", "next_offset", offset)
			return offset, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p.logger.Warn("dropping pending updates failed", "error", err)
		if !p.pause(ctx) {
			return 0, ctx.Err()
		}
	}
}

// pause waits one poll interval and reports false if ctx ended first.
func (p *Poller) pause(ctx context.Context) bool {
	timer := time.NewTimer(p.config.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
