// Package servecmder provides the serve command, which runs the Telegram bot.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tgrelay/api"
	"github.com/papercomputeco/tgrelay/pkg/config"
	"github.com/papercomputeco/tgrelay/pkg/conversation"
	"github.com/papercomputeco/tgrelay/pkg/credentials"
	"github.com/papercomputeco/tgrelay/pkg/dotdir"
	"github.com/papercomputeco/tgrelay/pkg/eventstream"
	"github.com/papercomputeco/tgrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/tgrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tgrelay/pkg/logger"
	"github.com/papercomputeco/tgrelay/pkg/metrics"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
	"github.com/papercomputeco/tgrelay/relay"
	"github.com/papercomputeco/tgrelay/relay/worker"
)

const serveLongDesc string = `Run the Telegram relay bot.

Every text message sent to the bot is forwarded to the Anthropic Messages API
together with the chat's recent turns, and the reply is sent back. /reset
clears a chat's context and /start shows a greeting.

The bot token and API key are read from, in order: the TGRELAY_TELEGRAM_BOT_TOKEN
and TGRELAY_ANTHROPIC_API_KEY environment variables, BOT_TOKEN and
CLAUDE_API_KEY, and credentials stored with 'tgrelay auth'.

Examples:
  tgrelay serve
  tgrelay serve --model claude-3-haiku-20240307 --api-listen :8088
  tgrelay serve --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the Telegram relay bot"

var serveFlags = []string{
	config.FlagModel,
	config.FlagSystemPrompt,
	config.FlagMaxRetries,
	config.FlagUserWindow,
	config.FlagHistoryWindow,
	config.FlagPollTimeout,
	config.FlagAPIListen,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

type serveCommander struct {
	model         string
	systemPrompt  string
	maxRetries    int
	userWindow    int
	historyWindow int
	pollTimeout   int
	apiListen     string
	kafkaBrokers  string
	kafkaTopic    string

	debug     bool
	configDir string

	viper  *viper.Viper
	level  *slog.LevelVar
	logger *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, serveFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, stop)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.systemPrompt)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxRetries, &cmder.maxRetries)
	config.AddIntFlag(cmd, config.Flags, config.FlagUserWindow, &cmder.userWindow)
	config.AddIntFlag(cmd, config.Flags, config.FlagHistoryWindow, &cmder.historyWindow)
	config.AddIntFlag(cmd, config.Flags, config.FlagPollTimeout, &cmder.pollTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, stop context.CancelFunc) error {
	cfg := config.FromViper(c.viper)
	closeLog, err := c.setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	secrets, err := config.ResolveSecrets(c.viper, store, true)
	if err != nil {
		return err
	}

	config.Watch(c.viper, c.logger, func(updated *config.Config) {
		c.level.Set(levelFor(c.debug || updated.Log.Debug))
	})

	conversations := conversation.NewStore(conversation.Options{
		UserWindow:    cfg.Context.UserWindow,
		HistoryWindow: cfg.Context.HistoryWindow,
	})
	collector := metrics.NewCollector(conversations.Len)

	completer, err := anthropic.New(anthropic.Config{
		Model:       cfg.Anthropic.Model,
		System:      cfg.Anthropic.SystemPrompt,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		MaxRetries:  cfg.Anthropic.MaxRetries,
		BaseTimeout: cfg.Anthropic.BaseTimeout,
		Transport:   anthropic.NewHTTPTransport(cfg.Anthropic.APIURL, secrets.APIKey),
		Observer:    collector.ObserveAttempt,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return err
	}

	turns, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		OnPublish: collector.EventPublished,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event worker pool: %w", err)
	}
	defer func() {
		turns.Close()
		if err := publisher.Close(); err != nil {
			c.logger.Warn("closing event publisher", "error", err)
		}
	}()

	r, err := relay.New(relay.Options{
		Store:     conversations,
		Completer: completer,
		Recorder:  collector,
		Turns:     turns,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	bot := telegram.NewClient(cfg.Telegram.APIBase, secrets.BotToken)
	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verifying bot token: %w", err)
	}

	poller, err := relay.NewPoller(relay.PollerConfig{
		Source:  bot,
		Handler: relay.NewDispatcher(r, bot, me.Username, c.logger),
		Timeout: cfg.Telegram.PollTimeout,
		Logger:  c.logger,
	})
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)

	if cfg.API.Listen != "" {
		apiServer := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, r, collector.Handler(), c.logger)
		go func() {
			if err := apiServer.Run(); err != nil {
				errChan <- fmt.Errorf("API server error: %w", err)
			}
		}()
		defer func() {
			if err := apiServer.Shutdown(); err != nil {
				c.logger.Warn("stopping api server", "error", err)
			}
		}()
	}

	c.logger.Info("starting bot",
		"bot", me.Username,
		"model", cfg.Anthropic.Model,
		"user_window", cfg.Context.UserWindow,
		"history_window", cfg.Context.HistoryWindow,
		"events", publisherName(cfg.Events),
	)

	pollDone := make(chan error, 1)
	go func() {
		pollDone <- poller.Run(ctx)
	}()

	select {
	case err := <-pollDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case err := <-errChan:
		stop()
		<-pollDone
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
	}

	// The poller returns once in-flight handlers finish, which must happen
	// before the worker pool closes.
	if err := <-pollDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// setupLogger builds the process logger. The returned func closes the log
// file, if one was opened.
func (c *serveCommander) setupLogger(cfg *config.Config) (func(), error) {
	c.level = new(slog.LevelVar)
	c.level.Set(levelFor(c.debug || cfg.Log.Debug))

	c.logger = logger.New(
		logger.WithLevel(c.level),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(logger.IsTerminal(os.Stderr)),
		logger.WithWriter(os.Stderr),
	)

	if cfg.Log.File == "" {
		return func() {}, nil
	}

	path := cfg.Log.File
	if filepath.Base(path) == path {
		var err error
		path, err = dotdir.NewManager().File(c.configDir, path)
		if err != nil {
			return nil, fmt.Errorf("resolving log file: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(c.logger, logger.New(
		logger.WithLevel(c.level),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() { _ = f.Close() }, nil
}

func levelFor(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// newPublisher returns the Kafka publisher when brokers are configured and
// the no-op publisher otherwise.
func newPublisher(events config.EventsConfig) (eventstream.Publisher, error) {
	brokers := events.Brokers()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   events.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	return p, nil
}

func publisherName(events config.EventsConfig) string {
	if len(events.Brokers()) == 0 {
		return "disabled"
	}
	return "kafka:" + events.KafkaTopic
}
