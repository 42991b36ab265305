// Package chatcmder provides the chat command, a local terminal session that
// goes through the same relay as the Telegram bot.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/tgrelay/pkg/cliui"
	"github.com/papercomputeco/tgrelay/pkg/config"
	"github.com/papercomputeco/tgrelay/pkg/conversation"
	"github.com/papercomputeco/tgrelay/pkg/credentials"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tgrelay/pkg/logger"
	"github.com/papercomputeco/tgrelay/relay"
)

// localChatID is the conversation id of the terminal session.
const localChatID conversation.ID = 0

const chatLongDesc string = `Start an interactive chat session in the terminal.

Messages go through the same relay as the Telegram bot: the same context
windows, retries and reply segmentation apply. Only the Anthropic API key is
required.

Commands:
  /reset   Clear the conversation context
  /start   Show the greeting
  /quit    Leave the session (Ctrl-D works too)

Examples:
  tgrelay chat
  tgrelay chat --model claude-3-haiku-20240307
  echo "Summarize Go's memory model" | tgrelay chat`

const chatShortDesc string = "Chat with the model from the terminal"

var chatFlags = []string{
	config.FlagModel,
	config.FlagSystemPrompt,
	config.FlagMaxRetries,
	config.FlagUserWindow,
	config.FlagHistoryWindow,
}

type chatCommander struct {
	model         string
	systemPrompt  string
	maxRetries    int
	userWindow    int
	historyWindow int

	debug     bool
	configDir string

	viper  *viper.Viper
	logger *slog.Logger
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, chatFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.systemPrompt)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxRetries, &cmder.maxRetries)
	config.AddIntFlag(cmd, config.Flags, config.FlagUserWindow, &cmder.userWindow)
	config.AddIntFlag(cmd, config.Flags, config.FlagHistoryWindow, &cmder.historyWindow)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg := config.FromViper(c.viper)

	// Chat output owns the terminal, so logs stay quiet unless asked for.
	c.logger = logger.Nop()
	if c.debug || cfg.Log.Debug {
		c.logger = logger.New(
			logger.WithDebug(true),
			logger.WithPretty(logger.IsTerminal(os.Stderr)),
			logger.WithWriter(os.Stderr),
		)
	}

	store, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	secrets, err := config.ResolveSecrets(c.viper, store, false)
	if err != nil {
		return err
	}

	completer, err := anthropic.New(anthropic.Config{
		Model:       cfg.Anthropic.Model,
		System:      cfg.Anthropic.SystemPrompt,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		MaxRetries:  cfg.Anthropic.MaxRetries,
		BaseTimeout: cfg.Anthropic.BaseTimeout,
		Transport:   anthropic.NewHTTPTransport(cfg.Anthropic.APIURL, secrets.APIKey),
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}

	r, err := relay.New(relay.Options{
		Store: conversation.NewStore(conversation.Options{
			UserWindow:    cfg.Context.UserWindow,
			HistoryWindow: cfg.Context.HistoryWindow,
		}),
		Completer: completer,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	s := &session{
		relay:  r,
		out:    out,
		render: rendererFor(out),
		logger: c.logger,
	}
	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.HeaderStyle.Render("tgrelay chat"),
		cliui.DimStyle.Render(cfg.Anthropic.Model),
	)
	return s.run(ctx, in)
}

// session is one terminal conversation.
type session struct {
	relay  *relay.Relay
	out    io.Writer
	render func(string) string
	logger *slog.Logger
}

var (
	userPrompt      = cliui.PromptStyle.Render("you> ")
	assistantPrompt = cliui.DimStyle.Render("claude> ")
)

func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for ctx.Err() == nil {
		fmt.Fprint(s.out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			s.reply(s.relay.OnResetCommand(localChatID))
		case "/start":
			s.reply(s.relay.OnStartCommand())
		default:
			segments, err := s.relay.OnTextMessage(ctx, localChatID, line)
			if err != nil {
				s.logger.Debug("completion failed", "error", err)
				if len(segments) == 0 {
					segments = []string{relay.UnknownFailureText}
				}
			}
			s.reply(segments...)
		}
	}

	return scanner.Err()
}

func (s *session) reply(segments ...string) {
	for _, segment := range segments {
		fmt.Fprintf(s.out, "%s%s\n", assistantPrompt, s.render(segment))
	}
}

// rendererFor renders markdown when out is a terminal and passes text
// through otherwise.
func rendererFor(out io.Writer) func(string) string {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func(text string) string { return text }
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 80
	}

	return func(text string) string {
		rendered, err := cliui.RenderMarkdown(text, width)
		if err != nil {
			return text
		}
		return strings.Trim(rendered, "\n")
	}
}
