// Package authcmder provides the auth command for storing the bot token and
// the Anthropic API key.
package authcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/tgrelay/pkg/cliui"
	"github.com/papercomputeco/tgrelay/pkg/config"
	"github.com/papercomputeco/tgrelay/pkg/credentials"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
)

const authLongDesc string = `Store credentials for tgrelay.

Credentials are stored in credentials.toml in the .tgrelay/ directory with
0600 permissions. Environment variables always take precedence over stored
credentials.

Telegram bot tokens are verified against the Bot API before they are stored.

Supported providers: telegram, anthropic

Examples:
  tgrelay auth telegram               Prompt for the bot token
  tgrelay auth anthropic              Prompt for the Anthropic API key
  tgrelay auth --list                 List stored credentials
  tgrelay auth --remove telegram      Remove the stored bot token
  echo $KEY | tgrelay auth anthropic  Pipe the key from stdin`

const authShortDesc string = "Store the bot token and API key"

const verifyTimeout = 15 * time.Second

func NewAuthCmd() *cobra.Command {
	var (
		listFlag   bool
		removeFlag string
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			out := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(out, configDir)
			case removeFlag != "":
				return runRemove(out, removeFlag, configDir)
			default:
				if len(args) == 0 {
					return fmt.Errorf("provider argument required\n\nSupported providers: %s",
						strings.Join(credentials.SupportedProviders(), ", "))
				}
				return runAuth(cmd.Context(), cmd.InOrStdin(), out, args[0], configDir, !skipVerify)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a provider")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Store a bot token without checking it against the Bot API")

	return cmd
}

func runAuth(ctx context.Context, in io.Reader, out io.Writer, provider, configDir string, verify bool) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	if !credentials.IsSupportedProvider(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	secret, err := readSecret(in, out, provider)
	if err != nil {
		return err
	}

	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("credential cannot be empty")
	}

	if provider == credentials.ProviderTelegram && verify {
		if err := verifyBotToken(ctx, out, secret, configDir); err != nil {
			return err
		}
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(provider, secret); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored %s credentials %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(provider),
		cliui.DimStyle.Render(cliui.MaskSecret(secret)+", overridden by "+credentials.EnvVarForProvider(provider)),
	)

	return nil
}

// verifyBotToken calls getMe with the token against the configured Bot API.
func verifyBotToken(ctx context.Context, out io.Writer, token, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	var me *telegram.User
	err = cliui.Step(out, "Verifying bot token", func() error {
		var err error
		me, err = telegram.NewClient(cfg.Telegram.APIBase, token).GetMe(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("verifying bot token: %w", err)
	}

	fmt.Fprintf(out, "  %s Bot %s\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render("@"+me.Username))
	return nil
}

func runList(out io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'tgrelay auth <provider>' to store credentials.\n")
		fmt.Fprintf(out, "  Supported providers: %s\n\n", strings.Join(credentials.SupportedProviders(), ", "))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, p := range providers {
		secret, err := mgr.GetKey(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(p),
			cliui.DimStyle.Render(cliui.MaskSecret(secret)),
		)
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, provider, configDir string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(provider))

	return nil
}

// readSecret prompts with hidden input when in is a terminal and reads the
// first line otherwise.
func readSecret(in io.Reader, out io.Writer, provider string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "%s ", cliui.PromptStyle.Render(fmt.Sprintf("Enter %s credential (%s):", provider, credentials.EnvVarForProvider(provider))))

		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading credential: %w", err)
		}
		return string(secret), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
