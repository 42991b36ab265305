// Package tgrelaycmder is the root of the tgrelay command tree.
package tgrelaycmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/tgrelay/cmd/tgrelay/auth"
	chatcmder "github.com/papercomputeco/tgrelay/cmd/tgrelay/chat"
	configcmder "github.com/papercomputeco/tgrelay/cmd/tgrelay/config"
	servecmder "github.com/papercomputeco/tgrelay/cmd/tgrelay/serve"
	versioncmder "github.com/papercomputeco/tgrelay/cmd/version"
	"github.com/papercomputeco/tgrelay/pkg/cliui"
)

const tgrelayLongDesc string = `tgrelay relays Telegram chats to Anthropic's Messages API.

Each chat keeps a short rolling window of recent turns which is sent along
with every message. Failed requests are retried with growing timeouts.

Get started:
  tgrelay auth telegram     Store the bot token
  tgrelay auth anthropic    Store the Anthropic API key
  tgrelay serve             Run the bot
  tgrelay chat              Talk to the model from the terminal`

const tgrelayShortDesc string = "tgrelay - Telegram to Claude relay"

func NewTgrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tgrelay",
		Short:        tgrelayShortDesc,
		Long:         tgrelayLongDesc,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cliui.ApplyColorEnv()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .tgrelay/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
