// Package configcmder provides the config command for managing persistent
// tgrelay configuration stored in the .tgrelay/ directory.
package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tgrelay/pkg/cliui"
	"github.com/papercomputeco/tgrelay/pkg/config"
)

const configLongDesc string = `Manage persistent tgrelay configuration.

Configuration is stored as config.toml in the .tgrelay/ directory and provides
default values for command flags. CLI flags and TGRELAY_ environment variables
always take precedence over config file values. Secrets are not part of the
config file; store them with 'tgrelay auth'.

Keys use dotted notation matching the TOML section structure:
  telegram.api_base, telegram.poll_timeout,
  anthropic.model, anthropic.api_url, anthropic.max_tokens,
  anthropic.system_prompt, anthropic.max_retries, anthropic.base_timeout,
  context.user_window, context.history_window,
  api.listen, events.kafka_brokers, events.kafka_topic,
  log.debug, log.json, log.file

Use subcommands to get, set, or list configuration values:
  tgrelay config set <key> <value>    Set a configuration value
  tgrelay config get <key>            Get a configuration value
  tgrelay config list                 List all configuration values

Examples:
  tgrelay config set anthropic.model claude-3-haiku-20240307
  tgrelay config set context.user_window 8
  tgrelay config get api.listen
  tgrelay config list`

const configShortDesc string = "Manage persistent tgrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(out io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
		return
	}
	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
