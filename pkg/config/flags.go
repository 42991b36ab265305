package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "tgrelay serve" and "tgrelay chat").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "anthropic.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagModel         = "model"
	FlagSystemPrompt  = "system-prompt"
	FlagMaxRetries    = "max-retries"
	FlagUserWindow    = "user-window"
	FlagHistoryWindow = "history-window"
	FlagAPIListen     = "api-listen"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagPollTimeout   = "poll-timeout"
)

// Flags is the registry shared by all commands.
var Flags = FlagSet{
	FlagModel: {
		Name: "model", Shorthand: "m", ViperKey: "anthropic.model",
		Description: "Anthropic model to relay messages to",
	},
	FlagSystemPrompt: {
		Name: "system-prompt", ViperKey: "anthropic.system_prompt",
		Description: "System instruction sent with every request",
	},
	FlagMaxRetries: {
		Name: "max-retries", ViperKey: "anthropic.max_retries",
		Description: "Attempts per completion before giving up",
	},
	FlagUserWindow: {
		Name: "user-window", ViperKey: "context.user_window",
		Description: "Turns kept after a user message",
	},
	FlagHistoryWindow: {
		Name: "history-window", ViperKey: "context.history_window",
		Description: "Turns kept after a model reply",
	},
	FlagAPIListen: {
		Name: "api-listen", Shorthand: "a", ViperKey: "api.listen",
		Description: "Address for the status API to listen on (disabled when empty)",
	},
	FlagKafkaBrokers: {
		Name: "kafka-brokers", ViperKey: "events.kafka_brokers",
		Description: "Comma separated Kafka brokers for turn events (disabled when empty)",
	},
	FlagKafkaTopic: {
		Name: "kafka-topic", ViperKey: "events.kafka_topic",
		Description: "Kafka topic for turn events",
	},
	FlagPollTimeout: {
		Name: "poll-timeout", ViperKey: "telegram.poll_timeout",
		Description: "Telegram long-poll timeout in seconds",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultStringFor(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultIntFor(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultStringFor returns the default string value for a viper key from NewDefaultConfig.
func defaultStringFor(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultIntFor returns the default int value for a viper key from NewDefaultConfig.
func defaultIntFor(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
