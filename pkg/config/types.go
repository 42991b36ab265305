package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent tgrelay configuration stored as config.toml
// in the .tgrelay/ directory. The TOML layout uses sections for logical grouping.
// Secrets are never part of it; they live in credentials.toml or the environment.
type Config struct {
	Version   int             `toml:"version"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Anthropic AnthropicConfig `toml:"anthropic"`
	Context   ContextConfig   `toml:"context"`
	API       APIConfig       `toml:"api"`
	Events    EventsConfig    `toml:"events"`
	Log       LogConfig       `toml:"log"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	APIBase     string `toml:"api_base,omitempty"`
	PollTimeout int    `toml:"poll_timeout,omitempty"`
}

// AnthropicConfig holds completion client settings.
type AnthropicConfig struct {
	Model        string `toml:"model,omitempty"`
	APIURL       string `toml:"api_url,omitempty"`
	MaxTokens    int    `toml:"max_tokens,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
	MaxRetries   int    `toml:"max_retries,omitempty"`
	BaseTimeout  int    `toml:"base_timeout,omitempty"`
}

// ContextConfig holds the conversation window sizes.
type ContextConfig struct {
	UserWindow    int `toml:"user_window,omitempty"`
	HistoryWindow int `toml:"history_window,omitempty"`
}

// APIConfig holds status server settings. An empty Listen disables the server.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds turn event publishing settings. Publishing is disabled
// unless KafkaBrokers is set.
type EventsConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers splits the comma separated broker list.
func (e EventsConfig) Brokers() []string {
	var brokers []string
	for b := range strings.SplitSeq(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug bool `toml:"debug,omitempty"`
	JSON  bool `toml:"json,omitempty"`

	// File additionally receives JSON logs. A bare file name is placed in
	// the .tgrelay/ directory.
	File string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"telegram.api_base":       stringKey(func(c *Config) *string { return &c.Telegram.APIBase }),
	"telegram.poll_timeout":   intKey("telegram.poll_timeout", func(c *Config) *int { return &c.Telegram.PollTimeout }),
	"anthropic.model":         stringKey(func(c *Config) *string { return &c.Anthropic.Model }),
	"anthropic.api_url":       stringKey(func(c *Config) *string { return &c.Anthropic.APIURL }),
	"anthropic.max_tokens":    intKey("anthropic.max_tokens", func(c *Config) *int { return &c.Anthropic.MaxTokens }),
	"anthropic.system_prompt": stringKey(func(c *Config) *string { return &c.Anthropic.SystemPrompt }),
	"anthropic.max_retries":   intKey("anthropic.max_retries", func(c *Config) *int { return &c.Anthropic.MaxRetries }),
	"anthropic.base_timeout":  intKey("anthropic.base_timeout", func(c *Config) *int { return &c.Anthropic.BaseTimeout }),
	"context.user_window":     intKey("context.user_window", func(c *Config) *int { return &c.Context.UserWindow }),
	"context.history_window":  intKey("context.history_window", func(c *Config) *int { return &c.Context.HistoryWindow }),
	"api.listen":              stringKey(func(c *Config) *string { return &c.API.Listen }),
	"events.kafka_brokers":    stringKey(func(c *Config) *string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic":      stringKey(func(c *Config) *string { return &c.Events.KafkaTopic }),
	"log.debug":               boolKey("log.debug", func(c *Config) *bool { return &c.Log.Debug }),
	"log.json":                boolKey("log.json", func(c *Config) *bool { return &c.Log.JSON }),
	"log.file":                stringKey(func(c *Config) *string { return &c.Log.File }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"telegram.api_base",
	"telegram.poll_timeout",
	"anthropic.model",
	"anthropic.api_url",
	"anthropic.max_tokens",
	"anthropic.system_prompt",
	"anthropic.max_retries",
	"anthropic.base_timeout",
	"context.user_window",
	"context.history_window",
	"api.listen",
	"events.kafka_brokers",
	"events.kafka_topic",
	"log.debug",
	"log.json",
	"log.file",
}
