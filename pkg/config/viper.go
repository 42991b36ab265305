package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tgrelay/pkg/dotdir"
)

// Secret keys. They are resolved through viper like every other key but are
// never written to config.toml.
const (
	KeyBotToken = "telegram.bot_token"
	KeyAPIKey   = "anthropic.api_key"
)

// legacyEnv lists the environment variable names accepted in addition to the
// TGRELAY_ prefixed ones.
var legacyEnv = map[string]string{
	KeyBotToken:       "BOT_TOKEN",
	KeyAPIKey:         "CLAUDE_API_KEY",
	"anthropic.model": "CLAUDE_MODEL",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the TGRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TGRELAY_ANTHROPIC_MODEL, BOT_TOKEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: TGRELAY_API_LISTEN, TGRELAY_LOG_DEBUG, etc.
	v.SetEnvPrefix("TGRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "TGRELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	for _, key := range orderedKeys {
		v.SetDefault(key, configKeys[key].get(d))
	}
	v.SetDefault("version", d.Version)
}

// FromViper builds a Config from the resolved viper values.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Telegram: TelegramConfig{
			APIBase:     v.GetString("telegram.api_base"),
			PollTimeout: v.GetInt("telegram.poll_timeout"),
		},
		Anthropic: AnthropicConfig{
			Model:        v.GetString("anthropic.model"),
			APIURL:       v.GetString("anthropic.api_url"),
			MaxTokens:    v.GetInt("anthropic.max_tokens"),
			SystemPrompt: v.GetString("anthropic.system_prompt"),
			MaxRetries:   v.GetInt("anthropic.max_retries"),
			BaseTimeout:  v.GetInt("anthropic.base_timeout"),
		},
		Context: ContextConfig{
			UserWindow:    v.GetInt("context.user_window"),
			HistoryWindow: v.GetInt("context.history_window"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			KafkaBrokers: v.GetString("events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		Log: LogConfig{
			Debug: v.GetBool("log.debug"),
			JSON:  v.GetBool("log.json"),
			File:  v.GetString("log.file"),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Watch re-resolves the config whenever config.toml changes on disk and
// hands the result to onChange. It reports false when no config file was
// loaded, in which case there is nothing to watch.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed", "file", e.Name, "op", e.Op.String())
		onChange(FromViper(v))
	})
	v.WatchConfig()
	return true
}
