package config

import (
	"github.com/papercomputeco/tgrelay/pkg/conversation"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
)

const (
	defaultModel      = "claude-3-5-sonnet-20241022"
	defaultKafkaTopic = "tgrelay.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Telegram: TelegramConfig{
			APIBase:     telegram.DefaultAPIBase,
			PollTimeout: telegram.DefaultPollTimeout,
		},
		Anthropic: AnthropicConfig{
			Model:        defaultModel,
			APIURL:       anthropic.DefaultURL,
			MaxTokens:    anthropic.DefaultMaxTokens,
			SystemPrompt: anthropic.DefaultSystemPrompt,
			MaxRetries:   anthropic.DefaultMaxRetries,
			BaseTimeout:  anthropic.DefaultBaseTimeout,
		},
		Context: ContextConfig{
			UserWindow:    conversation.DefaultUserWindow,
			HistoryWindow: conversation.DefaultHistoryWindow,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
