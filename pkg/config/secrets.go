package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/papercomputeco/tgrelay/pkg/credentials"
)

// Secrets are the credentials a run needs.
type Secrets struct {
	BotToken string
	APIKey   string
}

// SecretStore reads stored credentials. *credentials.Manager implements it.
type SecretStore interface {
	GetKey(provider string) (string, error)
}

// ResolveSecrets looks up the API key, and the bot token when requireBot is
// set, preferring viper (flags and environment) over the credential store.
// Every missing secret is reported as a *MissingCredentialError.
func ResolveSecrets(v *viper.Viper, store SecretStore, requireBot bool) (Secrets, error) {
	var (
		secrets Secrets
		errs    []error
		err     error
	)

	secrets.APIKey, err = lookup(v, store, KeyAPIKey, credentials.ProviderAnthropic)
	if err != nil {
		return Secrets{}, err
	}
	if secrets.APIKey == "" {
		errs = append(errs, &MissingCredentialError{
			Name:     "Anthropic API key",
			Provider: credentials.ProviderAnthropic,
			EnvVars:  []string{"CLAUDE_API_KEY", "TGRELAY_ANTHROPIC_API_KEY"},
		})
	}

	if requireBot {
		secrets.BotToken, err = lookup(v, store, KeyBotToken, credentials.ProviderTelegram)
		if err != nil {
			return Secrets{}, err
		}
		if secrets.BotToken == "" {
			errs = append(errs, &MissingCredentialError{
				Name:     "Telegram bot token",
				Provider: credentials.ProviderTelegram,
				EnvVars:  []string{"BOT_TOKEN", "TGRELAY_TELEGRAM_BOT_TOKEN"},
			})
		}
	}

	return secrets, errors.Join(errs...)
}

func lookup(v *viper.Viper, store SecretStore, key, provider string) (string, error) {
	if value := v.GetString(key); value != "" {
		return value, nil
	}
	if store == nil {
		return "", nil
	}
	value, err := store.GetKey(provider)
	if err != nil {
		return "", fmt.Errorf("reading stored %s credentials: %w", provider, err)
	}
	return value, nil
}
