package config

import (
	"fmt"
	"strings"
)

// MissingCredentialError reports a required secret that no source provided.
type MissingCredentialError struct {
	// Name is the human-readable credential name, e.g. "Telegram bot token".
	Name string

	// Provider is the credentials.toml provider it can be stored under.
	Provider string

	// EnvVars are the environment variables that can supply it.
	EnvVars []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s is not set: export %s or run 'tgrelay auth %s'",
		e.Name, strings.Join(e.EnvVars, " or "), e.Provider)
}
