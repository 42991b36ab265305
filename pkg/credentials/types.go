package credentials

// Credentials represents the stored secrets in credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the secret for a single provider: the bot token
// for telegram, the API key for anthropic.
type ProviderCredential struct {
	Token string `toml:"token"`
}
