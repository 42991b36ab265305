package llm

// CompletionRequest is the outbound body for a completion call. It is built
// fresh from a conversation snapshot for every call and never retained.
type CompletionRequest struct {
	// Model identifier (e.g., "claude-3-5-sonnet-latest")
	Model string `json:"model"`

	// MaxTokens bounds the length of the generated reply
	MaxTokens int `json:"max_tokens"`

	// System instruction sent alongside the conversation
	System string `json:"system,omitempty"`

	// Messages are the conversation turns, oldest first
	Messages []Turn `json:"messages"`
}
