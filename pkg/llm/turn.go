// Package llm holds the provider-agnostic conversation types shared by the
// context store, the completion client and the relay.
package llm

// Role tags who authored a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a conversation may contain.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single role-tagged message in a conversation.
// Turns are values: copying a Turn never aliases another conversation's state.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserTurn creates a user Turn with the given text.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text}
}

// NewAssistantTurn creates an assistant Turn with the given text.
func NewAssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Content: text}
}
