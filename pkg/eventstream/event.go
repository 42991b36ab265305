package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a user message received a model reply.
	EventTypeTurnCompleted = "tgrelay.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for one completed
// exchange: the user message and the reply appended to a conversation.
type TurnCompletedEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	ConversationID int64     `json:"conversation_id"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	User           string    `json:"user"`
	Assistant      string    `json:"assistant"`
	DurationMs     int64     `json:"duration_ms"`
}

// NewTurnCompletedEvent stamps a new event with an id, the current schema
// and the emission time.
func NewTurnCompletedEvent(conversationID int64, user, assistant string) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeTurnCompleted,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		ConversationID: conversationID,
		User:           user,
		Assistant:      assistant,
	}
}
