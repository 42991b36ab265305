// Package provider defines the contract between the relay and an LLM backend.
package provider

import (
	"context"

	"github.com/papercomputeco/tgrelay/pkg/llm"
)

// Completer turns a conversation into a single reply text.
// Implementations own their retry policy; an error means every attempt failed.
type Completer interface {
	// Name returns the canonical provider name (e.g., "anthropic")
	Name() string

	// Model returns the model identifier requests are sent with.
	Model() string

	// Complete sends the turns, oldest first, and returns the normalized reply.
	Complete(ctx context.Context, turns []llm.Turn) (string, error)
}
