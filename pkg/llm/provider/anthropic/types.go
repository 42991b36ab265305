package anthropic

import "encoding/json"

// messagesResponse probes the fields a reply can be extracted from.
// RawMessage fields tolerate any JSON shape so unexpected bodies fall through
// to the raw-body fallback instead of failing to decode.
type messagesResponse struct {
	// Content is the Messages API list of content blocks.
	Content json.RawMessage `json:"content"`

	// Completion is the legacy Text Completions API reply field.
	Completion json.RawMessage `json:"completion"`
}

// contentBlock is a single block in a Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
