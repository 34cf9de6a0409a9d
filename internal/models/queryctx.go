// internal/models/queryctx.go
package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Query carries one user utterance plus its conversational context.
// Immutable once created; history is supplied by the caller with the
// request and stays read-only for the duration of the turn.
type Query struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	SessionID string    `json:"sessionId"`
	History   []Turn    `json:"history,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Request is the single exposed entry point payload.
type Request struct {
	QueryText           string `json:"query_text"`
	SessionID           string `json:"session_id"`
	ConversationHistory []Turn `json:"conversation_history,omitempty"`
}

// Response is the single exposed exit payload.
type Response struct {
	AnswerText       string           `json:"answer_text"`
	IntentCategory   Category         `json:"intent_category"`
	Confidence       float64          `json:"confidence"`
	Citations        []string         `json:"citations"`
	ValidationStatus ValidationState  `json:"validation_status"`
	StageLatencyMS   map[string]int64 `json:"per_stage_latency_ms"`
	Error            string           `json:"error,omitempty"`
}
