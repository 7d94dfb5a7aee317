package dto

import (
	"time"

	"github.com/google/uuid"
)

type AskRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
	// SessionId groups turns of one chat. A new session is created when empty.
	SessionId string `json:"session_id" validate:"omitempty,max=128"`
}

type TokenUsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AskResponse struct {
	RequestId   uuid.UUID          `json:"request_id"`
	SessionId   string             `json:"session_id"`
	Answer      string             `json:"answer"`
	Termination string             `json:"termination"`
	Iterations  int                `json:"iterations"`
	Route       []string           `json:"route"`
	Query       string             `json:"query,omitempty"`
	Usage       TokenUsageResponse `json:"usage"`
}

type ConversationTurnResponse struct {
	RequestId uuid.UUID              `json:"request_id"`
	Sequence  int                    `json:"sequence"`
	Stage     string                 `json:"stage"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// IndexRowsMessage is published after a prioritized answer so later requests can rank those rows
type IndexRowsMessage struct {
	Source    string                   `json:"source"`
	KeyColumn string                   `json:"key_column"`
	Rows      []map[string]interface{} `json:"rows"`
}
