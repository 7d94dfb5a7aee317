package disambiguation

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypePrompt = "disambiguation.prompt"
	TypeReply  = "disambiguation.reply"

	topicPrefix = "disambiguation."
)

// Envelope is the websocket frame shape shared with the notification stream
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Prompt struct {
	RequestID  string    `json:"request_id"`
	Prompt     string    `json:"prompt"`
	Candidates []string  `json:"candidates"`
	AllowNone  bool      `json:"allow_none"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Reply is the client's answer. None is only honoured when the prompt allowed it.
type Reply struct {
	RequestID string `json:"request_id" validate:"required"`
	Value     string `json:"value"`
	None      bool   `json:"none"`
	// SessionID is stamped by the server from the connection, never trusted from the client
	SessionID string `json:"session_id,omitempty"`
}

func encodePrompt(p Prompt) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypePrompt, Data: data})
}

// ParseReply decodes a reply frame
func ParseReply(raw []byte) (Reply, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Reply{}, fmt.Errorf("invalid frame: %w", err)
	}
	if env.Type != TypeReply {
		return Reply{}, fmt.Errorf("unexpected frame type %q", env.Type)
	}
	var r Reply
	if err := json.Unmarshal(env.Data, &r); err != nil {
		return Reply{}, fmt.Errorf("invalid reply: %w", err)
	}
	if r.RequestID == "" {
		return Reply{}, fmt.Errorf("reply without request_id")
	}
	return r, nil
}

func topic(requestID string) string {
	return topicPrefix + requestID
}
