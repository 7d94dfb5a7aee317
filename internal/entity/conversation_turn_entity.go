package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationTurn struct {
	Id        uuid.UUID
	RequestId uuid.UUID
	SessionId string
	UserId    string
	Sequence  int
	Stage     string
	Content   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}
