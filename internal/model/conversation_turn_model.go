package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationTurn is one message of a refinement run
type ConversationTurn struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RequestId uuid.UUID      `gorm:"type:uuid;not null;index"`
	SessionId string         `gorm:"size:128;not null;index"`
	UserId    string         `gorm:"size:128;not null;index"`
	Sequence  int            `gorm:"not null"`
	Stage     string         `gorm:"size:32;not null"`
	Content   string         `gorm:"type:text"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
