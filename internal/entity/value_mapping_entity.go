package entity

import (
	"time"

	"github.com/google/uuid"
)

// ValueMapping is a remembered literal resolution for one chat session
type ValueMapping struct {
	Id            uuid.UUID
	SessionId     string
	Label         string
	Property      string
	RawValue      string
	ResolvedValue string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
