package model

import (
	"time"

	"github.com/google/uuid"
)

type ValueMapping struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId     string    `gorm:"size:128;not null;uniqueIndex:idx_value_mappings_key,priority:1"`
	Label         string    `gorm:"size:128;not null;uniqueIndex:idx_value_mappings_key,priority:2"`
	Property      string    `gorm:"size:128;not null;uniqueIndex:idx_value_mappings_key,priority:3"`
	RawValue      string    `gorm:"size:512;not null;uniqueIndex:idx_value_mappings_key,priority:4"`
	ResolvedValue string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (ValueMapping) TableName() string {
	return "value_mappings"
}
