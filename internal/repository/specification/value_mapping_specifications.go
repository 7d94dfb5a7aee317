package specification

import (
	"time"

	"gorm.io/gorm"
)

// ByResolutionKey matches one remembered literal in one session
type ByResolutionKey struct {
	SessionID string
	Label     string
	Property  string
	RawValue  string
}

func (s ByResolutionKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ? AND label = ? AND property = ? AND raw_value = ?",
		s.SessionID, s.Label, s.Property, s.RawValue)
}

type CreatedBefore struct {
	Cutoff time.Time
}

func (s CreatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at < ?", s.Cutoff)
}
