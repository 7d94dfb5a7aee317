package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByRequestID struct {
	RequestID uuid.UUID
}

func (s ByRequestID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("request_id = ?", s.RequestID)
}

// DialogTurns keeps the user questions and the answers returned to them
type DialogTurns struct{}

func (s DialogTurns) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("(stage = ? OR metadata->>'final' = 'true')", "user")
}

type NotUserID struct {
	UserID string
}

func (s NotUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id <> ?", s.UserID)
}
