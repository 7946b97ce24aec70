package models

import (
	"time"

	"gorm.io/datatypes"
)

// GamificationEvent is an immutable record of something a user did.
type GamificationEvent struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string         `gorm:"index:idx_event_user_type;not null" json:"user_id"`
	Type       string         `gorm:"index:idx_event_user_type;type:varchar(64);not null" json:"type"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	DedupKey   *string        `gorm:"index" json:"dedup_key,omitempty"`
	OccurredAt time.Time      `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
