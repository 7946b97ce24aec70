package models

import (
	"time"

	"gorm.io/datatypes"
)

// Quest is a counter-style goal, e.g. "finish 5 lessons this week".
type Quest struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Key         string `gorm:"uniqueIndex;not null" json:"key"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	// Rule is {"target": 5, ...}. A quest without a numeric target never completes.
	Rule       datatypes.JSON `gorm:"column:rule_json" json:"rule"`
	Reward     datatypes.JSON `gorm:"column:reward_json" json:"reward,omitempty"`
	ActiveFrom *time.Time     `json:"active_from,omitempty"`
	ActiveTo   *time.Time     `json:"active_to,omitempty"`

	Timestamps
}

// QuestProgress is unique per (UserID, QuestID). CompletedAt is set once.
type QuestProgress struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"uniqueIndex:idx_user_quest;not null" json:"user_id"`
	QuestID     string     `gorm:"uniqueIndex:idx_user_quest;not null" json:"quest_id"`
	Progress    int64      `gorm:"not null;default:0" json:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (QuestProgress) TableName() string {
	return "quest_progress"
}
