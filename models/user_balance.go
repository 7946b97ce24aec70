package models

import (
	"time"

	"gorm.io/gorm"
)

// UserBalance is the denormalized points/XP state for one user. It is only
// mutated inside the transaction that appends the matching PointTransaction.
type UserBalance struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"uniqueIndex;not null" json:"user_id"`
	Points     int64  `gorm:"not null;default:0" json:"points"`
	LifetimeXP int64  `gorm:"column:lifetime_xp;not null;default:0" json:"lifetime_xp"`
	Level      int    `gorm:"not null;default:1" json:"level"`

	// Daily activity streak, counted in UTC calendar days.
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// PointTransaction is the append-only points ledger. Leaderboards are sums of
// Delta over a CreatedAt window.
type PointTransaction struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Delta     int64     `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"type:varchar(128);index;not null" json:"reason"`
	CreatedAt time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
