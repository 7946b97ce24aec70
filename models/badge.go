package models

import (
	"time"

	"gorm.io/datatypes"
)

// Badge: static config, seeded at boot and editable by admins.
type Badge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Key         string `gorm:"uniqueIndex;not null" json:"key"` // e.g. "course-finisher"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url,omitempty"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	Points      int64  `gorm:"not null;default:0" json:"points"`
	// Criteria holds balance thresholds, e.g. {"min_streak": 7}. Empty means
	// the badge is only granted explicitly by a rule.
	Criteria datatypes.JSON `json:"criteria,omitempty"`

	Timestamps
}

// UserBadge: awarded instance. (UserID, BadgeID) is unique so an award can be
// retried safely.
type UserBadge struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeID       string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_id"`
	EarnedAt      time.Time `gorm:"autoCreateTime" json:"earned_at"`
	IsDisplayed   bool      `gorm:"not null" json:"is_displayed"`
	FeaturedOrder *int      `json:"featured_order,omitempty"`

	Badge Badge `gorm:"foreignKey:BadgeID" json:"badge"`
}

// Badge rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// MaxDisplayedBadges is how many badges a profile can feature.
const MaxDisplayedBadges = 3
