package models

import (
	"time"

	"gorm.io/datatypes"
)

type RewardType string

const (
	RewardTypePhysical RewardType = "PHYSICAL"
	RewardTypeVirtual  RewardType = "VIRTUAL"
)

type RedemptionStatus string

const (
	RedemptionRequested RedemptionStatus = "REQUESTED"
	RedemptionApproved  RedemptionStatus = "APPROVED"
	RedemptionFulfilled RedemptionStatus = "FULFILLED"
	RedemptionRejected  RedemptionStatus = "REJECTED"
)

// Reward is an item in the points store.
type Reward struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	SKU         string `gorm:"column:sku;uniqueIndex;not null" json:"sku"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Cost        int64  `gorm:"not null" json:"cost"`
	// Stock nil means unlimited.
	Stock    *int           `json:"stock"`
	Type     RewardType     `gorm:"type:varchar(16);not null" json:"type"`
	Active   bool           `gorm:"not null" json:"active"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	Timestamps
}

// RewardRedemption records a purchase. Cost is a snapshot of the reward price
// at redemption time and never changes afterwards.
type RewardRedemption struct {
	ID       string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string           `gorm:"index;not null" json:"user_id"`
	RewardID string           `gorm:"index;not null" json:"reward_id"`
	Cost     int64            `gorm:"not null" json:"cost"`
	Status   RedemptionStatus `gorm:"type:varchar(16);not null" json:"status"`
	Shipping datatypes.JSON   `gorm:"column:shipping_json" json:"shipping,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Reward Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
}

// UserInventory holds virtual items a user owns, one row per (user, sku).
type UserInventory struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `gorm:"uniqueIndex:idx_user_sku;not null" json:"user_id"`
	SKU        string    `gorm:"column:sku;uniqueIndex:idx_user_sku;not null" json:"sku"`
	RewardID   string    `gorm:"not null" json:"reward_id"`
	AcquiredAt time.Time `gorm:"autoCreateTime" json:"acquired_at"`
}

func (UserInventory) TableName() string {
	return "user_inventory"
}
