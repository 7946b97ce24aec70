package services

import (
	"context"
	"fmt"

	"learnhub-engine/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBadges are the badges the rules and criteria refer to.
var DefaultBadges = []models.Badge{
	{Key: "course-finisher", Name: "Course Finisher", Description: "Completed a full course", Rarity: models.RarityCommon, Points: 25},
	{Key: "perfect-score", Name: "Perfect Score", Description: "Aced a quiz", Rarity: models.RarityRare, Points: 10},
	{Key: "problem-solver", Name: "Problem Solver", Description: "Solved a coding challenge", Rarity: models.RarityCommon},
	{Key: "hackathon-participant", Name: "Hacker", Description: "Submitted a hackathon project", Rarity: models.RarityRare, Points: 20},
	{Key: "hackathon-champion", Name: "Hackathon Champion", Description: "Won a hackathon", Rarity: models.RarityLegendary, Points: 100},
	{Key: "week-streak", Name: "Week Warrior", Description: "Active seven days in a row", Rarity: models.RarityRare,
		Criteria: datatypes.JSON(`{"min_streak": 7}`)},
	{Key: "rising-star", Name: "Rising Star", Description: "Reached level 5", Rarity: models.RarityEpic,
		Criteria: datatypes.JSON(`{"min_level": 5}`)},
}

func intPtr(n int) *int { return &n }

var DefaultRewards = []models.Reward{
	{SKU: "profile-frame-gold", Name: "Gold Profile Frame", Cost: 200, Type: models.RewardTypeVirtual, Active: true},
	{SKU: "mentor-session", Name: "1:1 Mentor Session", Cost: 1500, Stock: intPtr(20), Type: models.RewardTypeVirtual, Active: true},
	{SKU: "sticker-pack", Name: "Sticker Pack", Cost: 300, Stock: intPtr(500), Type: models.RewardTypePhysical, Active: true},
	{SKU: "hoodie", Name: "Community Hoodie", Cost: 2500, Stock: intPtr(50), Type: models.RewardTypePhysical, Active: true},
}

// SeedCatalog inserts the default badges and rewards that are missing.
// Existing rows, including admin edits to them, are left untouched.
func SeedCatalog(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range DefaultBadges {
			b.ID = uuid.NewString()
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoNothing: true,
			}).Create(&b).Error; err != nil {
				return fmt.Errorf("failed to seed badge %s: %w", b.Key, err)
			}
		}
		for _, r := range DefaultRewards {
			r.ID = uuid.NewString()
			if r.Stock != nil {
				r.Stock = intPtr(*r.Stock)
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sku"}},
				DoNothing: true,
			}).Create(&r).Error; err != nil {
				return fmt.Errorf("failed to seed reward %s: %w", r.SKU, err)
			}
		}
		return nil
	})
}

// AutoMigrate creates or updates every table the engine uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Hackathon{},
		&models.GamificationEvent{},
		&models.UserBalance{},
		&models.PointTransaction{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Reward{},
		&models.RewardRedemption{},
		&models.UserInventory{},
		&models.Quest{},
		&models.QuestProgress{},
	)
}
