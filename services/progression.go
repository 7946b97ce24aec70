package services

import (
	"fmt"
	"math"
	"time"

	"learnhub-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// LevelForXP walks the curve: L2 at 100 XP, L3 at 329, L4 at 702, ...
func LevelForXP(xp int64) int {
	level := 1
	for {
		need := xpForNextLevel(level)
		if xp < need {
			return level
		}
		xp -= need
		level++
	}
}

// ensureBalance is get-or-create for the user's balance row. The unique index
// on user_id arbitrates concurrent first awards; the loser's insert is a no-op.
// The returned row is locked for the rest of tx where the database supports it.
func ensureBalance(tx *gorm.DB, userID string) (*models.UserBalance, error) {
	seed := models.UserBalance{ID: uuid.NewString(), UserID: userID, Level: 1}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("failed to create balance for %s: %w", userID, err)
	}

	var bal models.UserBalance
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&bal).Error; err != nil {
		return nil, fmt.Errorf("failed to load balance for %s: %w", userID, err)
	}
	return &bal, nil
}

type creditResult struct {
	Balance *models.UserBalance
	LevelUp bool
}

// creditBalance applies a points/XP change and appends the ledger row for
// the points part, all on tx. A zero points delta writes no ledger row.
func creditBalance(tx *gorm.DB, userID string, points, xp int64, reason string, now time.Time) (*creditResult, error) {
	bal, err := ensureBalance(tx, userID)
	if err != nil {
		return nil, err
	}
	if points == 0 && xp == 0 {
		return &creditResult{Balance: bal}, nil
	}

	if err := tx.Model(&models.UserBalance{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"points":      gorm.Expr("points + ?", points),
			"lifetime_xp": gorm.Expr("lifetime_xp + ?", xp),
			"updated_at":  now,
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to credit balance for %s: %w", userID, err)
	}

	if err := tx.Where("user_id = ?", userID).First(bal).Error; err != nil {
		return nil, fmt.Errorf("failed to reload balance for %s: %w", userID, err)
	}

	levelUp := false
	if newLevel := LevelForXP(bal.LifetimeXP); newLevel > bal.Level {
		levelUp = true
		bal.Level = newLevel
		bal.LastLevelUpAt = &now
		if err := tx.Model(&models.UserBalance{}).
			Where("user_id = ?", userID).
			UpdateColumns(map[string]interface{}{
				"level":            newLevel,
				"last_level_up_at": now,
			}).Error; err != nil {
			return nil, fmt.Errorf("failed to level up %s: %w", userID, err)
		}
	}

	if points != 0 {
		entry := models.PointTransaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Delta:     points,
			Reason:    reason,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, fmt.Errorf("failed to append ledger entry for %s: %w", userID, err)
		}
	}

	return &creditResult{Balance: bal, LevelUp: levelUp}, nil
}

// advanceStreak counts consecutive UTC days with activity. Activity dated on
// or before the last active day leaves the streak alone.
func advanceStreak(bal *models.UserBalance, at time.Time) bool {
	day := at.UTC().Truncate(24 * time.Hour)

	if bal.LastActiveAt != nil {
		last := bal.LastActiveAt.UTC().Truncate(24 * time.Hour)
		switch gap := day.Sub(last); {
		case gap <= 0:
			return false
		case gap == 24*time.Hour:
			bal.CurrentStreak++
		default:
			bal.CurrentStreak = 1
		}
	} else {
		bal.CurrentStreak = 1
	}

	if bal.CurrentStreak > bal.LongestStreak {
		bal.LongestStreak = bal.CurrentStreak
	}
	at = at.UTC()
	bal.LastActiveAt = &at
	return true
}

func saveStreak(tx *gorm.DB, bal *models.UserBalance) error {
	return tx.Model(&models.UserBalance{}).
		Where("user_id = ?", bal.UserID).
		UpdateColumns(map[string]interface{}{
			"current_streak": bal.CurrentStreak,
			"longest_streak": bal.LongestStreak,
			"last_active_at": bal.LastActiveAt,
		}).Error
}
