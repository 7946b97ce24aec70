package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnhub-engine/apperrors"
	"learnhub-engine/logger"
	"learnhub-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB  *gorm.DB
	Log *logger.Logger
	now func() time.Time
}

func NewBadgeService(db *gorm.DB, log *logger.Logger) *BadgeService {
	return &BadgeService{DB: db, Log: log.With("component", "badge"), now: time.Now}
}

// BadgeCriteria are balance thresholds; every non-zero field must be met.
type BadgeCriteria struct {
	MinPoints     int64 `json:"min_points,omitempty"`
	MinLifetimeXP int64 `json:"min_lifetime_xp,omitempty"`
	MinLevel      int64 `json:"min_level,omitempty"`
	MinStreak     int64 `json:"min_streak,omitempty"`
}

func (c BadgeCriteria) empty() bool {
	return c == BadgeCriteria{}
}

func (c BadgeCriteria) met(bal *models.UserBalance) bool {
	if c.empty() {
		return false
	}
	return bal.Points >= c.MinPoints &&
		bal.LifetimeXP >= c.MinLifetimeXP &&
		int64(bal.Level) >= c.MinLevel &&
		int64(bal.LongestStreak) >= c.MinStreak
}

func parseCriteria(b *models.Badge) (BadgeCriteria, error) {
	var c BadgeCriteria
	if len(b.Criteria) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b.Criteria, &c); err != nil {
		return c, fmt.Errorf("badge %s has malformed criteria: %w", b.Key, err)
	}
	return c, nil
}

// AwardBadge grants the badge with the given key. Awarding an owned badge is
// not an error; it reports false.
func (s *BadgeService) AwardBadge(ctx context.Context, userID, key string) (bool, error) {
	if userID == "" {
		return false, apperrors.Validation("user_id", "is required")
	}
	var awarded bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var badge models.Badge
		if err := tx.Where("key = ?", key).First(&badge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("badge", key)
			}
			return fmt.Errorf("failed to load badge %s: %w", key, err)
		}
		var err error
		awarded, err = grantBadge(tx, userID, &badge, s.now())
		return err
	})
	if err != nil {
		return false, err
	}
	if awarded {
		s.Log.Info("Badge awarded", "user_id", userID, "badge", key)
	}
	return awarded, nil
}

// grantBadge inserts the (user, badge) pair if absent and credits the badge's
// points on first award only.
func grantBadge(tx *gorm.DB, userID string, badge *models.Badge, now time.Time) (bool, error) {
	ub := models.UserBadge{
		ID:       uuid.NewString(),
		UserID:   userID,
		BadgeID:  badge.ID,
		EarnedAt: now,
	}
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Create(&ub)
	if res.Error != nil {
		return false, fmt.Errorf("failed to award badge %s to %s: %w", badge.Key, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if badge.Points != 0 {
		if _, err := creditBalance(tx, userID, badge.Points, 0, "badge:"+badge.Key, now); err != nil {
			return false, err
		}
	}
	return true, nil
}

// grantBadgesByKey awards each listed key that exists. Unknown keys are
// returned separately so the caller can report them.
func grantBadgesByKey(tx *gorm.DB, userID string, keys []string, now time.Time) (awarded, unknown []string, err error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	var badges []models.Badge
	if err := tx.Where("key IN ?", keys).Find(&badges).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load badges: %w", err)
	}
	byKey := make(map[string]*models.Badge, len(badges))
	for i := range badges {
		byKey[badges[i].Key] = &badges[i]
	}
	for _, k := range keys {
		b, ok := byKey[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		ok, err := grantBadge(tx, userID, b, now)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			awarded = append(awarded, k)
		}
	}
	return awarded, unknown, nil
}

// grantCriteriaBadges evaluates threshold badges against the user's current
// balance. Single pass: points from a badge granted here do not cascade.
func grantCriteriaBadges(tx *gorm.DB, userID string, now time.Time) ([]string, error) {
	var bal models.UserBalance
	if err := tx.Where("user_id = ?", userID).First(&bal).Error; err != nil {
		return nil, fmt.Errorf("failed to load balance for %s: %w", userID, err)
	}

	var badges []models.Badge
	if err := tx.Where("criteria IS NOT NULL").
		Where("id NOT IN (?)", tx.Model(&models.UserBadge{}).Select("badge_id").Where("user_id = ?", userID)).
		Order("key").
		Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("failed to load criteria badges: %w", err)
	}

	var awarded []string
	for i := range badges {
		c, err := parseCriteria(&badges[i])
		if err != nil {
			return nil, err
		}
		if !c.met(&bal) {
			continue
		}
		ok, err := grantBadge(tx, userID, &badges[i], now)
		if err != nil {
			return nil, err
		}
		if ok {
			awarded = append(awarded, badges[i].Key)
		}
	}
	return awarded, nil
}

func (s *BadgeService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := s.DB.WithContext(ctx).Order("key").Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

// ListUserBadges returns displayed badges first (by featured order), then the
// rest newest first.
func (s *BadgeService) ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var out []models.UserBadge
	if err := s.DB.WithContext(ctx).
		Preload("Badge").
		Where("user_id = ?", userID).
		Order("is_displayed DESC").
		Order("featured_order ASC").
		Order("earned_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list badges for %s: %w", userID, err)
	}
	return out, nil
}

// SetDisplayedBadges features up to three owned badges in the given order and
// hides the rest.
func (s *BadgeService) SetDisplayedBadges(ctx context.Context, userID string, keys []string) error {
	if len(keys) > models.MaxDisplayedBadges {
		return apperrors.Validation("badge_keys", fmt.Sprintf("at most %d badges can be displayed", models.MaxDisplayedBadges))
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return apperrors.Validation("badge_keys", "duplicate key "+k)
		}
		seen[k] = true
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []models.UserBadge
		if err := tx.Joins("Badge").
			Where("user_badges.user_id = ?", userID).
			Find(&owned).Error; err != nil {
			return fmt.Errorf("failed to load badges for %s: %w", userID, err)
		}
		byKey := make(map[string]string, len(owned))
		for _, ub := range owned {
			byKey[ub.Badge.Key] = ub.ID
		}

		ids := make([]string, len(keys))
		for i, k := range keys {
			id, ok := byKey[k]
			if !ok {
				return apperrors.Forbidden(fmt.Sprintf("badge %s is not owned by user", k))
			}
			ids[i] = id
		}

		if err := tx.Model(&models.UserBadge{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{"is_displayed": false, "featured_order": nil}).Error; err != nil {
			return fmt.Errorf("failed to reset displayed badges: %w", err)
		}
		for i, id := range ids {
			if err := tx.Model(&models.UserBadge{}).
				Where("id = ?", id).
				Updates(map[string]interface{}{"is_displayed": true, "featured_order": i + 1}).Error; err != nil {
				return fmt.Errorf("failed to display badge: %w", err)
			}
		}
		return nil
	})
}
