package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnhub-engine/apperrors"
	"learnhub-engine/logger"
	"learnhub-engine/metrics"
	"learnhub-engine/models"
	"learnhub-engine/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardService struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Metrics *metrics.Metrics
	now     func() time.Time
}

func NewRewardService(db *gorm.DB, log *logger.Logger, m *metrics.Metrics) *RewardService {
	return &RewardService{DB: db, Log: log.With("component", "reward"), Metrics: m, now: time.Now}
}

// ListRewards returns the active catalog, cheapest first.
func (s *RewardService) ListRewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	if err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("cost ASC").
		Order("sku ASC").
		Find(&rewards).Error; err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

// RedeemReward spends the reward's cost from the user's balance and records
// the redemption. Every write happens in one transaction; the deduction and
// the stock decrement are conditional updates, so two concurrent redemptions
// cannot both spend the same points or the last unit of stock.
func (s *RewardService) RedeemReward(ctx context.Context, userID, rewardID string, shipping map[string]interface{}) (*models.RewardRedemption, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}
	if strings.TrimSpace(rewardID) == "" {
		return nil, apperrors.Validation("reward_id", "is required")
	}

	var shippingJSON datatypes.JSON
	if len(shipping) > 0 {
		raw, err := json.Marshal(shipping)
		if err != nil {
			return nil, apperrors.Validation("shipping", "must be a JSON object")
		}
		shippingJSON = raw
	}

	now := s.now().UTC()
	var redemption models.RewardRedemption

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Retired rewards stay in the table for old redemptions but cannot be bought.
		var reward models.Reward
		if err := tx.Where("id = ? AND active = ?", rewardID, true).First(&reward).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("reward", rewardID)
			}
			return fmt.Errorf("failed to load reward %s: %w", rewardID, err)
		}

		bal, err := ensureBalance(tx, userID)
		if err != nil {
			return err
		}
		if bal.Points < reward.Cost {
			return apperrors.InsufficientPoints(bal.Points, reward.Cost)
		}
		if reward.Stock != nil && *reward.Stock <= 0 {
			return apperrors.OutOfStock(reward.SKU)
		}

		res := tx.Model(&models.UserBalance{}).
			Where("user_id = ? AND points >= ?", userID, reward.Cost).
			UpdateColumns(map[string]interface{}{
				"points":     gorm.Expr("points - ?", reward.Cost),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to deduct points for %s: %w", userID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.InsufficientPoints(bal.Points, reward.Cost)
		}

		if reward.Stock != nil {
			res := tx.Model(&models.Reward{}).
				Where("id = ? AND stock > 0", reward.ID).
				UpdateColumn("stock", gorm.Expr("stock - 1"))
			if res.Error != nil {
				return fmt.Errorf("failed to decrement stock of %s: %w", reward.SKU, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperrors.OutOfStock(reward.SKU)
			}
		}

		status := models.RedemptionRequested
		if reward.Type == models.RewardTypeVirtual {
			status = models.RedemptionFulfilled
		}
		redemption = models.RewardRedemption{
			ID:        uuid.NewString(),
			UserID:    userID,
			RewardID:  reward.ID,
			Cost:      reward.Cost,
			Status:    status,
			Shipping:  shippingJSON,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(&redemption).Error; err != nil {
			return fmt.Errorf("failed to create redemption: %w", err)
		}

		if reward.Type == models.RewardTypeVirtual {
			item := models.UserInventory{
				ID:         uuid.NewString(),
				UserID:     userID,
				SKU:        reward.SKU,
				RewardID:   reward.ID,
				AcquiredAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "sku"}},
				DoNothing: true,
			}).Create(&item).Error; err != nil {
				return fmt.Errorf("failed to add %s to inventory: %w", reward.SKU, err)
			}
		}

		entry := models.PointTransaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Delta:     -reward.Cost,
			Reason:    "redeem:" + reward.SKU,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		redemption.Reward = reward
		return nil
	})
	if err != nil {
		s.Metrics.Redemption(apperrors.Code(err))
		return nil, err
	}

	s.Metrics.Redemption("success")
	s.Log.Info("Reward redeemed",
		"user_id", userID, "reward_id", rewardID, "sku", redemption.Reward.SKU,
		"cost", redemption.Cost, "status", redemption.Status)
	return &redemption, nil
}

var redemptionTransitions = map[models.RedemptionStatus][]models.RedemptionStatus{
	models.RedemptionRequested: {models.RedemptionApproved, models.RedemptionRejected},
	models.RedemptionApproved:  {models.RedemptionFulfilled, models.RedemptionRejected},
}

func canTransition(from, to models.RedemptionStatus) bool {
	for _, next := range redemptionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateRedemptionStatus moves a redemption along its lifecycle. Rejecting
// refunds the snapshotted cost and returns the unit to finite stock.
func (s *RewardService) UpdateRedemptionStatus(ctx context.Context, redemptionID string, to models.RedemptionStatus) (*models.RewardRedemption, error) {
	now := s.now().UTC()
	var redemption models.RewardRedemption

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", redemptionID).
			First(&redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("redemption", redemptionID)
			}
			return fmt.Errorf("failed to load redemption %s: %w", redemptionID, err)
		}
		from := redemption.Status
		if !canTransition(from, to) {
			return apperrors.Validation("status", fmt.Sprintf("cannot move redemption from %s to %s", from, to))
		}

		res := tx.Model(&models.RewardRedemption{}).
			Where("id = ? AND status = ?", redemption.ID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to update redemption %s: %w", redemptionID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.New(apperrors.ErrConflict, "redemption status changed concurrently", nil)
		}
		redemption.Status = to

		var reward models.Reward
		if err := tx.Unscoped().Where("id = ?", redemption.RewardID).First(&reward).Error; err != nil {
			return fmt.Errorf("failed to load reward %s: %w", redemption.RewardID, err)
		}
		redemption.Reward = reward

		if to != models.RedemptionRejected {
			return nil
		}
		if _, err := creditBalance(tx, redemption.UserID, redemption.Cost, 0, "refund:"+reward.SKU, now); err != nil {
			return err
		}
		if reward.Stock != nil {
			if err := tx.Model(&models.Reward{}).
				Where("id = ?", reward.ID).
				UpdateColumn("stock", gorm.Expr("stock + 1")).Error; err != nil {
				return fmt.Errorf("failed to restock %s: %w", reward.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("Redemption status updated", "redemption_id", redemptionID, "status", to)
	return &redemption, nil
}

func (s *RewardService) ListRedemptions(ctx context.Context, userID string) ([]models.RewardRedemption, error) {
	var out []models.RewardRedemption
	if err := s.DB.WithContext(ctx).
		Preload("Reward", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list redemptions for %s: %w", userID, err)
	}
	return out, nil
}

func (s *RewardService) ListInventory(ctx context.Context, userID string) ([]models.UserInventory, error) {
	var out []models.UserInventory
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("acquired_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory for %s: %w", userID, err)
	}
	return out, nil
}

type CreateRewardInput struct {
	SKU         string                 `json:"sku"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Cost        int64                  `json:"cost"`
	Stock       *int                   `json:"stock"`
	Type        models.RewardType      `json:"type"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (s *RewardService) CreateReward(ctx context.Context, in CreateRewardInput) (*models.Reward, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("name", "is required")
	}
	sku := utils.NormalizeKey(in.SKU)
	if sku == "" {
		sku = utils.NormalizeKey(name)
	}
	if in.Cost < 0 {
		return nil, apperrors.Validation("cost", "must not be negative")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return nil, apperrors.Validation("stock", "must not be negative")
	}
	switch in.Type {
	case models.RewardTypePhysical, models.RewardTypeVirtual:
	default:
		return nil, apperrors.Validation("type", "must be PHYSICAL or VIRTUAL")
	}

	reward := models.Reward{
		ID:          uuid.NewString(),
		SKU:         sku,
		Name:        name,
		Description: in.Description,
		Cost:        in.Cost,
		Stock:       in.Stock,
		Type:        in.Type,
		Active:      true,
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apperrors.Validation("metadata", "must be a JSON object")
		}
		reward.Metadata = raw
	}

	if err := s.DB.WithContext(ctx).Create(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("reward sku %q already exists", sku), err)
		}
		return nil, fmt.Errorf("failed to create reward: %w", err)
	}
	return &reward, nil
}
