package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"learnhub-engine/apperrors"
	"learnhub-engine/logger"
	"learnhub-engine/metrics"
	"learnhub-engine/models"
	"learnhub-engine/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GamificationService struct {
	DB      *gorm.DB
	Store   store.Store
	Rules   RuleSet
	Limits  AntiAbuseConfig
	Log     *logger.Logger
	Metrics *metrics.Metrics
	now     func() time.Time
}

func NewGamificationService(db *gorm.DB, st store.Store, limits AntiAbuseConfig, log *logger.Logger, m *metrics.Metrics) *GamificationService {
	return &GamificationService{
		DB:      db,
		Store:   st,
		Rules:   DefaultRules(),
		Limits:  limits,
		Log:     log.With("component", "gamification"),
		Metrics: m,
		now:     time.Now,
	}
}

type EventInput struct {
	UserID     string     `json:"user_id"`
	Type       string     `json:"type"`
	Payload    Payload    `json:"payload"`
	DedupKey   string     `json:"dedup_key"`
	OccurredAt *time.Time `json:"occurred_at"`
}

type IngestResult struct {
	EventID   string              `json:"event_id,omitempty"`
	Duplicate bool                `json:"duplicate"`
	Award     AwardResult         `json:"award"`
	NewBadges []string            `json:"new_badges,omitempty"`
	Quests    []QuestAdvance      `json:"quests,omitempty"`
	Balance   *models.UserBalance `json:"balance,omitempty"`
}

func validateEvent(userID, eventType string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.Validation("user_id", "is required")
	}
	if strings.TrimSpace(eventType) == "" {
		return apperrors.Validation("type", "is required")
	}
	return nil
}

// ApplyRules evaluates the configured rule for the event type. It has no side
// effects; dedup is the caller's job.
func (s *GamificationService) ApplyRules(userID, eventType string, payload Payload) AwardResult {
	return s.Rules.Evaluate(eventType, payload)
}

// RecordEvent appends the immutable event row and returns its id.
func (s *GamificationService) RecordEvent(ctx context.Context, userID, eventType string, payload Payload, dedupKey *string, occurredAt *time.Time) (string, error) {
	if err := validateEvent(userID, eventType); err != nil {
		return "", err
	}
	return recordEvent(s.DB.WithContext(ctx), userID, eventType, payload, dedupKey, occurredAt, s.now())
}

func recordEvent(tx *gorm.DB, userID, eventType string, payload Payload, dedupKey *string, occurredAt *time.Time, now time.Time) (string, error) {
	if payload == nil {
		payload = Payload{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Validation("payload", "must be a JSON object")
	}
	at := now
	if occurredAt != nil && !occurredAt.IsZero() {
		at = *occurredAt
	}
	if dedupKey != nil && *dedupKey == "" {
		dedupKey = nil
	}

	ev := models.GamificationEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       eventType,
		Payload:    datatypes.JSON(raw),
		DedupKey:   dedupKey,
		OccurredAt: at.UTC(),
		CreatedAt:  now,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return "", fmt.Errorf("failed to record %s event for %s: %w", eventType, userID, err)
	}
	return ev.ID, nil
}

// Ingest runs an event through dedup, velocity limiting, recording, rule
// evaluation and the balance/ledger/badge writes. A duplicate returns a zero
// award and writes nothing. Recording and applying share one transaction.
func (s *GamificationService) Ingest(ctx context.Context, in EventInput) (*IngestResult, error) {
	if err := validateEvent(in.UserID, in.Type); err != nil {
		s.Metrics.Event(in.Type, metrics.OutcomeInvalid)
		return nil, err
	}

	dup, err := s.CheckDedup(ctx, in.UserID, in.DedupKey)
	if err != nil {
		return nil, err
	}
	if dup {
		s.Metrics.Event(in.Type, metrics.OutcomeDuplicate)
		s.Log.Debug("Duplicate event ignored", "user_id", in.UserID, "type", in.Type, "dedup_key", in.DedupKey)
		return &IngestResult{Duplicate: true}, nil
	}

	exceeded, err := s.ExceedsVelocityLimit(ctx, in.UserID, in.Type)
	if err != nil {
		s.ReleaseDedup(ctx, in.UserID, in.DedupKey)
		return nil, err
	}
	if exceeded {
		s.ReleaseDedup(ctx, in.UserID, in.DedupKey)
		s.Metrics.Event(in.Type, metrics.OutcomeRateLimited)
		s.Log.Warn("Event rejected by velocity limit", "user_id", in.UserID, "type", in.Type)
		return nil, apperrors.RateLimited(in.UserID, in.Type)
	}

	now := s.now().UTC()
	result := &IngestResult{}
	var dedupKey *string
	if in.DedupKey != "" {
		dedupKey = &in.DedupKey
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eventID, err := recordEvent(tx, in.UserID, in.Type, in.Payload, dedupKey, in.OccurredAt, now)
		if err != nil {
			return err
		}
		result.EventID = eventID

		award := s.ApplyRules(in.UserID, in.Type, in.Payload)

		credit, err := creditBalance(tx, in.UserID, award.PointsDelta, award.XPDelta, in.Type, now)
		if err != nil {
			return err
		}
		award.LevelUp = credit.LevelUp

		activeAt := now
		if in.OccurredAt != nil && !in.OccurredAt.IsZero() && in.OccurredAt.Before(now) {
			activeAt = *in.OccurredAt
		}
		if advanceStreak(credit.Balance, activeAt) {
			if err := saveStreak(tx, credit.Balance); err != nil {
				return fmt.Errorf("failed to update streak for %s: %w", in.UserID, err)
			}
		}

		awarded, unknown, err := grantBadgesByKey(tx, in.UserID, award.BadgeKeys, now)
		if err != nil {
			return err
		}
		if len(unknown) > 0 {
			s.Log.Warn("Rule referenced unknown badges", "type", in.Type, "badges", unknown)
		}
		byCriteria, err := grantCriteriaBadges(tx, in.UserID, now)
		if err != nil {
			return err
		}
		result.NewBadges = append(awarded, byCriteria...)

		result.Quests, err = advanceTrackedQuests(tx, in.UserID, in.Type, now)
		if err != nil {
			return err
		}

		var bal models.UserBalance
		if err := tx.Where("user_id = ?", in.UserID).First(&bal).Error; err != nil {
			return fmt.Errorf("failed to reload balance for %s: %w", in.UserID, err)
		}
		result.Balance = &bal
		result.Award = award
		return nil
	})
	if err != nil {
		s.ReleaseDedup(ctx, in.UserID, in.DedupKey)
		s.Metrics.Event(in.Type, metrics.OutcomeFailed)
		return nil, err
	}

	s.Metrics.Event(in.Type, metrics.OutcomeRecorded)
	s.Metrics.Points(result.Award.PointsDelta)
	if len(result.NewBadges) > 0 {
		s.Log.Info("Badges awarded", "user_id", in.UserID, "badges", result.NewBadges)
	}
	for _, q := range result.Quests {
		if q.JustCompleted {
			s.Metrics.QuestCompleted()
			s.Log.Info("Quest completed", "user_id", in.UserID, "quest_id", q.QuestID)
		}
	}
	return result, nil
}

func (s *GamificationService) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	if userID == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}
	var bal *models.UserBalance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bal, err = ensureBalance(tx, userID)
		return err
	})
	return bal, err
}

// ListLedger returns the user's most recent point transactions.
func (s *GamificationService) ListLedger(ctx context.Context, userID string, limit int) ([]models.PointTransaction, error) {
	var out []models.PointTransaction
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger for %s: %w", userID, err)
	}
	return out, nil
}
