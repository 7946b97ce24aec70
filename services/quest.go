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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestService struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Metrics *metrics.Metrics
	now     func() time.Time
}

func NewQuestService(db *gorm.DB, log *logger.Logger, m *metrics.Metrics) *QuestService {
	return &QuestService{DB: db, Log: log.With("component", "quest"), Metrics: m, now: time.Now}
}

// QuestRule is the decoded rule_json. Target is optional; without it the
// quest only counts.
type QuestRule struct {
	Target    *float64 `json:"target,omitempty"`
	EventType string   `json:"eventType,omitempty"`
}

type QuestReward struct {
	Points int64 `json:"points,omitempty"`
	XP     int64 `json:"xp,omitempty"`
}

type QuestAdvance struct {
	QuestID       string     `json:"quest_id"`
	Progress      int64      `json:"progress"`
	Completed     bool       `json:"completed"`
	JustCompleted bool       `json:"just_completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func decodeQuest(q *models.Quest) (QuestRule, QuestReward, error) {
	var rule QuestRule
	var reward QuestReward
	if len(q.Rule) > 0 {
		// A target that is not a number is treated as absent.
		var loose map[string]interface{}
		if err := json.Unmarshal(q.Rule, &loose); err != nil {
			return rule, reward, fmt.Errorf("quest %s has malformed rule: %w", q.Key, err)
		}
		if t, ok := loose["target"].(float64); ok {
			rule.Target = &t
		}
		if et, ok := loose["eventType"].(string); ok {
			rule.EventType = et
		}
	}
	if len(q.Reward) > 0 {
		if err := json.Unmarshal(q.Reward, &reward); err != nil {
			return rule, reward, fmt.Errorf("quest %s has malformed reward: %w", q.Key, err)
		}
	}
	return rule, reward, nil
}

// AdvanceQuest adds delta to the user's progress and completes the quest the
// first time progress reaches the target. Completion is one-way: a later
// negative delta lowers progress but never clears completedAt. Only the call
// that actually stamps completedAt pays out the quest reward.
func (s *QuestService) AdvanceQuest(ctx context.Context, userID, questID string, delta int64) (*QuestAdvance, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation("user_id", "is required")
	}
	if strings.TrimSpace(questID) == "" {
		return nil, apperrors.Validation("quest_id", "is required")
	}

	now := s.now().UTC()
	var out *QuestAdvance
	var questKey string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quest models.Quest
		if err := tx.Where("id = ?", questID).First(&quest).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("quest", questID)
			}
			return fmt.Errorf("failed to load quest %s: %w", questID, err)
		}
		questKey = quest.Key
		var err error
		out, err = advanceQuestTx(tx, &quest, userID, delta, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.JustCompleted {
		s.Metrics.QuestCompleted()
		s.Log.Info("Quest completed", "user_id", userID, "quest", questKey, "progress", out.Progress)
	}
	return out, nil
}

// advanceQuestTx is the body of AdvanceQuest on an open transaction. The
// progress row is created with max(0, delta) or bumped atomically, then
// completedAt is stamped by a conditional update so only one caller wins it.
func advanceQuestTx(tx *gorm.DB, quest *models.Quest, userID string, delta int64, now time.Time) (*QuestAdvance, error) {
	rule, reward, err := decodeQuest(quest)
	if err != nil {
		return nil, err
	}

	initial := delta
	if initial < 0 {
		initial = 0
	}
	seed := models.QuestProgress{
		ID:       uuid.NewString(),
		UserID:   userID,
		QuestID:  quest.ID,
		Progress: initial,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quest_id"}},
		DoNothing: true,
	}).Create(&seed)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create quest progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := tx.Model(&models.QuestProgress{}).
			Where("user_id = ? AND quest_id = ?", userID, quest.ID).
			UpdateColumns(map[string]interface{}{
				"progress":   gorm.Expr("progress + ?", delta),
				"updated_at": now,
			}).Error; err != nil {
			return nil, fmt.Errorf("failed to advance quest progress: %w", err)
		}
	}

	var qp models.QuestProgress
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND quest_id = ?", userID, quest.ID).
		First(&qp).Error; err != nil {
		return nil, fmt.Errorf("failed to load quest progress: %w", err)
	}

	out := &QuestAdvance{QuestID: quest.ID}
	if rule.Target != nil && qp.CompletedAt == nil && float64(qp.Progress) >= *rule.Target {
		res := tx.Model(&models.QuestProgress{}).
			Where("id = ? AND completed_at IS NULL", qp.ID).
			UpdateColumn("completed_at", now)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to complete quest: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			qp.CompletedAt = &now
			out.JustCompleted = true
			if reward.Points != 0 || reward.XP != 0 {
				if _, err := creditBalance(tx, userID, reward.Points, reward.XP, "quest:"+quest.Key, now); err != nil {
					return nil, err
				}
			}
		}
	}

	out.Progress = qp.Progress
	out.Completed = qp.CompletedAt != nil
	out.CompletedAt = qp.CompletedAt
	return out, nil
}

// advanceTrackedQuests bumps, by one, every active quest whose rule tracks
// eventType.
func advanceTrackedQuests(tx *gorm.DB, userID, eventType string, now time.Time) ([]QuestAdvance, error) {
	var quests []models.Quest
	if err := tx.Where("active_from IS NULL OR active_from <= ?", now).
		Where("active_to IS NULL OR active_to > ?", now).
		Order("key").
		Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("failed to load active quests: %w", err)
	}

	var out []QuestAdvance
	for i := range quests {
		rule, _, err := decodeQuest(&quests[i])
		if err != nil {
			return nil, err
		}
		if rule.EventType != eventType {
			continue
		}
		adv, err := advanceQuestTx(tx, &quests[i], userID, 1, now)
		if err != nil {
			return nil, err
		}
		out = append(out, *adv)
	}
	return out, nil
}

// ListActiveQuests returns quests whose window contains at. Missing bounds are open.
func (s *QuestService) ListActiveQuests(ctx context.Context, at time.Time) ([]models.Quest, error) {
	at = at.UTC()
	var quests []models.Quest
	if err := s.DB.WithContext(ctx).
		Where("active_from IS NULL OR active_from <= ?", at).
		Where("active_to IS NULL OR active_to > ?", at).
		Order("key").
		Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("failed to list active quests: %w", err)
	}
	return quests, nil
}

func (s *QuestService) ListQuestProgress(ctx context.Context, userID string) ([]models.QuestProgress, error) {
	var out []models.QuestProgress
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list quest progress for %s: %w", userID, err)
	}
	return out, nil
}

type CreateQuestInput struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Target      *float64    `json:"target"`
	EventType   string      `json:"event_type"`
	Reward      QuestReward `json:"reward"`
	ActiveFrom  *time.Time  `json:"active_from"`
	ActiveTo    *time.Time  `json:"active_to"`
}

func (s *QuestService) CreateQuest(ctx context.Context, in CreateQuestInput) (*models.Quest, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Validation("title", "is required")
	}
	key := utils.NormalizeKey(in.Key)
	if key == "" {
		key = utils.NormalizeKey(title)
	}
	if in.Target != nil && *in.Target <= 0 {
		return nil, apperrors.Validation("target", "must be positive")
	}
	if in.ActiveFrom != nil && in.ActiveTo != nil && !in.ActiveFrom.Before(*in.ActiveTo) {
		return nil, apperrors.Validation("active_to", "must be after active_from")
	}

	rule, err := json.Marshal(QuestRule{Target: in.Target, EventType: in.EventType})
	if err != nil {
		return nil, fmt.Errorf("failed to encode quest rule: %w", err)
	}
	reward, err := json.Marshal(in.Reward)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quest reward: %w", err)
	}

	q := models.Quest{
		ID:          uuid.NewString(),
		Key:         key,
		Title:       title,
		Description: in.Description,
		Rule:        rule,
		Reward:      reward,
		ActiveFrom:  in.ActiveFrom,
		ActiveTo:    in.ActiveTo,
	}
	if err := s.DB.WithContext(ctx).Create(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("quest key %q already exists", key), err)
		}
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}
	return &q, nil
}
