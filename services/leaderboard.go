package services

import (
	"context"
	"fmt"
	"time"

	"learnhub-engine/apperrors"
	"learnhub-engine/models"
	"learnhub-engine/utils"

	"gorm.io/gorm"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodSeason  Period = "season"
)

// ScopeGlobal ranks every ledger entry. Any other scope ranks only entries
// whose reason equals the scope, e.g. "quiz_passed".
const ScopeGlobal = "global"

// DefaultLeaderboardLimit is also the most entries a board ever returns.
const DefaultLeaderboardLimit = 100

var periodWindows = map[Period]time.Duration{
	PeriodDaily:   24 * time.Hour,
	PeriodWeekly:  7 * 24 * time.Hour,
	PeriodMonthly: 30 * 24 * time.Hour,
	PeriodSeason:  60 * 24 * time.Hour,
}

type RankedEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

type LeaderboardService struct {
	DB    *gorm.DB
	Limit int
	now   func() time.Time
}

func NewLeaderboardService(db *gorm.DB, limit int) *LeaderboardService {
	if limit <= 0 || limit > DefaultLeaderboardLimit {
		limit = DefaultLeaderboardLimit
	}
	return &LeaderboardService{DB: db, Limit: limit, now: time.Now}
}

// WindowStart returns the earliest ledger timestamp counted for period.
func WindowStart(period Period, now time.Time) (time.Time, error) {
	d, ok := periodWindows[period]
	if !ok {
		return time.Time{}, apperrors.Validation("period", fmt.Sprintf("unknown period %q", period))
	}
	return now.Add(-d), nil
}

// GetLeaderboard sums ledger deltas per user inside the period window. Ties
// on score are ordered by user id ascending, and rank is simply the 1-based
// position in that order.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, scope string, period Period) ([]RankedEntry, error) {
	start, err := WindowStart(period, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if scope != "" && scope != ScopeGlobal && !utils.ValidKey(scope) {
		return nil, apperrors.Validation("scope", fmt.Sprintf("invalid scope %q", scope))
	}

	q := s.DB.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Select("user_id, SUM(delta) AS score").
		Where("created_at >= ?", start)
	if scope != "" && scope != ScopeGlobal {
		q = q.Where("reason = ?", scope)
	}

	var rows []struct {
		UserID string
		Score  int64
	}
	if err := q.Group("user_id").
		Order("score DESC").
		Order("user_id ASC").
		Limit(s.Limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}

	out := make([]RankedEntry, len(rows))
	for i, r := range rows {
		out[i] = RankedEntry{Rank: i + 1, UserID: r.UserID, Score: r.Score}
	}
	return out, nil
}
