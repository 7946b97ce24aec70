package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"learnhub-engine/apperrors"
	"learnhub-engine/logger"
	"learnhub-engine/models"
	"learnhub-engine/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestAppliesRulesAndBadges(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedBadge(t, db, "course-finisher", 25, "")
	svc := newTestGamification(t, db)

	res, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventCourseCompleted, DedupKey: "course-42"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.NotEmpty(t, res.EventID)
	assert.Equal(t, int64(100), res.Award.PointsDelta)
	assert.Equal(t, []string{"course-finisher"}, res.NewBadges)
	assert.Equal(t, int64(125), res.Balance.Points)
	assert.Equal(t, int64(200), res.Balance.LifetimeXP)

	var ledger []models.PointTransaction
	require.NoError(t, db.Where("user_id = ?", "u1").Order("reason").Find(&ledger).Error)
	require.Len(t, ledger, 2)
	assert.Equal(t, "badge:course-finisher", ledger[0].Reason)
	assert.Equal(t, EventCourseCompleted, ledger[1].Reason)
}

func TestIngestDuplicateWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	in := EventInput{UserID: "u1", Type: EventLessonCompleted, DedupKey: "lesson-7"}
	_, err := svc.Ingest(ctx, in)
	require.NoError(t, err)

	res, err := svc.Ingest(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.True(t, res.Award.IsZero())
	assert.Empty(t, res.EventID)

	assert.Equal(t, int64(1), countRows(t, db, &models.GamificationEvent{}, "user_id = ?", "u1"))
	assert.Equal(t, int64(10), balanceOf(t, db, "u1").Points)

	// Keys are per user.
	res, err = svc.Ingest(ctx, EventInput{UserID: "u2", Type: EventLessonCompleted, DedupKey: "lesson-7"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestIngestConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventDailyLogin, DedupKey: "login-2026-03-10"})
			if !assert.NoError(t, err) {
				return
			}
			if !res.Duplicate {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(1), countRows(t, db, &models.GamificationEvent{}, "user_id = ?", "u1"))
	assert.Equal(t, int64(2), balanceOf(t, db, "u1").Points)
}

func TestIngestVelocityLimit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := testNow
	svc := NewGamificationService(db, store.NewMemoryStoreWithClock(func() time.Time { return clock }),
		AntiAbuseConfig{VelocityMaxEvents: 3, VelocityWindow: 10 * time.Minute, DedupTTL: time.Hour}, logger.Nop(), nil)
	svc.now = fixedClock(testNow)

	for i := 0; i < 3; i++ {
		_, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventPostCreated})
		require.NoError(t, err)
	}

	_, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventPostCreated, DedupKey: "post-99"})
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Equal(t, int64(3), countRows(t, db, &models.GamificationEvent{}, "user_id = ? AND type = ?", "u1", EventPostCreated))

	// The limit is per type.
	_, err = svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventDailyLogin})
	require.NoError(t, err)

	// A rejected event did not burn its dedup key, so it can be retried once
	// the window rolls over.
	clock = clock.Add(10 * time.Minute)
	res, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventPostCreated, DedupKey: "post-99"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	svc := newTestGamification(t, newTestDB(t))

	_, err := svc.Ingest(context.Background(), EventInput{Type: EventDailyLogin})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Ingest(context.Background(), EventInput{UserID: "u1"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIngestUnknownTypeIsRecordedWithoutAward(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	res, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: "profile_viewed"})
	require.NoError(t, err)
	assert.True(t, res.Award.IsZero())
	assert.Equal(t, int64(1), countRows(t, db, &models.GamificationEvent{}, "type = ?", "profile_viewed"))
	assert.Equal(t, int64(0), countRows(t, db, &models.PointTransaction{}, "user_id = ?", "u1"))
}

func TestIngestLevelUp(t *testing.T) {
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	res, err := svc.Ingest(context.Background(), EventInput{UserID: "u1", Type: EventHackathonWon})
	require.NoError(t, err)
	assert.True(t, res.Award.LevelUp)
	assert.Equal(t, 4, res.Balance.Level)
	require.NotNil(t, res.Balance.LastLevelUpAt)
}

func TestIngestCriteriaBadges(t *testing.T) {
	db := newTestDB(t)
	seedBadge(t, db, "centurion", 0, `{"min_points": 100}`)
	seedBadge(t, db, "marathon", 0, `{"min_streak": 30}`)
	svc := newTestGamification(t, db)

	res, err := svc.Ingest(context.Background(), EventInput{UserID: "u1", Type: EventCourseCompleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"centurion"}, res.NewBadges, "course-finisher is not seeded and is skipped")

	res, err = svc.Ingest(context.Background(), EventInput{UserID: "u1", Type: EventLessonCompleted})
	require.NoError(t, err)
	assert.Empty(t, res.NewBadges)
}

func TestIngestTracksStreaks(t *testing.T) {
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	for _, daysAgo := range []int{2, 1, 0} {
		at := testNow.AddDate(0, 0, -daysAgo).Add(-time.Minute)
		_, err := svc.Ingest(context.Background(), EventInput{UserID: "u1", Type: EventDailyLogin, OccurredAt: &at})
		require.NoError(t, err)
	}

	bal := balanceOf(t, db, "u1")
	assert.Equal(t, 3, bal.CurrentStreak)
	assert.Equal(t, 3, bal.LongestStreak)
}

func TestIngestAdvancesTrackedQuests(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	quests := newTestQuests(t, db)
	target := 2.0
	_, err := quests.CreateQuest(ctx, CreateQuestInput{
		Key: "two-lessons", Title: "Two lessons", Target: &target,
		EventType: EventLessonCompleted, Reward: QuestReward{Points: 30},
	})
	require.NoError(t, err)
	svc := newTestGamification(t, db)

	res, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventLessonCompleted})
	require.NoError(t, err)
	require.Len(t, res.Quests, 1)
	assert.False(t, res.Quests[0].Completed)

	res, err = svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventLessonCompleted})
	require.NoError(t, err)
	require.Len(t, res.Quests, 1)
	assert.True(t, res.Quests[0].JustCompleted)
	assert.Equal(t, int64(50), res.Balance.Points)

	res, err = svc.Ingest(ctx, EventInput{UserID: "u1", Type: EventDailyLogin})
	require.NoError(t, err)
	assert.Empty(t, res.Quests)
}

func TestRecordEventDefaults(t *testing.T) {
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	id, err := svc.RecordEvent(context.Background(), "u1", EventQuizPassed, nil, nil, nil)
	require.NoError(t, err)

	var ev models.GamificationEvent
	require.NoError(t, db.Where("id = ?", id).First(&ev).Error)
	assert.Equal(t, "{}", string(ev.Payload))
	assert.Nil(t, ev.DedupKey)
	assert.True(t, ev.OccurredAt.Equal(testNow))
}

func TestEndToEndEarnAndRedeem(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	stock := 5
	reward := seedReward(t, db, "mentor-hour", 100, &stock, models.RewardTypeVirtual)

	svc := newTestGamification(t, db)
	svc.Rules["bootcamp_graduated"] = fixed(150, 0)
	rewards := newTestRewards(t, db)

	_, err := rewards.RedeemReward(ctx, "u1", reward.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientPoints)

	res, err := svc.Ingest(ctx, EventInput{UserID: "u1", Type: "bootcamp_graduated"})
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.Balance.Points)

	red, err := rewards.RedeemReward(ctx, "u1", reward.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionFulfilled, red.Status)
	assert.Equal(t, int64(100), red.Cost)

	assert.Equal(t, int64(50), balanceOf(t, db, "u1").Points)
	assert.Equal(t, int64(1), countRows(t, db, &models.PointTransaction{}, "user_id = ? AND delta = ? AND reason = ?", "u1", -100, "redeem:mentor-hour"))
	assert.Equal(t, int64(1), countRows(t, db, &models.UserInventory{}, "user_id = ? AND sku = ?", "u1", "mentor-hour"))

	var after models.Reward
	require.NoError(t, db.Where("id = ?", reward.ID).First(&after).Error)
	assert.Equal(t, 4, *after.Stock)
}

func TestIngestForgedQuizScoreEarnsBaseAward(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := newTestGamification(t, db)

	res, err := svc.Ingest(ctx, EventInput{
		UserID:  "u1",
		Type:    EventQuizPassed,
		Payload: Payload{"quizId": "q1", "score": 1e19, "maxScore": 100},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Award.PointsDelta)
	assert.Equal(t, int64(5), balanceOf(t, db, "u1").Points)
	assert.Equal(t, int64(0), countRows(t, db, &models.PointTransaction{}, "user_id = ? AND delta < 0", "u1"))
}
