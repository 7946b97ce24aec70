package services

import (
	"testing"
	"time"

	"learnhub-engine/logger"
	"learnhub-engine/models"
	"learnhub-engine/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newTestDB opens a private in-memory database. One connection means
// transactions run one after another, like row locks would force in postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func newTestGamification(t *testing.T, db *gorm.DB) *GamificationService {
	t.Helper()
	svc := NewGamificationService(db, store.NewMemoryStore(), DefaultAntiAbuseConfig, logger.Nop(), nil)
	svc.now = fixedClock(testNow)
	return svc
}

func seedBadge(t *testing.T, db *gorm.DB, key string, points int64, criteria string) models.Badge {
	t.Helper()
	b := models.Badge{ID: uuid.NewString(), Key: key, Name: key, Points: points}
	if criteria != "" {
		b.Criteria = []byte(criteria)
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func seedReward(t *testing.T, db *gorm.DB, sku string, cost int64, stock *int, typ models.RewardType) models.Reward {
	t.Helper()
	r := models.Reward{ID: uuid.NewString(), SKU: sku, Name: sku, Cost: cost, Stock: stock, Type: typ, Active: true}
	require.NoError(t, db.Create(&r).Error)
	return r
}

func balanceOf(t *testing.T, db *gorm.DB, userID string) models.UserBalance {
	t.Helper()
	var bal models.UserBalance
	require.NoError(t, db.Where("user_id = ?", userID).First(&bal).Error)
	return bal
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func tp(t time.Time) *time.Time { return &t }
