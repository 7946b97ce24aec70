package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"learnhub-engine/logger"
	"learnhub-engine/models"
	"learnhub-engine/services"
	"learnhub-engine/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
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
	require.NoError(t, services.AutoMigrate(db))

	log := logger.Nop()
	h := &Handler{
		Hackathons:  services.NewHackathonService(db, log, nil),
		Events:      services.NewGamificationService(db, store.NewMemoryStore(), services.DefaultAntiAbuseConfig, log, nil),
		Badges:      services.NewBadgeService(db, log),
		Leaderboard: services.NewLeaderboardService(db, 0),
		Rewards:     services.NewRewardService(db, log, nil),
		Quests:      services.NewQuestService(db, log, nil),
		Log:         log,
	}

	app := fiber.New()
	SetupSystemRoutes(app, db, prometheus.NewRegistry())
	SetupRoutes(app, h)
	return app, db
}

type call struct {
	method, path, body string
	user, roles        string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if c.roles != "" {
		req.Header.Set("X-User-Roles", c.roles)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestRequiresUserContext(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, call{method: http.MethodGet, path: "/me/balance"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, status)
}

func TestEventIngestion(t *testing.T) {
	app, _ := newTestApp(t)
	ev := `{"type":"lesson_completed","dedup_key":"lesson-1","payload":{"lessonId":"l1"}}`

	status, body := do(t, app, call{method: http.MethodPost, path: "/events", body: ev, user: "u1"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, false, body["duplicate"])
	balance := body["balance"].(map[string]interface{})
	assert.Equal(t, float64(10), balance["points"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/events", body: ev, user: "u1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/events", body: `{"payload":{}}`, user: "u1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "type", body["field"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/events", body: `{not json`, user: "u1"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRedeemErrorMapping(t *testing.T) {
	app, db := newTestApp(t)
	reward := models.Reward{ID: uuid.NewString(), SKU: "mug", Name: "Mug", Cost: 100, Type: models.RewardTypePhysical, Active: true}
	require.NoError(t, db.Create(&reward).Error)

	status, body := do(t, app, call{method: http.MethodPost, path: "/rewards/" + reward.ID + "/redeem", user: "u1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_POINTS", body["code"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/rewards/" + uuid.NewString() + "/redeem", user: "u1"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	app, _ := newTestApp(t)
	reward := `{"name":"Sticker","cost":20,"type":"PHYSICAL","stock":10}`

	status, body := do(t, app, call{method: http.MethodPost, path: "/admin/rewards", body: reward, user: "u1"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/admin/rewards", body: reward, user: "ops", roles: "user, admin"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "sticker", body["sku"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/rewards", user: "u1"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["rewards"], 1)
}

func TestHackathonRoutes(t *testing.T) {
	app, _ := newTestApp(t)
	opens := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	closes := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	payload := `{"title":"Winter Jam","application_opens_at":"` + opens + `","application_closes_at":"` + closes + `"}`

	status, body := do(t, app, call{method: http.MethodPost, path: "/admin/hackathons", body: payload, user: "ops", roles: "admin"})
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)

	status, body = do(t, app, call{method: http.MethodGet, path: "/hackathons/" + id + "/phase", user: "u1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "applications", body["derived_phase"])
	assert.Equal(t, true, body["is_application_window_open"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/hackathons/" + uuid.NewString() + "/phase", user: "u1"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, app, call{method: http.MethodPost, path: "/admin/hackathons/reconcile", user: "ops", roles: "admin"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestLeaderboardRoute(t *testing.T) {
	app, _ := newTestApp(t)

	_, _ = do(t, app, call{method: http.MethodPost, path: "/events", body: `{"type":"daily_login"}`, user: "u1"})

	status, body := do(t, app, call{method: http.MethodGet, path: "/leaderboard?period=daily", user: "u2"})
	require.Equal(t, http.StatusOK, status)
	entries := body["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].(map[string]interface{})["user_id"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/leaderboard?period=yearly", user: "u2"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "period", body["field"])
}

func TestQuestRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, call{
		method: http.MethodPost, path: "/admin/quests", user: "ops", roles: "admin",
		body: `{"key":"three-posts","title":"Three posts","target":3,"reward":{"points":25}}`,
	})
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)

	status, body = do(t, app, call{method: http.MethodPost, path: "/quests/" + id + "/advance", body: `{"delta":3}`, user: "u1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["just_completed"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/quests/" + id + "/advance", user: "u1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), body["progress"])
	assert.Equal(t, false, body["just_completed"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/me/balance", user: "u1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(25), body["points"])
}

func TestDisplayBadgesRoute(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, call{
		method: http.MethodPut, path: "/me/badges/display", user: "u1",
		body: `{"badge_keys":["a","b","c","d"]}`,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	status, _ = do(t, app, call{method: http.MethodPut, path: "/me/badges/display", user: "u1", body: `{"badge_keys":["ghost"]}`})
	assert.Equal(t, http.StatusForbidden, status)
}
