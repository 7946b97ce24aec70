// handlers/progression_routes.go
package handlers

import (
	"time"

	"learnhub-engine/middleware"
	"learnhub-engine/services"
	"learnhub-engine/utils"

	"github.com/gofiber/fiber/v2"
)

type eventRequest struct {
	Type       string           `json:"type"`
	Payload    services.Payload `json:"payload"`
	DedupKey   string           `json:"dedup_key"`
	OccurredAt *time.Time       `json:"occurred_at"`
}

type displayBadgesRequest struct {
	BadgeKeys []string `json:"badge_keys"`
}

func (h *Handler) setupProgressionRoutes(secured fiber.Router) {
	secured.Post("/events", func(c *fiber.Ctx) error {
		var req eventRequest
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
		res, err := h.Events.Ingest(c.UserContext(), services.EventInput{
			UserID:     middleware.UserID(c),
			Type:       req.Type,
			Payload:    req.Payload,
			DedupKey:   req.DedupKey,
			OccurredAt: req.OccurredAt,
		})
		if err != nil {
			return h.respondError(c, err)
		}
		// A duplicate is a success with no effect.
		if res.Duplicate {
			return c.JSON(res)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	secured.Get("/me/balance", func(c *fiber.Ctx) error {
		bal, err := h.Events.GetBalance(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(bal)
	})

	secured.Get("/me/ledger", func(c *fiber.Ctx) error {
		limit := utils.ParseLimit(c.Query("limit"), 50, 200)
		entries, err := h.Events.ListLedger(c.UserContext(), middleware.UserID(c), limit)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		period := services.Period(c.Query("period", string(services.PeriodWeekly)))
		scope := c.Query("scope", services.ScopeGlobal)
		entries, err := h.Leaderboard.GetLeaderboard(c.UserContext(), scope, period)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"scope": scope, "period": period, "entries": entries})
	})

	secured.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := h.Badges.ListBadges(c.UserContext())
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"badges": badges})
	})

	secured.Get("/me/badges", func(c *fiber.Ctx) error {
		badges, err := h.Badges.ListUserBadges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"badges": badges})
	})

	secured.Put("/me/badges/display", func(c *fiber.Ctx) error {
		var req displayBadgesRequest
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
		if err := h.Badges.SetDisplayedBadges(c.UserContext(), middleware.UserID(c), req.BadgeKeys); err != nil {
			return h.respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
