package handlers

import (
	"errors"

	"learnhub-engine/apperrors"
	"learnhub-engine/logger"
	"learnhub-engine/middleware"
	"learnhub-engine/services"

	"github.com/gofiber/fiber/v2"
)

// Handler bundles the engine services the HTTP surface calls into.
type Handler struct {
	Hackathons  *services.HackathonService
	Events      *services.GamificationService
	Badges      *services.BadgeService
	Leaderboard *services.LeaderboardService
	Rewards     *services.RewardService
	Quests      *services.QuestService
	Log         *logger.Logger
}

// SetupRoutes mounts every user and admin route. User routes require the
// gateway's identity headers; admin routes additionally require the admin role.
func SetupRoutes(app fiber.Router, h *Handler) {
	secured := app.Group("/", middleware.UserContextMiddleware(h.Log))
	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	h.setupHackathonRoutes(secured, admin)
	h.setupProgressionRoutes(secured)
	h.setupRewardRoutes(secured, admin)
	h.setupQuestRoutes(secured, admin)
}

// respondError maps engine errors onto status codes. Internal errors are
// logged and never echoed to the client.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	body := fiber.Map{"error": err.Error(), "code": apperrors.Code(err)}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
	}
	if apperrors.Retryable(err) {
		body["retryable"] = true
	}
	if status >= fiber.StatusInternalServerError {
		h.Log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		body["error"] = "internal server error"
	}
	return c.Status(status).JSON(body)
}

// parseBody decodes a JSON body; an empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("body", "invalid JSON: "+err.Error())
	}
	return nil
}
