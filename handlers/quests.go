package handlers

import (
	"time"

	"learnhub-engine/middleware"
	"learnhub-engine/services"

	"github.com/gofiber/fiber/v2"
)

type advanceRequest struct {
	Delta *int64 `json:"delta"`
}

func (h *Handler) setupQuestRoutes(secured, admin fiber.Router) {
	secured.Get("/quests", func(c *fiber.Ctx) error {
		quests, err := h.Quests.ListActiveQuests(c.UserContext(), time.Now())
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"quests": quests})
	})

	secured.Get("/me/quests", func(c *fiber.Ctx) error {
		progress, err := h.Quests.ListQuestProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"progress": progress})
	})

	secured.Post("/quests/:id/advance", func(c *fiber.Ctx) error {
		var req advanceRequest
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
		delta := int64(1)
		if req.Delta != nil {
			delta = *req.Delta
		}
		adv, err := h.Quests.AdvanceQuest(c.UserContext(), middleware.UserID(c), c.Params("id"), delta)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(adv)
	})

	admin.Post("/quests", func(c *fiber.Ctx) error {
		var in services.CreateQuestInput
		if err := parseBody(c, &in); err != nil {
			return h.respondError(c, err)
		}
		quest, err := h.Quests.CreateQuest(c.UserContext(), in)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(quest)
	})
}
