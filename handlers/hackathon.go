package handlers

import (
	"learnhub-engine/services"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) setupHackathonRoutes(secured, admin fiber.Router) {
	secured.Get("/hackathons/:id/phase", func(c *fiber.Ctx) error {
		status, err := h.Hackathons.ComputeHackathonPhase(c.UserContext(), c.Params("id"))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(status)
	})

	admin.Post("/hackathons", func(c *fiber.Ctx) error {
		var in services.CreateHackathonInput
		if err := parseBody(c, &in); err != nil {
			return h.respondError(c, err)
		}
		hackathon, err := h.Hackathons.CreateHackathon(c.UserContext(), in)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(hackathon)
	})

	admin.Post("/hackathons/reconcile", func(c *fiber.Ctx) error {
		return c.JSON(h.Hackathons.Reconcile(c.UserContext()))
	})

	admin.Post("/hackathons/:id/archive", func(c *fiber.Ctx) error {
		status, err := h.Hackathons.ArchiveHackathon(c.UserContext(), c.Params("id"))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(status)
	})
}
