package handlers

import (
	"learnhub-engine/middleware"
	"learnhub-engine/models"
	"learnhub-engine/services"

	"github.com/gofiber/fiber/v2"
)

type redeemRequest struct {
	Shipping map[string]interface{} `json:"shipping"`
}

type redemptionStatusRequest struct {
	Status models.RedemptionStatus `json:"status"`
}

func (h *Handler) setupRewardRoutes(secured, admin fiber.Router) {
	secured.Get("/rewards", func(c *fiber.Ctx) error {
		rewards, err := h.Rewards.ListRewards(c.UserContext())
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"rewards": rewards})
	})

	secured.Post("/rewards/:id/redeem", func(c *fiber.Ctx) error {
		var req redeemRequest
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
		redemption, err := h.Rewards.RedeemReward(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Shipping)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(redemption)
	})

	secured.Get("/me/redemptions", func(c *fiber.Ctx) error {
		out, err := h.Rewards.ListRedemptions(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"redemptions": out})
	})

	secured.Get("/me/inventory", func(c *fiber.Ctx) error {
		out, err := h.Rewards.ListInventory(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(fiber.Map{"items": out})
	})

	admin.Post("/rewards", func(c *fiber.Ctx) error {
		var in services.CreateRewardInput
		if err := parseBody(c, &in); err != nil {
			return h.respondError(c, err)
		}
		reward, err := h.Rewards.CreateReward(c.UserContext(), in)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(reward)
	})

	admin.Patch("/redemptions/:id/status", func(c *fiber.Ctx) error {
		var req redemptionStatusRequest
		if err := parseBody(c, &req); err != nil {
			return h.respondError(c, err)
		}
		redemption, err := h.Rewards.UpdateRedemptionStatus(c.UserContext(), c.Params("id"), req.Status)
		if err != nil {
			return h.respondError(c, err)
		}
		return c.JSON(redemption)
	})
}
