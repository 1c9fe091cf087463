package handlers

import (
	"strconv"

	"parceltoken/internal/services/risk"
	"parceltoken/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// RiskHandler exposes blacklist management for the risk engine.
type RiskHandler struct {
	service *risk.Service
}

func NewRiskHandler(service *risk.Service) *RiskHandler {
	return &RiskHandler{service: service}
}

type blacklistInput struct {
	UserID     uint   `json:"user_id"`
	MerchantID uint   `json:"merchant_id"`
	DeviceID   string `json:"device_id"`
}

// Blacklist adds the given identities to the blacklists. Any subset of
// user, merchant and device may be supplied.
func (h *RiskHandler) Blacklist(c *fiber.Ctx) error {
	var input blacklistInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.UserID == 0 && input.MerchantID == 0 && input.DeviceID == "" {
		return response.BadRequest(c, "user_id, merchant_id or device_id is required")
	}

	if input.UserID != 0 {
		h.service.BlacklistUser(input.UserID)
	}
	if input.MerchantID != 0 {
		h.service.BlacklistMerchant(input.MerchantID)
	}
	if input.DeviceID != "" {
		h.service.BlacklistDevice(input.DeviceID)
	}
	return response.Success(c, "Blacklist updated", nil)
}

// Unblacklist removes the given identities from the blacklists.
func (h *RiskHandler) Unblacklist(c *fiber.Ctx) error {
	var input blacklistInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	if input.UserID != 0 {
		h.service.UnblacklistUser(input.UserID)
	}
	if input.MerchantID != 0 {
		h.service.UnblacklistMerchant(input.MerchantID)
	}
	if input.DeviceID != "" {
		h.service.UnblacklistDevice(input.DeviceID)
	}
	return response.Success(c, "Blacklist updated", nil)
}

// History reports how many events the rolling window currently holds
// for a user.
func (h *RiskHandler) History(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}
	return response.Success(c, "Risk history", fiber.Map{
		"user_id": uint(userID),
		"events":  h.service.HistorySize(uint(userID)),
	})
}
