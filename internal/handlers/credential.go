package handlers

import (
	"errors"
	"strconv"

	"parceltoken/internal/models"
	"parceltoken/internal/repositories"
	"parceltoken/internal/services/credential"
	"parceltoken/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// CredentialHandler exposes the credential manager over HTTP.
type CredentialHandler struct {
	service *credential.Service
}

func NewCredentialHandler(service *credential.Service) *CredentialHandler {
	return &CredentialHandler{service: service}
}

// Issue creates a new credential for a user.
func (h *CredentialHandler) Issue(c *fiber.Ctx) error {
	var input struct {
		UserID            uint                     `json:"user_id"`
		Tier              string                   `json:"tier"`
		MerchantID        *uint                    `json:"merchant_id"`
		CustomLimits      *models.CredentialLimits `json:"custom_limits"`
		PendingActivation bool                     `json:"pending_activation"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.UserID == 0 || input.Tier == "" {
		return response.BadRequest(c, "user_id and tier are required")
	}

	cred, signed, err := h.service.Issue(c.Context(), credential.IssueRequest{
		UserID:            input.UserID,
		Tier:              input.Tier,
		MerchantID:        input.MerchantID,
		CustomLimits:      input.CustomLimits,
		PendingActivation: input.PendingActivation,
	})
	if err != nil {
		if errors.Is(err, credential.ErrUnknownTier) || errors.Is(err, credential.ErrInvalidLimits) {
			return response.BadRequest(c, err.Error())
		}
		return response.ServerError(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Credential issued",
		"data": fiber.Map{
			"credential": cred,
			"token":      signed,
		},
	})
}

// Validate checks a signed credential and reports the result code.
func (h *CredentialHandler) Validate(c *fiber.Ctx) error {
	var input struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&input); err != nil || input.Token == "" {
		return response.BadRequest(c, "token is required")
	}

	result, err := h.service.Validate(c.Context(), input.Token)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidSignature) {
			return response.Error(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Validation complete", result)
}

// Activate flips a pending credential to active.
func (h *CredentialHandler) Activate(c *fiber.Ctx) error {
	cred, err := h.service.Activate(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrCredentialNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.BadRequest(c, err.Error())
	}
	return response.Success(c, "Credential activated", cred)
}

// Renew supersedes a credential with a fresh one on the same lineage.
func (h *CredentialHandler) Renew(c *fiber.Ctx) error {
	var input struct {
		ExtendDays int                      `json:"extend_days"`
		NewLimits  *models.CredentialLimits `json:"new_limits"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	cred, signed, err := h.service.Renew(c.Context(), credential.RenewRequest{
		CredentialID: c.Params("id"),
		ExtendDays:   input.ExtendDays,
		NewLimits:    input.NewLimits,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrCredentialNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.BadRequest(c, err.Error())
	}

	return response.Success(c, "Credential renewed", fiber.Map{
		"credential": cred,
		"token":      signed,
	})
}

// Revoke marks a credential revoked. Idempotent.
func (h *CredentialHandler) Revoke(c *fiber.Ctx) error {
	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		input.Reason = models.RevokeReasonRequested
	}
	if input.Reason == "" {
		input.Reason = models.RevokeReasonRequested
	}

	if err := h.service.Revoke(c.Context(), c.Params("id"), input.Reason); err != nil {
		if errors.Is(err, repositories.ErrCredentialNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Credential revoked", nil)
}

// Availability reports remaining capacity and lifecycle countdowns.
func (h *CredentialHandler) Availability(c *fiber.Ctx) error {
	availability, err := h.service.Availability(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrCredentialNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Availability", availability)
}

// History returns recent usage records, newest first.
func (h *CredentialHandler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	records, err := h.service.UsageHistory(c.Context(), c.Params("id"), limit)
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Usage history", records)
}
