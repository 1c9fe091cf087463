package handlers

import (
	"errors"
	"strconv"
	"time"

	"parceltoken/internal/repositories"
	"parceltoken/internal/services/collections"
	"parceltoken/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// CollectionsHandler exposes the billing engine over HTTP.
type CollectionsHandler struct {
	service *collections.Service
	repo    repositories.InstallmentRepository
}

func NewCollectionsHandler(service *collections.Service, repo repositories.InstallmentRepository) *CollectionsHandler {
	return &CollectionsHandler{service: service, repo: repo}
}

// ListByUser returns a user's installments with the amount currently
// due on each open one.
func (h *CollectionsHandler) ListByUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	installments, err := h.repo.ListByUser(c.Context(), uint(userID))
	if err != nil {
		return response.ServerError(c, err.Error())
	}

	now := time.Now()
	type entry struct {
		Installment interface{} `json:"installment"`
		TotalDue    int64       `json:"total_due"`
	}
	out := make([]entry, len(installments))
	for i := range installments {
		out[i] = entry{
			Installment: installments[i],
			TotalDue:    h.service.TotalDue(&installments[i], now),
		}
	}
	return response.Success(c, "Installments", out)
}

// GetTotalDue quotes the payable amount on a single installment.
func (h *CollectionsHandler) GetTotalDue(c *fiber.Ctx) error {
	installment, err := h.repo.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrInstallmentNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.ServerError(c, err.Error())
	}

	now := time.Now()
	interest, fine := h.service.Accrue(installment, now)
	return response.Success(c, "Total due", fiber.Map{
		"installment_id": installment.ID,
		"principal":      installment.Amount,
		"interest":       interest,
		"fine":           fine,
		"total_due":      h.service.TotalDue(installment, now),
		"days_overdue":   installment.DaysOverdue(now),
	})
}

// Pay applies a payment against an installment. All or nothing: a
// shortfall is reported, never partially applied.
func (h *CollectionsHandler) Pay(c *fiber.Ctx) error {
	var input struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil || input.Amount <= 0 {
		return response.BadRequest(c, "a positive amount is required")
	}

	result, err := h.service.ApplyPayment(c.Context(), c.Params("id"), input.Amount, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInstallmentNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, collections.ErrAlreadyPaid), errors.Is(err, collections.ErrNotPayable):
			return response.Error(c, fiber.StatusConflict, err.Error())
		default:
			return response.ServerError(c, err.Error())
		}
	}
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Insufficient payment",
			"data":    result,
		})
	}
	return response.Success(c, "Payment applied", result)
}

// Renegotiate replaces an unpaid installment with a new schedule.
func (h *CollectionsHandler) Renegotiate(c *fiber.Ctx) error {
	var input struct {
		NewDueDate          time.Time `json:"new_due_date"`
		NewInstallmentCount int       `json:"new_installment_count"`
		Reason              string    `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	result, err := h.service.Renegotiate(c.Context(), collections.RenegotiateRequest{
		InstallmentID:       c.Params("id"),
		NewDueDate:          input.NewDueDate,
		NewInstallmentCount: input.NewInstallmentCount,
		Reason:              input.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInstallmentNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, collections.ErrAlreadyPaid), errors.Is(err, collections.ErrNotPayable):
			return response.Error(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, collections.ErrPastDueDate), errors.Is(err, collections.ErrInvalidSplit):
			return response.BadRequest(c, err.Error())
		default:
			return response.ServerError(c, err.Error())
		}
	}
	return response.Success(c, "Installment renegotiated", result)
}

// Metrics aggregates the whole portfolio.
func (h *CollectionsHandler) Metrics(c *fiber.Ctx) error {
	installments, err := h.repo.ListAll(c.Context())
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Billing metrics", h.service.Metrics(installments, time.Now()))
}

// Delinquency reports aging buckets and top debtors.
func (h *CollectionsHandler) Delinquency(c *fiber.Ctx) error {
	installments, err := h.repo.ListAll(c.Context())
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Delinquency report", h.service.DelinquencyReport(installments, time.Now()))
}

// SendReminders triggers a reminder sweep over the open ledger.
func (h *CollectionsHandler) SendReminders(c *fiber.Ctx) error {
	sent, err := h.service.SendReminders(c.Context(), time.Now())
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, "Reminders dispatched", fiber.Map{"sent": sent})
}
