package handlers

import (
	"errors"
	"strconv"

	"parceltoken/internal/models"
	"parceltoken/internal/services/payment"
	"parceltoken/internal/services/router"
	"parceltoken/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler exposes the payment orchestrator and the router's
// advisory endpoints.
type PaymentHandler struct {
	service *payment.Service
	router  *router.Service
}

func NewPaymentHandler(service *payment.Service, routerService *router.Service) *PaymentHandler {
	return &PaymentHandler{service: service, router: routerService}
}

// Process runs the full pipeline: risk, credential validation, rail
// selection and settlement, installment registration.
func (h *PaymentHandler) Process(c *fiber.Ctx) error {
	var input struct {
		Token         string           `json:"token"`
		TransactionID string           `json:"transaction_id"`
		UserID        uint             `json:"user_id"`
		MerchantID    uint             `json:"merchant_id"`
		Amount        int64            `json:"amount"`
		Installments  int              `json:"installments"`
		PreferredRail string           `json:"preferred_rail"`
		Metadata      models.JSON      `json:"metadata"`
		DeviceID      string           `json:"device_id"`
		Location      *models.GeoPoint `json:"location"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Token == "" || input.Amount <= 0 {
		return response.BadRequest(c, "token and a positive amount are required")
	}

	result, err := h.service.Process(c.Context(), payment.ProcessRequest{
		SignedCredential: input.Token,
		Intent: models.PaymentIntent{
			TransactionID: input.TransactionID,
			UserID:        input.UserID,
			MerchantID:    input.MerchantID,
			Amount:        input.Amount,
			Installments:  input.Installments,
			PreferredRail: input.PreferredRail,
			Metadata:      input.Metadata,
		},
		IP:       c.IP(),
		DeviceID: input.DeviceID,
		Location: input.Location,
	})
	if err != nil {
		var blocked *payment.RiskBlockedError
		if errors.As(err, &blocked) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": err.Error(),
				"data": fiber.Map{
					"score": blocked.Score,
					"flags": blocked.Flags,
				},
			})
		}
		var limit *payment.LimitError
		if errors.As(err, &limit) {
			return response.Error(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		var validation *payment.ValidationError
		if errors.As(err, &validation) {
			return response.Error(c, fiber.StatusUnauthorized, err.Error())
		}
		if errors.Is(err, router.ErrNoEligibleRail) {
			return response.BadRequest(c, err.Error())
		}
		return response.ServerError(c, err.Error())
	}

	if result.Outcome != nil && result.Outcome.Status != models.PaymentStatusSuccess {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Payment failed",
			"data":    result,
		})
	}
	return response.Success(c, "Payment processed", result)
}

// Recommend quotes every eligible rail for an amount, cheapest first.
func (h *PaymentHandler) Recommend(c *fiber.Ctx) error {
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amount <= 0 {
		return response.BadRequest(c, "a positive amount query parameter is required")
	}
	installments, _ := strconv.Atoi(c.Query("installments", "1"))

	quotes := h.router.Recommend(amount, installments)
	return response.Success(c, "Rail recommendations", quotes)
}

// RailCosts reports the observed average fee percentage per rail.
func (h *PaymentHandler) RailCosts(c *fiber.Ctx) error {
	return response.Success(c, "Average cost by rail", h.router.AverageCostByRail())
}
