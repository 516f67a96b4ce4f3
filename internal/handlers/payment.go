package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/models"
	"github.com/example/freshmart/internal/services"
)

// PaymentHandler receives payment gateway callbacks.
type PaymentHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(db *gorm.DB, orders *services.OrderService) *PaymentHandler {
	return &PaymentHandler{db: db, orders: orders}
}

type gatewayWebhookRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Webhook handles the gateway's payment result. "paid" moves the order to
// PROCESSING, "failed" marks the payment failed and leaves the order awaiting
// another attempt.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req gatewayWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.Preload("Payment").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if order.PaymentMethod != models.PaymentMethodGateway {
		return fiber.NewError(fiber.StatusBadRequest, "order is not paid through the gateway")
	}

	// Gateway orders get their payment row on first callback.
	if order.Payment == nil {
		payment := models.Payment{
			OrderID: order.ID,
			Status:  models.PaymentStatusPending,
			Amount:  order.GrandTotal,
		}
		if err := h.db.Create(&payment).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}

	switch req.Status {
	case "paid":
		// A previously failed attempt does not block a successful retry.
		if err := h.db.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusFailed).
			Update("status", models.PaymentStatusPending).Error; err != nil {
			return err
		}
		updated, err := h.orders.Apply(c.Context(), orderID, services.EventGatewayPaid, nil)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": updated})
	case "failed":
		if err := h.orders.OnPaymentFailed(c.Context(), orderID); err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	default:
		return fiber.NewError(fiber.StatusBadRequest, "status must be paid or failed")
	}
}
