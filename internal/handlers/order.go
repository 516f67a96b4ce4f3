package handlers

import (
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/middleware"
	"github.com/example/freshmart/internal/models"
	"github.com/example/freshmart/internal/services"
	"github.com/example/freshmart/internal/utils"
)

// OrderHandler manages customer order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	checkout *services.CheckoutService
	orders   *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, checkout *services.CheckoutService, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, checkout: checkout, orders: orders}
}

type createOrderRequest struct {
	StoreID        string              `json:"store_id"`
	Items          []services.CartLine `json:"items"`
	AddressID      string              `json:"address_id"`
	Lat            *float64            `json:"lat"`
	Lon            *float64            `json:"lon"`
	ShippingMethod string              `json:"shipping_method"`
	ShippingFee    float64             `json:"shipping_fee"`
	PaymentMethod  string              `json:"payment_method"`
	DiscountIDs    []string            `json:"discount_ids"`
}

// Create places an order. The Idempotency-Key header makes retries safe.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid store id")
	}

	input := services.PlaceOrderInput{
		UserID:         userID,
		StoreID:        storeID,
		Items:          req.Items,
		Lat:            req.Lat,
		Lon:            req.Lon,
		ShippingMethod: req.ShippingMethod,
		ShippingFee:    req.ShippingFee,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: c.Get("Idempotency-Key"),
	}

	if req.AddressID != "" {
		addressID, err := uuid.Parse(req.AddressID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid address id")
		}
		input.AddressID = &addressID
	}

	for _, raw := range req.DiscountIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid discount id")
		}
		input.DiscountIDs = append(input.DiscountIDs, id)
	}

	order, err := h.checkout.PlaceOrder(c.Context(), input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// List returns the authenticated user's orders, newest first.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.Order{}).Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	err := query.Preload("Items").Preload("Payment").
		Order("created_at DESC").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&orders).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"page":        pagination.Page,
			"limit":       pagination.Limit,
			"total":       total,
			"total_pages": int(math.Ceil(float64(total) / float64(pagination.Limit))),
		},
	})
}

// Get returns one of the user's orders.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// Cancel cancels the user's own order. Once the store started processing,
// only an admin can cancel.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusProcessing {
		return fiber.NewError(fiber.StatusForbidden, "order is already being processed, contact support to cancel")
	}

	updated, err := h.orders.Apply(c.Context(), order.ID, services.EventCancel, &userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

// ConfirmReceipt marks a shipped order as received.
func (h *OrderHandler) ConfirmReceipt(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}

	updated, err := h.orders.Apply(c.Context(), order.ID, services.EventConfirmReceipt, &userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

type paymentProofRequest struct {
	ProofURL string `json:"proof_url"`
}

// UploadPaymentProof attaches a transfer proof and moves the order to review.
// A rejected proof can be re-uploaded while the order is back in
// PENDING_PAYMENT.
func (h *OrderHandler) UploadPaymentProof(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req paymentProofRequest
	if err := c.BodyParser(&req); err != nil || req.ProofURL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "proof_url is required")
	}

	order, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}

	if order.PaymentMethod != models.PaymentMethodManualTransfer {
		return fiber.NewError(fiber.StatusBadRequest, "order is not paid by manual transfer")
	}
	if order.Payment == nil {
		return fiber.NewError(fiber.StatusConflict, "order has no payment record")
	}

	result := h.db.Model(&models.Payment{}).
		Where("order_id = ? AND status IN ?", order.ID,
			[]string{models.PaymentStatusPending, models.PaymentStatusRejected}).
		Updates(map[string]interface{}{
			"proof_url": req.ProofURL,
			"status":    models.PaymentStatusPending,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusConflict, "payment is not awaiting proof")
	}

	updated, err := h.orders.Apply(c.Context(), order.ID, services.EventProofUploaded, &userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

func (h *OrderHandler) loadOwned(c *fiber.Ctx, userID uuid.UUID) (*models.Order, error) {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	err = h.db.Preload("Items").Preload("Payment").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	return &order, nil
}
