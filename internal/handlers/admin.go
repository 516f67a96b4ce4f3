package handlers

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/middleware"
	"github.com/example/freshmart/internal/models"
	"github.com/example/freshmart/internal/services"
	"github.com/example/freshmart/internal/utils"
)

// AdminHandler manages admin-only order operations.
type AdminHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, orders *services.OrderService) *AdminHandler {
	return &AdminHandler{db: db, orders: orders}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	// Revenue counts orders whose payment settled.
	var totalRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status IN ?", []string{
			models.OrderStatusProcessing,
			models.OrderStatusShipped,
			models.OrderStatusConfirmed,
		}).
		Select("COALESCE(SUM(grand_total), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	var pendingReview int64
	if err := h.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPaymentReview).
		Count(&pendingReview).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":      totalUsers,
			"total_orders":     totalOrders,
			"orders_by_status": ordersByStatus,
			"total_revenue":    totalRevenue,
			"pending_review":   pendingReview,
		},
	})
}

// ListAllOrders lists every order with status, store and date filters.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("orders.status = ?", status)
	}
	if raw := c.Query("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid store_id")
		}
		query = query.Where("orders.store_id = ?", id)
	}
	if q := c.Query("q"); q != "" {
		pattern := "%" + q + "%"
		query = query.Joins("JOIN users ON users.id = orders.user_id").
			Where("users.name ILIKE ? OR users.email ILIKE ? OR orders.id::text ILIKE ?",
				pattern, pattern, pattern)
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "from must be RFC3339")
		}
		query = query.Where("orders.created_at >= ?", from)
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "to must be RFC3339")
		}
		query = query.Where("orders.created_at < ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	err := query.Preload("Items").Preload("Payment").
		Order("orders.created_at DESC").
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

// OrderCounts returns order totals per status for the admin order tabs.
func (h *AdminHandler) OrderCounts(c *fiber.Ctx) error {
	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var counts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return err
	}

	data := make(map[string]int64)
	for _, sc := range counts {
		data[sc.Status] = sc.Count
	}

	return c.JSON(fiber.Map{"success": true, "data": data})
}

// ConfirmPayment approves a manual transfer proof under review.
func (h *AdminHandler) ConfirmPayment(c *fiber.Ctx) error {
	return h.apply(c, services.EventPaymentConfirmed)
}

// RejectPayment sends the order back to PENDING_PAYMENT for another proof.
// The payment deadline keeps counting from order creation.
func (h *AdminHandler) RejectPayment(c *fiber.Ctx) error {
	return h.apply(c, services.EventPaymentRejected)
}

// Ship marks a processing order as shipped.
func (h *AdminHandler) Ship(c *fiber.Ctx) error {
	return h.apply(c, services.EventShip)
}

// Cancel cancels an order on the customer's behalf, including orders already
// in processing.
func (h *AdminHandler) Cancel(c *fiber.Ctx) error {
	return h.apply(c, services.EventCancel)
}

func (h *AdminHandler) apply(c *fiber.Ctx, event services.Event) error {
	actorID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	order, err := h.orders.Apply(c.Context(), orderID, event, &actorID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
