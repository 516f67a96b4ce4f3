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

// InventoryHandler exposes admin stock operations.
type InventoryHandler struct {
	db     *gorm.DB
	ledger *services.LedgerService
}

// NewInventoryHandler constructs InventoryHandler.
func NewInventoryHandler(db *gorm.DB, ledger *services.LedgerService) *InventoryHandler {
	return &InventoryHandler{db: db, ledger: ledger}
}

type adjustStockRequest struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
	Note      string `json:"note"`
}

// Adjust adds or removes stock with a journal entry.
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	actorID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req adjustStockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid store id")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
	}

	if err := h.ledger.Adjust(c.Context(), storeID, productID, req.Delta, req.Reason, &actorID, req.Note); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

type transferStockRequest struct {
	FromStoreID string              `json:"from_store_id"`
	ToStoreID   string              `json:"to_store_id"`
	Items       []services.LineItem `json:"items"`
	Note        string              `json:"note"`
}

// Transfer moves stock between stores atomically.
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	actorID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req transferStockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	fromID, err := uuid.Parse(req.FromStoreID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid from_store_id")
	}
	toID, err := uuid.Parse(req.ToStoreID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid to_store_id")
	}

	transferID, err := h.ledger.Transfer(c.Context(), fromID, toID, req.Items, &actorID, req.Note)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"transfer_id": transferID},
	})
}

// Journal lists stock movements, filterable by store, product and date range.
func (h *InventoryHandler) Journal(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	query := h.db.Model(&models.StockJournalEntry{})
	if raw := c.Query("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid store_id")
		}
		query = query.Where("store_id = ?", id)
	}
	if raw := c.Query("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		query = query.Where("product_id = ?", id)
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "from must be RFC3339")
		}
		query = query.Where("created_at >= ?", from)
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "to must be RFC3339")
		}
		query = query.Where("created_at < ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var entries []models.StockJournalEntry
	err := query.Order("created_at DESC").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&entries).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"pagination": fiber.Map{
			"page":        pagination.Page,
			"limit":       pagination.Limit,
			"total":       total,
			"total_pages": int(math.Ceil(float64(total) / float64(pagination.Limit))),
		},
	})
}

// Levels lists current stock levels for a store.
func (h *InventoryHandler) Levels(c *fiber.Ctx) error {
	storeID, err := uuid.Parse(c.Query("store_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "store_id is required")
	}

	var entries []models.StockEntry
	if err := h.db.Where("store_id = ?", storeID).Find(&entries).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": entries})
}
