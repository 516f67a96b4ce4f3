package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/models"
)

// LineItem is one (product, quantity) pair in a ledger group operation.
type LineItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// Ledger is the single writer of stock entries and the journal. Group
// operations (Reserve, Transfer) are all-or-nothing; Release is idempotent.
// Implementations must serialize concurrent writes per (store, product) so
// stock never goes negative.
type Ledger interface {
	// Reserve holds stock at a store for an order. Either every line is
	// decremented or none is. The order id is the reservation token.
	Reserve(ctx context.Context, storeID, orderID uuid.UUID, items []LineItem) error

	// Release reverses a reservation. Releasing an already-released or
	// unknown reservation is a no-op.
	Release(ctx context.Context, orderID uuid.UUID) error

	// Adjust applies a signed manual delta. The resulting quantity must not
	// go below zero.
	Adjust(ctx context.Context, storeID, productID uuid.UUID, delta int, reason string, actorID *uuid.UUID, note string) error

	// Transfer atomically moves stock between two stores and returns the
	// shared transfer id stamped on both journal sides.
	Transfer(ctx context.Context, fromStoreID, toStoreID uuid.UUID, items []LineItem, actorID *uuid.UUID, note string) (uuid.UUID, error)
}

func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return &ValidationError{Msg: "at least one item is required"}
	}
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if it.Qty <= 0 {
			return &ValidationError{Msg: "item quantity must be positive"}
		}
		if seen[it.ProductID] {
			return &ValidationError{Msg: "duplicate product in item list"}
		}
		seen[it.ProductID] = true
	}
	return nil
}

var adjustReasons = map[string]bool{
	models.StockReasonAdd:            true,
	models.StockReasonRemove:         true,
	models.StockReasonDiscountAdjust: true,
}
