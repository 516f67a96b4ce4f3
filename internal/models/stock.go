package models

import "github.com/google/uuid"

// Journal reasons. Every quantity change carries exactly one.
const (
	StockReasonAdd            = "ADD"
	StockReasonRemove         = "REMOVE"
	StockReasonTransferIn     = "TRANSFER_IN"
	StockReasonTransferOut    = "TRANSFER_OUT"
	StockReasonOrderReserve   = "ORDER_RESERVE"
	StockReasonOrderRelease   = "ORDER_RELEASE"
	StockReasonDiscountAdjust = "DISCOUNT_ADJUST"
)

// Reservation states.
const (
	ReservationStatusReserved = "RESERVED"
	ReservationStatusReleased = "RELEASED"
)

// StockEntry is the materialized quantity of one product at one store.
// Only the stock ledger writes these rows.
type StockEntry struct {
	BaseModel
	StoreID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_stock_store_product" json:"store_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_stock_store_product" json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// StockJournalEntry is an append-only audit record of one quantity change.
// Invariant: per (store, product), the sum of deltas equals the StockEntry
// quantity.
type StockJournalEntry struct {
	BaseModel
	StoreID    uuid.UUID  `gorm:"type:uuid;index" json:"store_id"`
	ProductID  uuid.UUID  `gorm:"type:uuid;index" json:"product_id"`
	Delta      int        `json:"delta"`
	Reason     string     `gorm:"index" json:"reason"`
	ActorID    *uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	Note       string     `json:"note"`
	OrderID    *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	TransferID *uuid.UUID `gorm:"type:uuid;index" json:"transfer_id"`
}

// StockReservation is the hold created at checkout. The status flips
// RESERVED -> RELEASED exactly once, which is what makes release idempotent.
type StockReservation struct {
	BaseModel
	OrderID uuid.UUID              `gorm:"type:uuid;uniqueIndex" json:"order_id"`
	StoreID uuid.UUID              `gorm:"type:uuid;index" json:"store_id"`
	Status  string                 `json:"status"`
	Items   []StockReservationItem `gorm:"foreignKey:ReservationID" json:"items,omitempty"`
}

// StockReservationItem snapshots one reserved line.
type StockReservationItem struct {
	BaseModel
	ReservationID uuid.UUID `gorm:"type:uuid;index" json:"reservation_id"`
	ProductID     uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Qty           int       `json:"qty"`
}
