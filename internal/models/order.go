package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. CONFIRMED, CANCELLED and EXPIRED are terminal.
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaymentReview  = "PAYMENT_REVIEW"
	OrderStatusProcessing     = "PROCESSING"
	OrderStatusShipped        = "SHIPPED"
	OrderStatusConfirmed      = "CONFIRMED"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusExpired        = "EXPIRED"
)

// Payment methods.
const (
	PaymentMethodManualTransfer = "MANUAL_TRANSFER"
	PaymentMethodGateway        = "GATEWAY"
)

// Payment statuses.
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusRejected = "REJECTED"
)

// Order is created once per successful checkout and only mutated through
// state machine transitions. Cancellation is a terminal status, not a delete.
type Order struct {
	BaseModel
	UserID         uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	User           *User      `json:"user,omitempty"`
	StoreID        uuid.UUID  `gorm:"type:uuid;index" json:"store_id"`
	Store          *Store     `json:"store,omitempty"`
	Status         string     `gorm:"index" json:"status"`
	PaymentMethod  string     `json:"payment_method"`
	ShippingMethod string     `json:"shipping_method"`
	AddressID      *uuid.UUID `gorm:"type:uuid" json:"address_id"`
	Subtotal       float64    `json:"subtotal"`
	ShippingFee    float64    `json:"shipping_fee"`
	DiscountTotal  float64    `json:"discount_total"`
	GrandTotal     float64    `json:"grand_total"`
	IdempotencyKey *string    `gorm:"uniqueIndex" json:"idempotency_key,omitempty"`
	Items          []OrderItem `json:"items,omitempty"`
	Payment        *Payment    `json:"payment,omitempty"`
	PaidAt         *time.Time  `json:"paid_at"`
	ShippedAt      *time.Time  `json:"shipped_at"`
	ConfirmedAt    *time.Time  `json:"confirmed_at"`
	CancelledAt    *time.Time  `json:"cancelled_at"`
	ExpiredAt      *time.Time  `json:"expired_at"`
}

// OrderItem snapshots one cart line at checkout time. Qty includes any
// discount-granted bonus units.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductID   uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName string    `json:"product_name"`
	Qty         int       `json:"qty"`
	BonusQty    int       `json:"bonus_qty"`
	UnitPrice   float64   `json:"unit_price"`
	LineTotal   float64   `json:"line_total"`
}

// Payment is the 1:1 payment record owned by an order. Manual-transfer orders
// create it at checkout; gateway orders create it when the webhook arrives.
type Payment struct {
	BaseModel
	OrderID    uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"order_id"`
	Status     string     `json:"status"`
	Amount     float64    `json:"amount"`
	ProofURL   string     `json:"proof_url"`
	ReviewedAt *time.Time `json:"reviewed_at"`
}
