package services

import (
	"fmt"

	"github.com/google/uuid"
)

// Machine-readable error kinds surfaced to API clients.
const (
	KindValidation          = "VALIDATION"
	KindNotFound            = "NOT_FOUND"
	KindInsufficientStock   = "INSUFFICIENT_STOCK"
	KindOutOfServiceArea    = "OUT_OF_SERVICE_AREA"
	KindStoreMismatch       = "STORE_MISMATCH"
	KindIllegalTransition   = "ILLEGAL_TRANSITION"
	KindInvalidOperation    = "INVALID_OPERATION"
	KindConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// ValidationError marks malformed input, not retryable as-is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError marks a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InsufficientStockError is a business condition the user can correct by
// reducing the requested quantity.
type InsufficientStockError struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s at store %s: requested %d, available %d",
		e.ProductID, e.StoreID, e.Requested, e.Available)
}

// OutOfServiceAreaError carries the distance and limit so callers can report
// "N km away, limit M km".
type OutOfServiceAreaError struct {
	StoreName      string
	DistanceMeters float64
	RadiusKm       float64
}

func (e *OutOfServiceAreaError) Error() string {
	return fmt.Sprintf("address is %.0fm from nearest store %q, service limit %.1fkm",
		e.DistanceMeters, e.StoreName, e.RadiusKm)
}

// StoreMismatchError means the resolved store differs from the store the cart
// was built against.
type StoreMismatchError struct {
	CartStoreID     uuid.UUID
	ResolvedStoreID uuid.UUID
}

func (e *StoreMismatchError) Error() string {
	return fmt.Sprintf("cart was built for store %s but address resolves to store %s",
		e.CartStoreID, e.ResolvedStoreID)
}

// IllegalTransitionError names the current and attempted states.
type IllegalTransitionError struct {
	Current string
	Event   Event
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("event %q is not legal from status %s", e.Event, e.Current)
}

// InvalidOperationError marks a structurally invalid request, e.g. a transfer
// between a store and itself.
type InvalidOperationError struct {
	Msg string
}

func (e *InvalidOperationError) Error() string { return e.Msg }

// ConcurrencyConflictError marks lock contention or a lost conditional
// update; safe to retry once.
type ConcurrencyConflictError struct {
	Resource string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s", e.Resource)
}
