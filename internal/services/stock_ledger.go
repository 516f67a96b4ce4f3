package services

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/freshmart/internal/models"
)

// LedgerService is the Postgres-backed Ledger. Every group operation runs in
// a single transaction holding FOR UPDATE locks on the affected stock rows,
// acquired in (store, product) order so opposing transfers cannot deadlock.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Reserve decrements stock for every line and appends ORDER_RESERVE journal
// rows tagged with the order id. All-or-nothing: the first short line aborts
// the whole group.
func (s *LedgerService) Reserve(ctx context.Context, storeID, orderID uuid.UUID, items []LineItem) error {
	if err := validateItems(items); err != nil {
		return err
	}

	sorted := sortedItems(items)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range sorted {
			entry, err := lockEntry(tx, storeID, it.ProductID)
			if err != nil {
				return err
			}
			available := 0
			if entry != nil {
				available = entry.Quantity
			}
			if available < it.Qty {
				return &InsufficientStockError{
					StoreID:   storeID,
					ProductID: it.ProductID,
					Requested: it.Qty,
					Available: available,
				}
			}

			if err := decrementEntry(tx, entry.ID, it.Qty); err != nil {
				return err
			}

			journal := models.StockJournalEntry{
				StoreID:   storeID,
				ProductID: it.ProductID,
				Delta:     -it.Qty,
				Reason:    models.StockReasonOrderReserve,
				OrderID:   &orderID,
			}
			if err := tx.Create(&journal).Error; err != nil {
				return err
			}
		}

		reservation := models.StockReservation{
			OrderID: orderID,
			StoreID: storeID,
			Status:  models.ReservationStatusReserved,
		}
		for _, it := range sorted {
			reservation.Items = append(reservation.Items, models.StockReservationItem{
				ProductID: it.ProductID,
				Qty:       it.Qty,
			})
		}
		if err := tx.Create(&reservation).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConcurrencyConflictError{Resource: "reservation " + orderID.String()}
			}
			return err
		}
		return nil
	})
}

// Release reverses a reservation, incrementing stock back and appending
// ORDER_RELEASE rows. The RESERVED -> RELEASED status flip makes a second
// release a no-op.
func (s *LedgerService) Release(ctx context.Context, orderID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.releaseIn(tx, orderID)
	})
}

// releaseIn runs the release inside the caller's transaction. Used by the
// order state machine so cancel/expire flips the status and frees the stock
// atomically.
func (s *LedgerService) releaseIn(tx *gorm.DB, orderID uuid.UUID) error {
	var reservation models.StockReservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status = ?", orderID, models.ReservationStatusReserved).
		First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // already released, or never reserved
	}
	if err != nil {
		return err
	}

	var items []models.StockReservationItem
	if err := tx.Where("reservation_id = ?", reservation.ID).
		Order("product_id").
		Find(&items).Error; err != nil {
		return err
	}

	for _, it := range items {
		entry, err := lockEntry(tx, reservation.StoreID, it.ProductID)
		if err != nil {
			return err
		}
		if entry == nil {
			// Reserved stock implies the entry exists; treat a missing row
			// as corruption rather than silently recreating it.
			return &NotFoundError{Resource: "stock entry", ID: it.ProductID.String()}
		}
		if err := tx.Model(&models.StockEntry{}).
			Where("id = ?", entry.ID).
			Update("quantity", gorm.Expr("quantity + ?", it.Qty)).Error; err != nil {
			return err
		}

		journal := models.StockJournalEntry{
			StoreID:   reservation.StoreID,
			ProductID: it.ProductID,
			Delta:     it.Qty,
			Reason:    models.StockReasonOrderRelease,
			OrderID:   &orderID,
		}
		if err := tx.Create(&journal).Error; err != nil {
			return err
		}
	}

	result := tx.Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", reservation.ID, models.ReservationStatusReserved).
		Update("status", models.ReservationStatusReleased)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &ConcurrencyConflictError{Resource: "reservation " + orderID.String()}
	}
	return nil
}

// Adjust applies one signed manual delta with a journal entry. A positive
// delta on a missing (store, product) pair creates the stock entry.
func (s *LedgerService) Adjust(ctx context.Context, storeID, productID uuid.UUID, delta int, reason string, actorID *uuid.UUID, note string) error {
	if delta == 0 {
		return &ValidationError{Msg: "quantity delta must be non-zero"}
	}
	if !adjustReasons[reason] {
		return &ValidationError{Msg: "invalid adjustment reason " + reason}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.adjustIn(tx, storeID, productID, delta, reason, actorID, note, nil); err != nil {
			return err
		}
		return nil
	})
}

func (s *LedgerService) adjustIn(tx *gorm.DB, storeID, productID uuid.UUID, delta int, reason string, actorID *uuid.UUID, note string, orderID *uuid.UUID) error {
	entry, err := lockEntry(tx, storeID, productID)
	if err != nil {
		return err
	}

	current := 0
	if entry != nil {
		current = entry.Quantity
	}
	if current+delta < 0 {
		return &InsufficientStockError{
			StoreID:   storeID,
			ProductID: productID,
			Requested: -delta,
			Available: current,
		}
	}

	if entry == nil {
		entry = &models.StockEntry{StoreID: storeID, ProductID: productID, Quantity: delta}
		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConcurrencyConflictError{Resource: "stock entry"}
			}
			return err
		}
	} else {
		if err := tx.Model(&models.StockEntry{}).
			Where("id = ?", entry.ID).
			Update("quantity", gorm.Expr("quantity + ?", delta)).Error; err != nil {
			return err
		}
	}

	journal := models.StockJournalEntry{
		StoreID:   storeID,
		ProductID: productID,
		Delta:     delta,
		Reason:    reason,
		ActorID:   actorID,
		Note:      note,
		OrderID:   orderID,
	}
	return tx.Create(&journal).Error
}

// Transfer moves stock between two stores, locking rows at both in a fixed
// global order. Both journal sides share one transfer id.
func (s *LedgerService) Transfer(ctx context.Context, fromStoreID, toStoreID uuid.UUID, items []LineItem, actorID *uuid.UUID, note string) (uuid.UUID, error) {
	if fromStoreID == toStoreID {
		return uuid.Nil, &InvalidOperationError{Msg: "source and destination store must differ"}
	}
	if err := validateItems(items); err != nil {
		return uuid.Nil, err
	}

	transferID := uuid.New()
	sorted := sortedItems(items)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type side struct {
			storeID uuid.UUID
			item    LineItem
			out     bool
		}
		sides := make([]side, 0, 2*len(sorted))
		for _, it := range sorted {
			sides = append(sides,
				side{storeID: fromStoreID, item: it, out: true},
				side{storeID: toStoreID, item: it, out: false},
			)
		}
		sort.Slice(sides, func(i, j int) bool {
			if sides[i].storeID != sides[j].storeID {
				return sides[i].storeID.String() < sides[j].storeID.String()
			}
			return sides[i].item.ProductID.String() < sides[j].item.ProductID.String()
		})

		// First pass: lock every row and verify source availability.
		entries := make(map[[2]uuid.UUID]*models.StockEntry, len(sides))
		for _, sd := range sides {
			entry, err := lockEntry(tx, sd.storeID, sd.item.ProductID)
			if err != nil {
				return err
			}
			entries[[2]uuid.UUID{sd.storeID, sd.item.ProductID}] = entry
			if sd.out {
				available := 0
				if entry != nil {
					available = entry.Quantity
				}
				if available < sd.item.Qty {
					return &InsufficientStockError{
						StoreID:   fromStoreID,
						ProductID: sd.item.ProductID,
						Requested: sd.item.Qty,
						Available: available,
					}
				}
			}
		}

		for _, sd := range sides {
			entry := entries[[2]uuid.UUID{sd.storeID, sd.item.ProductID}]
			delta := sd.item.Qty
			reason := models.StockReasonTransferIn
			if sd.out {
				delta = -sd.item.Qty
				reason = models.StockReasonTransferOut
			}

			if entry == nil {
				created := models.StockEntry{StoreID: sd.storeID, ProductID: sd.item.ProductID, Quantity: delta}
				if err := tx.Create(&created).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return &ConcurrencyConflictError{Resource: "stock entry"}
					}
					return err
				}
			} else {
				if err := tx.Model(&models.StockEntry{}).
					Where("id = ?", entry.ID).
					Update("quantity", gorm.Expr("quantity + ?", delta)).Error; err != nil {
					return err
				}
			}

			journal := models.StockJournalEntry{
				StoreID:    sd.storeID,
				ProductID:  sd.item.ProductID,
				Delta:      delta,
				Reason:     reason,
				ActorID:    actorID,
				Note:       note,
				TransferID: &transferID,
			}
			if err := tx.Create(&journal).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return transferID, nil
}

// lockEntry takes a FOR UPDATE lock on one stock row. Returns nil when the
// (store, product) pair has no entry yet.
func lockEntry(tx *gorm.DB, storeID, productID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// decrementEntry applies the guarded decrement. The row is already locked;
// the WHERE quantity >= guard is the last line of defense against a negative
// balance.
func decrementEntry(tx *gorm.DB, entryID uuid.UUID, qty int) error {
	result := tx.Model(&models.StockEntry{}).
		Where("id = ? AND quantity >= ?", entryID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &ConcurrencyConflictError{Resource: "stock entry " + entryID.String()}
	}
	return nil
}

func sortedItems(items []LineItem) []LineItem {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})
	return sorted
}
