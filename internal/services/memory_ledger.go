package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/models"
)

type stockKey struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
}

type memReservation struct {
	storeID  uuid.UUID
	items    []LineItem
	released bool
}

// MemoryLedger is a mutex-guarded in-memory Ledger with the same semantics
// as LedgerService. It backs tests and local development without Postgres.
type MemoryLedger struct {
	mu           sync.Mutex
	entries      map[stockKey]int
	journal      []models.StockJournalEntry
	reservations map[uuid.UUID]*memReservation
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries:      make(map[stockKey]int),
		reservations: make(map[uuid.UUID]*memReservation),
	}
}

// Seed sets initial stock for a pair, journaled as an ADD.
func (m *MemoryLedger) Seed(storeID, productID uuid.UUID, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stockKey{StoreID: storeID, ProductID: productID}
	m.entries[key] += qty
	m.appendJournal(storeID, productID, qty, models.StockReasonAdd, nil, "seed", nil, nil)
}

func (m *MemoryLedger) Reserve(ctx context.Context, storeID, orderID uuid.UUID, items []LineItem) error {
	if err := validateItems(items); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reservations[orderID]; exists {
		return &ConcurrencyConflictError{Resource: "reservation " + orderID.String()}
	}

	for _, it := range items {
		available := m.entries[stockKey{StoreID: storeID, ProductID: it.ProductID}]
		if available < it.Qty {
			return &InsufficientStockError{
				StoreID:   storeID,
				ProductID: it.ProductID,
				Requested: it.Qty,
				Available: available,
			}
		}
	}

	held := make([]LineItem, len(items))
	copy(held, items)
	for _, it := range items {
		m.entries[stockKey{StoreID: storeID, ProductID: it.ProductID}] -= it.Qty
		m.appendJournal(storeID, it.ProductID, -it.Qty, models.StockReasonOrderReserve, nil, "", &orderID, nil)
	}
	m.reservations[orderID] = &memReservation{storeID: storeID, items: held}
	return nil
}

func (m *MemoryLedger) Release(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, exists := m.reservations[orderID]
	if !exists || res.released {
		return nil
	}

	for _, it := range res.items {
		m.entries[stockKey{StoreID: res.storeID, ProductID: it.ProductID}] += it.Qty
		m.appendJournal(res.storeID, it.ProductID, it.Qty, models.StockReasonOrderRelease, nil, "", &orderID, nil)
	}
	res.released = true
	return nil
}

func (m *MemoryLedger) Adjust(ctx context.Context, storeID, productID uuid.UUID, delta int, reason string, actorID *uuid.UUID, note string) error {
	if delta == 0 {
		return &ValidationError{Msg: "quantity delta must be non-zero"}
	}
	if !adjustReasons[reason] {
		return &ValidationError{Msg: "invalid adjustment reason " + reason}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := stockKey{StoreID: storeID, ProductID: productID}
	if m.entries[key]+delta < 0 {
		return &InsufficientStockError{
			StoreID:   storeID,
			ProductID: productID,
			Requested: -delta,
			Available: m.entries[key],
		}
	}
	m.entries[key] += delta
	m.appendJournal(storeID, productID, delta, reason, actorID, note, nil, nil)
	return nil
}

func (m *MemoryLedger) Transfer(ctx context.Context, fromStoreID, toStoreID uuid.UUID, items []LineItem, actorID *uuid.UUID, note string) (uuid.UUID, error) {
	if fromStoreID == toStoreID {
		return uuid.Nil, &InvalidOperationError{Msg: "source and destination store must differ"}
	}
	if err := validateItems(items); err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		available := m.entries[stockKey{StoreID: fromStoreID, ProductID: it.ProductID}]
		if available < it.Qty {
			return uuid.Nil, &InsufficientStockError{
				StoreID:   fromStoreID,
				ProductID: it.ProductID,
				Requested: it.Qty,
				Available: available,
			}
		}
	}

	transferID := uuid.New()
	for _, it := range items {
		m.entries[stockKey{StoreID: fromStoreID, ProductID: it.ProductID}] -= it.Qty
		m.entries[stockKey{StoreID: toStoreID, ProductID: it.ProductID}] += it.Qty
		m.appendJournal(fromStoreID, it.ProductID, -it.Qty, models.StockReasonTransferOut, actorID, note, nil, &transferID)
		m.appendJournal(toStoreID, it.ProductID, it.Qty, models.StockReasonTransferIn, actorID, note, nil, &transferID)
	}
	return transferID, nil
}

// Quantity reports the current stock for a pair.
func (m *MemoryLedger) Quantity(storeID, productID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[stockKey{StoreID: storeID, ProductID: productID}]
}

// JournalSum folds the journal deltas for a pair. Always equal to Quantity.
func (m *MemoryLedger) JournalSum(storeID, productID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, j := range m.journal {
		if j.StoreID == storeID && j.ProductID == productID {
			sum += j.Delta
		}
	}
	return sum
}

// JournalEntries returns a copy of the journal for inspection.
func (m *MemoryLedger) JournalEntries() []models.StockJournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.StockJournalEntry, len(m.journal))
	copy(out, m.journal)
	return out
}

func (m *MemoryLedger) appendJournal(storeID, productID uuid.UUID, delta int, reason string, actorID *uuid.UUID, note string, orderID, transferID *uuid.UUID) {
	m.journal = append(m.journal, models.StockJournalEntry{
		StoreID:    storeID,
		ProductID:  productID,
		Delta:      delta,
		Reason:     reason,
		ActorID:    actorID,
		Note:       note,
		OrderID:    orderID,
		TransferID: transferID,
	})
}
