package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/freshmart/internal/models"
)

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID, productID := uuid.New(), uuid.New()
	ledger.Seed(storeID, productID, 3)

	err := ledger.Reserve(context.Background(), storeID, uuid.New(), []LineItem{
		{ProductID: productID, Qty: 5},
	})

	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, 5, stock.Requested)
	require.Equal(t, 3, stock.Available)
	require.Equal(t, 3, ledger.Quantity(storeID, productID), "failed reserve must not touch stock")
}

func TestReserveAllOrNothing(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID := uuid.New()
	full, empty := uuid.New(), uuid.New()
	ledger.Seed(storeID, full, 10)
	ledger.Seed(storeID, empty, 1)

	err := ledger.Reserve(context.Background(), storeID, uuid.New(), []LineItem{
		{ProductID: full, Qty: 2},
		{ProductID: empty, Qty: 5},
	})

	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, 10, ledger.Quantity(storeID, full), "first line must not be held when second fails")
	require.Equal(t, 1, ledger.Quantity(storeID, empty))
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID, productID := uuid.New(), uuid.New()
	ledger.Seed(storeID, productID, 10)

	const workers = 30
	var succeeded atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), storeID, uuid.New(), []LineItem{
				{ProductID: productID, Qty: 1},
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(10), succeeded.Load())
	require.Equal(t, 0, ledger.Quantity(storeID, productID))
	require.Equal(t, ledger.Quantity(storeID, productID), ledger.JournalSum(storeID, productID))
}

func TestConcurrentReservesOnlyOneWinsLastUnits(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID, productID := uuid.New(), uuid.New()
	ledger.Seed(storeID, productID, 10)

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), storeID, uuid.New(), []LineItem{
				{ProductID: productID, Qty: 6},
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), succeeded.Load(), "two 6-unit reserves cannot both fit in 10")
	require.Equal(t, 4, ledger.Quantity(storeID, productID))
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID, productID := uuid.New(), uuid.New()
	ledger.Seed(storeID, productID, 10)

	orderID := uuid.New()
	ctx := context.Background()
	require.NoError(t, ledger.Reserve(ctx, storeID, orderID, []LineItem{
		{ProductID: productID, Qty: 4},
	}))
	require.Equal(t, 6, ledger.Quantity(storeID, productID))

	require.NoError(t, ledger.Release(ctx, orderID))
	require.Equal(t, 10, ledger.Quantity(storeID, productID))

	// Second release is a no-op, not a double credit.
	require.NoError(t, ledger.Release(ctx, orderID))
	require.Equal(t, 10, ledger.Quantity(storeID, productID))

	// Releasing an order with no reservation is also a no-op.
	require.NoError(t, ledger.Release(ctx, uuid.New()))
	require.Equal(t, ledger.Quantity(storeID, productID), ledger.JournalSum(storeID, productID))
}

func TestAdjustGuardsNegativeStock(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID, productID := uuid.New(), uuid.New()
	ctx := context.Background()

	require.NoError(t, ledger.Adjust(ctx, storeID, productID, 7, models.StockReasonAdd, nil, "delivery"))
	require.Equal(t, 7, ledger.Quantity(storeID, productID))

	err := ledger.Adjust(ctx, storeID, productID, -8, models.StockReasonRemove, nil, "shrinkage")
	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, 7, ledger.Quantity(storeID, productID))

	var validation *ValidationError
	require.ErrorAs(t, ledger.Adjust(ctx, storeID, productID, 0, models.StockReasonAdd, nil, ""), &validation)
	require.ErrorAs(t, ledger.Adjust(ctx, storeID, productID, 1, models.StockReasonOrderReserve, nil, ""), &validation)
}

func TestTransferMovesStockAtomically(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeA, storeB, productID := uuid.New(), uuid.New(), uuid.New()
	ledger.Seed(storeA, productID, 20)
	ctx := context.Background()

	transferID, err := ledger.Transfer(ctx, storeA, storeB, []LineItem{
		{ProductID: productID, Qty: 5},
	}, nil, "rebalance")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, transferID)

	require.Equal(t, 15, ledger.Quantity(storeA, productID))
	require.Equal(t, 5, ledger.Quantity(storeB, productID))

	var out, in int
	for _, j := range ledger.JournalEntries() {
		if j.TransferID == nil || *j.TransferID != transferID {
			continue
		}
		switch j.Reason {
		case models.StockReasonTransferOut:
			out++
			require.Equal(t, -5, j.Delta)
			require.Equal(t, storeA, j.StoreID)
		case models.StockReasonTransferIn:
			in++
			require.Equal(t, 5, j.Delta)
			require.Equal(t, storeB, j.StoreID)
		}
	}
	require.Equal(t, 1, out)
	require.Equal(t, 1, in)
}

func TestTransferRejectsBadInput(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeA, storeB, productID := uuid.New(), uuid.New(), uuid.New()
	ledger.Seed(storeA, productID, 2)
	ctx := context.Background()

	_, err := ledger.Transfer(ctx, storeA, storeA, []LineItem{{ProductID: productID, Qty: 1}}, nil, "")
	var invalid *InvalidOperationError
	require.ErrorAs(t, err, &invalid)

	_, err = ledger.Transfer(ctx, storeA, storeB, []LineItem{{ProductID: productID, Qty: 5}}, nil, "")
	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, 2, ledger.Quantity(storeA, productID))
	require.Equal(t, 0, ledger.Quantity(storeB, productID))
}

func TestValidateItemsRejectsDuplicatesAndBadQty(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	var validation *ValidationError

	require.ErrorAs(t, validateItems(nil), &validation)
	require.ErrorAs(t, validateItems([]LineItem{{ProductID: productID, Qty: 0}}), &validation)
	require.ErrorAs(t, validateItems([]LineItem{
		{ProductID: productID, Qty: 1},
		{ProductID: productID, Qty: 2},
	}), &validation)
	require.NoError(t, validateItems([]LineItem{{ProductID: productID, Qty: 3}}))
}
