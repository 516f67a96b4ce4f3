package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/freshmart/internal/models"
)

func discount(productID uuid.UUID, kind string, value float64) models.Discount {
	return models.Discount{
		BaseModel: models.BaseModel{ID: uuid.New()},
		ProductID: productID,
		Type:      kind,
		Value:     value,
		IsActive:  true,
	}
}

func TestEvaluateDiscountsPercentage(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cart, deltas, err := EvaluateDiscounts(
		[]CartLine{{ProductID: productID, Qty: 2, UnitPrice: 10_000}},
		[]models.Discount{discount(productID, models.DiscountTypePercentage, 10)},
	)
	require.NoError(t, err)
	require.Empty(t, deltas)
	require.Equal(t, 20_000.0, cart.Subtotal)
	require.Equal(t, 2_000.0, cart.DiscountTotal)
	require.Equal(t, 2, cart.Lines[0].Qty)
	require.Equal(t, 18_000.0, cart.Lines[0].LineTotal)
}

func TestEvaluateDiscountsFixedCappedAtLineTotal(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cart, _, err := EvaluateDiscounts(
		[]CartLine{{ProductID: productID, Qty: 1, UnitPrice: 5_000}},
		[]models.Discount{discount(productID, models.DiscountTypeFixed, 8_000)},
	)
	require.NoError(t, err)
	require.Equal(t, 5_000.0, cart.DiscountTotal, "a fixed cut never exceeds the line total")
	require.Equal(t, 0.0, cart.Lines[0].LineTotal)
}

func TestEvaluateDiscountsBuyXGetX(t *testing.T) {
	t.Parallel()

	promoted, plain := uuid.New(), uuid.New()
	cart, deltas, err := EvaluateDiscounts(
		[]CartLine{
			{ProductID: promoted, Qty: 3, UnitPrice: 4_000},
			{ProductID: plain, Qty: 1, UnitPrice: 2_500},
		},
		[]models.Discount{discount(promoted, models.DiscountTypeBuyXGetX, 1)},
	)
	require.NoError(t, err)

	// Bonus units raise the reserved quantity but cost nothing.
	require.Equal(t, 4, cart.Lines[0].Qty)
	require.Equal(t, 1, cart.Lines[0].BonusQty)
	require.Equal(t, 12_000.0, cart.Lines[0].LineTotal)
	require.Equal(t, 1, cart.Lines[1].Qty)
	require.Equal(t, 14_500.0, cart.Subtotal)
	require.Equal(t, 0.0, cart.DiscountTotal)

	require.Len(t, deltas, 1)
	require.Equal(t, promoted, deltas[0].ProductID)
	require.Equal(t, 1, deltas[0].Qty)
}

func TestEvaluateDiscountsStacking(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cart, _, err := EvaluateDiscounts(
		[]CartLine{{ProductID: productID, Qty: 2, UnitPrice: 10_000}},
		[]models.Discount{
			discount(productID, models.DiscountTypePercentage, 50),
			discount(productID, models.DiscountTypeFixed, 15_000),
		},
	)
	require.NoError(t, err)
	// 10000 + 15000 would exceed the 20000 base; the line floors at zero.
	require.Equal(t, 20_000.0, cart.DiscountTotal)
	require.Equal(t, 0.0, cart.Lines[0].LineTotal)
}

func TestEvaluateDiscountsUnknownType(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	_, _, err := EvaluateDiscounts(
		[]CartLine{{ProductID: productID, Qty: 1, UnitPrice: 1_000}},
		[]models.Discount{discount(productID, "MYSTERY", 1)},
	)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestDiscountApplierCompensatesOnPartialFailure(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID := uuid.New()
	first, second := uuid.New(), uuid.New()
	ledger.Seed(storeID, first, 10)
	ledger.Seed(storeID, second, 0)

	applier := NewDiscountApplier(ledger)
	err := applier.Apply(context.Background(), storeID, nil, []StockDelta{
		{ProductID: first, Qty: 2},
		{ProductID: second, Qty: 1},
	})

	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, second, stock.ProductID)

	// The hold on the first product was rolled back.
	require.Equal(t, 10, ledger.Quantity(storeID, first))
	require.Equal(t, 0, ledger.Quantity(storeID, second))
	require.Equal(t, ledger.Quantity(storeID, first), ledger.JournalSum(storeID, first))
}

func TestDiscountApplierApplyAndUnapply(t *testing.T) {
	t.Parallel()

	ledger := NewMemoryLedger()
	storeID, productID := uuid.New(), uuid.New()
	ledger.Seed(storeID, productID, 5)

	applier := NewDiscountApplier(ledger)
	deltas := []StockDelta{{ProductID: productID, Qty: 2}}
	ctx := context.Background()

	require.NoError(t, applier.Apply(ctx, storeID, nil, deltas))
	require.Equal(t, 3, ledger.Quantity(storeID, productID))

	require.NoError(t, applier.Unapply(ctx, storeID, nil, deltas))
	require.Equal(t, 5, ledger.Quantity(storeID, productID))
}
