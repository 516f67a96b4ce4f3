package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/models"
)

type fakeLocator struct {
	resolution *Resolution
	err        error
}

func (f *fakeLocator) Resolve(ctx context.Context, input ResolveInput) (*Resolution, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resolution, nil
}

type fakeOrderStore struct {
	mu         sync.Mutex
	byKey      map[string]*models.Order
	products   map[uuid.UUID]models.Product
	discounts  []models.Discount
	createErr  error
	createdCnt int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		byKey:    make(map[string]*models.Order),
		products: make(map[uuid.UUID]models.Product),
	}
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if order.IdempotencyKey != nil {
		if _, exists := f.byKey[*order.IdempotencyKey]; exists {
			return gorm.ErrDuplicatedKey
		}
		f.byKey[*order.IdempotencyKey] = order
	}
	f.createdCnt++
	return nil
}

func (f *fakeOrderStore) OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byKey[key], nil
}

func (f *fakeOrderStore) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeOrderStore) DiscountsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Discount, error) {
	return f.discounts, nil
}

func (f *fakeOrderStore) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createdCnt
}

type checkoutFixture struct {
	svc     *CheckoutService
	ledger  *MemoryLedger
	store   *fakeOrderStore
	storeID uuid.UUID
	product uuid.UUID
}

func newCheckoutFixture(t *testing.T, stock int) *checkoutFixture {
	t.Helper()

	storeID := uuid.New()
	ledger := NewMemoryLedger()
	productID := uuid.New()
	ledger.Seed(storeID, productID, stock)

	locator := &fakeLocator{resolution: &Resolution{
		Store: models.Store{
			BaseModel:       models.BaseModel{ID: storeID},
			Name:            "FreshMart Central",
			ServiceRadiusKm: 5,
		},
		DistanceMeters: 1_200,
		InRange:        true,
	}}

	store := newFakeOrderStore()
	store.products[productID] = models.Product{
		BaseModel: models.BaseModel{ID: productID},
		Name:      "Gala Apples 1kg",
		Price:     10_000,
		Unit:      "kg",
		IsActive:  true,
	}
	svc := NewCheckoutService(locator, store, ledger, NewMemoryIdempotencyStore(), nil)

	return &checkoutFixture{
		svc:     svc,
		ledger:  ledger,
		store:   store,
		storeID: storeID,
		product: productID,
	}
}

func (f *checkoutFixture) input() PlaceOrderInput {
	return PlaceOrderInput{
		UserID:         uuid.New(),
		StoreID:        f.storeID,
		Items:          []CartLine{{ProductID: f.product, Qty: 2, UnitPrice: 10_000}},
		ShippingMethod: "delivery",
		ShippingFee:    5_000,
		PaymentMethod:  models.PaymentMethodManualTransfer,
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	input := f.input()
	input.IdempotencyKey = "key-1"

	order, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, models.OrderStatusPendingPayment, order.Status)
	require.Equal(t, 20_000.0, order.Subtotal)
	require.Equal(t, 25_000.0, order.GrandTotal)
	require.Len(t, order.Items, 1)
	require.Equal(t, 2, order.Items[0].Qty)
	require.Equal(t, "Gala Apples 1kg", order.Items[0].ProductName)
	require.Equal(t, 10_000.0, order.Items[0].UnitPrice, "price snapshotted from the catalog")
	require.NotNil(t, order.Payment)
	require.Equal(t, models.PaymentStatusPending, order.Payment.Status)
	require.Equal(t, order.GrandTotal, order.Payment.Amount)

	require.Equal(t, 8, f.ledger.Quantity(f.storeID, f.product))
}

func TestPlaceOrderGatewayHasNoUpfrontPayment(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	input := f.input()
	input.PaymentMethod = models.PaymentMethodGateway

	order, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	require.Nil(t, order.Payment, "gateway orders get their payment row from the webhook")
}

func TestPlaceOrderIdempotentRetry(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	input := f.input()
	input.IdempotencyKey = "retry-key"
	ctx := context.Background()

	first, err := f.svc.PlaceOrder(ctx, input)
	require.NoError(t, err)

	second, err := f.svc.PlaceOrder(ctx, input)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.store.created())
	require.Equal(t, 8, f.ledger.Quantity(f.storeID, f.product), "retry must not reserve again")
}

func TestPlaceOrderConcurrentSameKeyReservesOnce(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)

	const workers = 8
	var succeeded atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			input := f.input()
			input.IdempotencyKey = "shared-key"
			if _, err := f.svc.PlaceOrder(context.Background(), input); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, succeeded.Load(), int32(1))
	require.Equal(t, 1, f.store.created())
	require.Equal(t, 8, f.ledger.Quantity(f.storeID, f.product))
}

func TestPlaceOrderOutOfServiceArea(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	locator := &fakeLocator{resolution: &Resolution{
		Store: models.Store{
			BaseModel:       models.BaseModel{ID: f.storeID},
			Name:            "FreshMart Central",
			ServiceRadiusKm: 5,
		},
		DistanceMeters: 8_000,
		InRange:        false,
	}}
	svc := NewCheckoutService(locator, f.store, f.ledger, NewMemoryIdempotencyStore(), nil)

	input := f.input()
	input.IdempotencyKey = "far-away"
	_, err := svc.PlaceOrder(context.Background(), input)

	var outOfArea *OutOfServiceAreaError
	require.ErrorAs(t, err, &outOfArea)
	require.Equal(t, 8_000.0, outOfArea.DistanceMeters)
	require.Equal(t, 10, f.ledger.Quantity(f.storeID, f.product), "nothing reserved")
	require.Equal(t, 0, f.store.created())
}

func TestPlaceOrderStoreMismatch(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	input := f.input()
	input.StoreID = uuid.New() // cart built against a different branch

	_, err := f.svc.PlaceOrder(context.Background(), input)

	var mismatch *StoreMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, input.StoreID, mismatch.CartStoreID)
	require.Equal(t, 10, f.ledger.Quantity(f.storeID, f.product))
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 1)
	_, err := f.svc.PlaceOrder(context.Background(), f.input())

	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	require.Equal(t, 1, f.ledger.Quantity(f.storeID, f.product))
	require.Equal(t, 0, f.store.created())
}

func TestPlaceOrderReleasesReservationWhenCreateFails(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	f.store.createErr = gorm.ErrInvalidDB

	input := f.input()
	input.IdempotencyKey = "doomed"
	_, err := f.svc.PlaceOrder(context.Background(), input)
	require.Error(t, err)

	require.Equal(t, 10, f.ledger.Quantity(f.storeID, f.product), "reservation must be released")
	require.Equal(t, f.ledger.Quantity(f.storeID, f.product), f.ledger.JournalSum(f.storeID, f.product))

	// The failed attempt freed the key, so a retry can run.
	f.store.createErr = nil
	order, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, 8, f.ledger.Quantity(f.storeID, f.product))
}

func TestPlaceOrderBonusQtyIsReserved(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	discountID := uuid.New()
	f.store.discounts = []models.Discount{{
		BaseModel: models.BaseModel{ID: discountID},
		ProductID: f.product,
		Type:      models.DiscountTypeBuyXGetX,
		Value:     1,
		IsActive:  true,
	}}

	input := f.input()
	input.DiscountIDs = []uuid.UUID{discountID}

	order, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, 3, order.Items[0].Qty, "2 paid + 1 bonus")
	require.Equal(t, 1, order.Items[0].BonusQty)
	require.Equal(t, 20_000.0, order.Subtotal, "bonus units are free")
	require.Equal(t, 7, f.ledger.Quantity(f.storeID, f.product), "bonus unit held in the same reserve")
}

func TestPlaceOrderMaxQtyLineKeepsBonusOnTop(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 150)
	discountID := uuid.New()
	f.store.discounts = []models.Discount{{
		BaseModel: models.BaseModel{ID: discountID},
		ProductID: f.product,
		Type:      models.DiscountTypeBuyXGetX,
		Value:     1,
		IsActive:  true,
	}}

	input := f.input()
	input.Items[0].Qty = maxLineQty
	input.DiscountIDs = []uuid.UUID{discountID}

	order, err := f.svc.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, maxLineQty+1, order.Items[0].Qty, "the paid-unit cap does not count bonus units")
	require.Equal(t, 1, order.Items[0].BonusQty)
	require.Equal(t, 50, f.ledger.Quantity(f.storeID, f.product))
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	input := f.input()
	input.Items = []CartLine{{ProductID: uuid.New(), Qty: 1}}

	_, err := f.svc.PlaceOrder(context.Background(), input)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "product", notFound.Resource)
	require.Equal(t, 10, f.ledger.Quantity(f.storeID, f.product))
}

func TestPlaceOrderValidation(t *testing.T) {
	t.Parallel()

	f := newCheckoutFixture(t, 10)
	ctx := context.Background()
	var validation *ValidationError

	input := f.input()
	input.Items = nil
	_, err := f.svc.PlaceOrder(ctx, input)
	require.ErrorAs(t, err, &validation)

	input = f.input()
	input.Items[0].Qty = 0
	_, err = f.svc.PlaceOrder(ctx, input)
	require.ErrorAs(t, err, &validation)

	input = f.input()
	input.Items[0].Qty = 100
	_, err = f.svc.PlaceOrder(ctx, input)
	require.ErrorAs(t, err, &validation)

	input = f.input()
	input.PaymentMethod = "CASH_ON_MARS"
	_, err = f.svc.PlaceOrder(ctx, input)
	require.ErrorAs(t, err, &validation)

	require.Equal(t, 10, f.ledger.Quantity(f.storeID, f.product))
}
