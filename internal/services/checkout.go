package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/models"
)

// maxLineQty bounds the paid quantity per line. Bonus units granted by a
// BUYXGETX discount come on top of it.
const maxLineQty = 99

// StoreLocator resolves the serving store for a checkout.
type StoreLocator interface {
	Resolve(ctx context.Context, input ResolveInput) (*Resolution, error)
}

// OrderStore persists orders and reads checkout inputs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	DiscountsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Discount, error)
}

// PlaceOrderInput is the cart snapshot plus fulfillment choices.
type PlaceOrderInput struct {
	UserID         uuid.UUID
	StoreID        uuid.UUID
	Items          []CartLine
	AddressID      *uuid.UUID
	Lat            *float64
	Lon            *float64
	ShippingMethod string
	ShippingFee    float64
	PaymentMethod  string
	DiscountIDs    []uuid.UUID
	IdempotencyKey string
}

// CheckoutService composes the resolver, discount evaluation, the ledger and
// order creation into one idempotent place-order operation.
type CheckoutService struct {
	stores StoreLocator
	orders OrderStore
	ledger Ledger
	idem   IdempotencyStore
	events *events.Publisher
}

func NewCheckoutService(stores StoreLocator, orders OrderStore, ledger Ledger, idem IdempotencyStore, publisher *events.Publisher) *CheckoutService {
	return &CheckoutService{
		stores: stores,
		orders: orders,
		ledger: ledger,
		idem:   idem,
		events: publisher,
	}
}

// PlaceOrder runs the checkout. Retrying with the same idempotency key
// returns the original order without reserving again; any failure after the
// reservation releases it before the error surfaces.
func (s *CheckoutService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	if key != "" {
		if order, ok, err := s.lookupExisting(ctx, key); err != nil || ok {
			return order, err
		}
		claimed, err := s.idem.Begin(ctx, key)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost the claim race: either the winner finished (return its
			// order) or it is still running.
			if order, err := s.orders.OrderByIdempotencyKey(ctx, key); err == nil && order != nil {
				return order, nil
			}
			return nil, &ConcurrencyConflictError{Resource: "checkout " + key}
		}
	}

	order, err := s.placeOrder(ctx, input)
	if key != "" {
		if err != nil {
			if failErr := s.idem.Fail(ctx, key); failErr != nil {
				log.Printf("[Checkout] failed to free idempotency key %s: %v", key, failErr)
			}
		} else {
			if completeErr := s.idem.Complete(ctx, key, order.ID); completeErr != nil {
				log.Printf("[Checkout] failed to record idempotency key %s: %v", key, completeErr)
			}
		}
	}
	return order, err
}

func (s *CheckoutService) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	resolution, err := s.stores.Resolve(ctx, ResolveInput{
		Lat:       input.Lat,
		Lon:       input.Lon,
		UserID:    input.UserID,
		AddressID: input.AddressID,
	})
	if err != nil {
		return nil, err
	}
	if !resolution.InRange {
		return nil, &OutOfServiceAreaError{
			StoreName:      resolution.Store.Name,
			DistanceMeters: resolution.DistanceMeters,
			RadiusKm:       resolution.Store.ServiceRadiusKm,
		}
	}
	if resolution.Store.ID != input.StoreID {
		return nil, &StoreMismatchError{
			CartStoreID:     input.StoreID,
			ResolvedStoreID: resolution.Store.ID,
		}
	}

	// Prices and names are snapshotted from the catalog, never trusted from
	// the request.
	productIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.orders.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	lines := make([]CartLine, 0, len(input.Items))
	for _, item := range input.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, &NotFoundError{Resource: "product", ID: item.ProductID.String()}
		}
		lines = append(lines, CartLine{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: product.Price,
		})
	}

	var discounts []models.Discount
	if len(input.DiscountIDs) > 0 {
		discounts, err = s.orders.DiscountsByIDs(ctx, input.DiscountIDs)
		if err != nil {
			return nil, err
		}
	}
	cart, _, err := EvaluateDiscounts(lines, discounts)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	reserveItems := make([]LineItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		reserveItems = append(reserveItems, LineItem{ProductID: line.ProductID, Qty: line.Qty})
	}
	if err := s.ledger.Reserve(ctx, input.StoreID, orderID, reserveItems); err != nil {
		return nil, err
	}

	order := s.buildOrder(orderID, input, cart, products)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if releaseErr := s.ledger.Release(ctx, orderID); releaseErr != nil {
			log.Printf("[Checkout] failed to release reservation %s: %v", orderID, releaseErr)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && input.IdempotencyKey != "" {
			// Concurrent retry won the unique-key race; hand back its order.
			if existing, lookupErr := s.orders.OrderByIdempotencyKey(ctx, input.IdempotencyKey); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.events.Publish(events.TypeOrderCreated, orderID.String(), events.OrderCreatedPayload{
		OrderID:       orderID.String(),
		UserID:        input.UserID.String(),
		StoreID:       input.StoreID.String(),
		PaymentMethod: input.PaymentMethod,
		GrandTotal:    order.GrandTotal,
	})
	log.Printf("[Checkout] order %s placed for user %s at store %s", orderID, input.UserID, input.StoreID)
	return order, nil
}

func (s *CheckoutService) lookupExisting(ctx context.Context, key string) (*models.Order, bool, error) {
	orderID, found, err := s.idem.Lookup(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	order, err := s.orders.OrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if order == nil || order.ID != orderID {
		return nil, false, nil
	}
	return order, true, nil
}

func (s *CheckoutService) buildOrder(orderID uuid.UUID, input PlaceOrderInput, cart EvaluatedCart, products map[uuid.UUID]models.Product) *models.Order {
	order := &models.Order{
		BaseModel:      models.BaseModel{ID: orderID},
		UserID:         input.UserID,
		StoreID:        input.StoreID,
		Status:         models.OrderStatusPendingPayment,
		PaymentMethod:  input.PaymentMethod,
		ShippingMethod: input.ShippingMethod,
		AddressID:      input.AddressID,
		Subtotal:       cart.Subtotal,
		ShippingFee:    input.ShippingFee,
		DiscountTotal:  cart.DiscountTotal,
	}
	order.GrandTotal = order.Subtotal - order.DiscountTotal + order.ShippingFee
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		order.IdempotencyKey = &key
	}

	for _, line := range cart.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: products[line.ProductID].Name,
			Qty:         line.Qty,
			BonusQty:    line.BonusQty,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}

	if input.PaymentMethod == models.PaymentMethodManualTransfer {
		order.Payment = &models.Payment{
			Status: models.PaymentStatusPending,
			Amount: order.GrandTotal,
		}
	}
	return order
}

func (s *CheckoutService) validate(input PlaceOrderInput) error {
	if input.UserID == uuid.Nil {
		return &ValidationError{Msg: "user id is required"}
	}
	if input.StoreID == uuid.Nil {
		return &ValidationError{Msg: "store id is required"}
	}
	if len(input.Items) == 0 {
		return &ValidationError{Msg: "at least one item is required"}
	}
	for _, item := range input.Items {
		if item.Qty < 1 || item.Qty > maxLineQty {
			return &ValidationError{Msg: "item quantity must be between 1 and 99"}
		}
	}
	if input.ShippingFee < 0 {
		return &ValidationError{Msg: "shipping fee must not be negative"}
	}
	switch input.PaymentMethod {
	case models.PaymentMethodManualTransfer, models.PaymentMethodGateway:
	default:
		return &ValidationError{Msg: "unsupported payment method"}
	}
	return nil
}
