package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/models"
)

// GormOrderStore is the database-backed OrderStore.
type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

// CreateOrder inserts the order with its items and payment in one
// transaction. A duplicate idempotency key surfaces as
// gorm.ErrDuplicatedKey.
func (s *GormOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Create(order).Error
}

func (s *GormOrderStore) OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("idempotency_key = ?", key).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ProductsByIDs loads the active products referenced by the cart, keyed by
// id. Missing or inactive products are simply absent from the result.
func (s *GormOrderStore) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// DiscountsByIDs loads the selected discounts; a missing or inactive id is a
// validation failure so a stale cart cannot sneak an old promotion through.
func (s *GormOrderStore) DiscountsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Discount, error) {
	var discounts []models.Discount
	err := s.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&discounts).Error
	if err != nil {
		return nil, err
	}
	if len(discounts) != len(ids) {
		return nil, &ValidationError{Msg: "one or more discounts are unknown or inactive"}
	}
	return discounts, nil
}
