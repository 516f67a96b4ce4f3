package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/models"
)

// ResolveInput locates the customer either by raw coordinates or by a saved
// address. When AddressID is set, UserID scopes the lookup.
type ResolveInput struct {
	Lat       *float64
	Lon       *float64
	UserID    uuid.UUID
	AddressID *uuid.UUID
}

// Resolution is the outcome of resolving the nearest store. InRange false is
// a reportable condition, not a failure: the nearest candidate and its
// distance are still returned.
type Resolution struct {
	Store          models.Store
	DistanceMeters float64
	InRange        bool
}

// StoreResolver finds the nearest eligible store for a point. Side-effect
// free; safe to call repeatedly and concurrently.
type StoreResolver struct {
	db *gorm.DB
}

func NewStoreResolver(db *gorm.DB) *StoreResolver {
	return &StoreResolver{db: db}
}

func (r *StoreResolver) Resolve(ctx context.Context, input ResolveInput) (*Resolution, error) {
	lat, lon, err := r.locate(ctx, input)
	if err != nil {
		return nil, err
	}

	var stores []models.Store
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&stores).Error; err != nil {
		return nil, err
	}
	if len(stores) == 0 {
		return nil, &NotFoundError{Resource: "store", ID: "any"}
	}

	best := stores[0]
	bestDist := haversineMeters(lat, lon, best.Latitude, best.Longitude)
	for _, s := range stores[1:] {
		if d := haversineMeters(lat, lon, s.Latitude, s.Longitude); d < bestDist {
			best, bestDist = s, d
		}
	}

	return &Resolution{
		Store:          best,
		DistanceMeters: bestDist,
		InRange:        bestDist <= best.ServiceRadiusKm*1000,
	}, nil
}

func (r *StoreResolver) locate(ctx context.Context, input ResolveInput) (float64, float64, error) {
	if input.AddressID != nil {
		var addr models.UserAddress
		query := r.db.WithContext(ctx).Where("id = ?", *input.AddressID)
		if input.UserID != uuid.Nil {
			query = query.Where("user_id = ?", input.UserID)
		}
		if err := query.First(&addr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, 0, &NotFoundError{Resource: "address", ID: input.AddressID.String()}
			}
			return 0, 0, err
		}
		if addr.Latitude == 0 && addr.Longitude == 0 {
			return 0, 0, &ValidationError{Msg: "address has no resolved coordinates"}
		}
		return addr.Latitude, addr.Longitude, nil
	}

	if input.Lat == nil || input.Lon == nil {
		return 0, 0, &ValidationError{Msg: "either coordinates or an address id is required"}
	}
	return *input.Lat, *input.Lon, nil
}
