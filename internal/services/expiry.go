package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/freshmart/internal/models"
)

// ExpirySweeper expires unpaid orders past the payment deadline. The deadline
// is counted from order creation; a rejected payment proof does not restart
// the clock.
type ExpirySweeper struct {
	db       *gorm.DB
	orders   *OrderService
	deadline time.Duration
	interval time.Duration
}

func NewExpirySweeper(db *gorm.DB, orders *OrderService, deadline, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{db: db, orders: orders, deadline: deadline, interval: interval}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[Expiry] sweeper started, deadline %s, every %s", s.deadline, s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Expiry] sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Printf("[Expiry] sweep failed: %v", err)
			}
		}
	}
}

// Sweep expires every PENDING_PAYMENT order older than the deadline. Each
// order goes through the state machine so its reservation is released in the
// same transaction. A conflict means another worker got there first.
func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.deadline)

	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", models.OrderStatusPendingPayment, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := s.orders.Apply(ctx, id, EventExpire, nil); err != nil {
			var conflict *ConcurrencyConflictError
			var illegal *IllegalTransitionError
			if errors.As(err, &conflict) || errors.As(err, &illegal) {
				continue
			}
			log.Printf("[Expiry] could not expire order %s: %v", id, err)
			continue
		}
		log.Printf("[Expiry] order %s expired", id)
	}
	return nil
}
