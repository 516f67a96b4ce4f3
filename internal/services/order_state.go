package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/models"
)

// Event is a state machine trigger.
type Event string

const (
	EventProofUploaded    Event = "proof_uploaded"
	EventGatewayPaid      Event = "gateway_paid"
	EventPaymentConfirmed Event = "payment_confirmed"
	EventPaymentRejected  Event = "payment_rejected"
	EventShip             Event = "ship"
	EventConfirmReceipt   Event = "confirm_receipt"
	EventCancel           Event = "cancel"
	EventExpire           Event = "expire"
)

// transitions is the complete legal (status, event) table. Anything absent
// fails with IllegalTransitionError.
var transitions = map[string]map[Event]string{
	models.OrderStatusPendingPayment: {
		EventProofUploaded: models.OrderStatusPaymentReview,
		EventGatewayPaid:   models.OrderStatusProcessing,
		EventCancel:        models.OrderStatusCancelled,
		EventExpire:        models.OrderStatusExpired,
	},
	models.OrderStatusPaymentReview: {
		EventPaymentConfirmed: models.OrderStatusProcessing,
		EventPaymentRejected:  models.OrderStatusPendingPayment,
		EventCancel:           models.OrderStatusCancelled,
	},
	models.OrderStatusProcessing: {
		EventShip:   models.OrderStatusShipped,
		EventCancel: models.OrderStatusCancelled,
	},
	models.OrderStatusShipped: {
		EventConfirmReceipt: models.OrderStatusConfirmed,
	},
}

// nextStatus resolves one transition. Pure.
func nextStatus(current string, event Event) (string, error) {
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return "", &IllegalTransitionError{Current: current, Event: event}
}

// paymentGuarded are the events requiring a payment row in PENDING.
var paymentGuarded = map[Event]bool{
	EventProofUploaded:    true,
	EventGatewayPaid:      true,
	EventPaymentConfirmed: true,
}

// releasing are the terminal events that free the order's reservation.
var releasing = map[Event]bool{
	EventCancel: true,
	EventExpire: true,
}

// OrderService drives orders through the lifecycle. Each Apply runs in one
// transaction: the conditional status flip, the payment side effect and the
// stock release commit or roll back together.
type OrderService struct {
	db     *gorm.DB
	ledger *LedgerService
	events *events.Publisher
}

func NewOrderService(db *gorm.DB, ledger *LedgerService, publisher *events.Publisher) *OrderService {
	return &OrderService{db: db, ledger: ledger, events: publisher}
}

// Apply fires one event against an order and returns the updated row.
func (s *OrderService) Apply(ctx context.Context, orderID uuid.UUID, event Event, actorID *uuid.UUID) (*models.Order, error) {
	var fromStatus, toStatus string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "order", ID: orderID.String()}
			}
			return err
		}

		next, err := nextStatus(order.Status, event)
		if err != nil {
			return err
		}

		if paymentGuarded[event] {
			var payment models.Payment
			if err := tx.First(&payment, "order_id = ?", orderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &IllegalTransitionError{Current: order.Status, Event: event}
				}
				return err
			}
			if payment.Status != models.PaymentStatusPending {
				return &IllegalTransitionError{Current: order.Status, Event: event}
			}
		}

		updates := map[string]any{"status": next}
		now := time.Now()
		switch event {
		case EventGatewayPaid, EventPaymentConfirmed:
			updates["paid_at"] = &now
		case EventShip:
			updates["shipped_at"] = &now
		case EventConfirmReceipt:
			updates["confirmed_at"] = &now
		case EventCancel:
			updates["cancelled_at"] = &now
		case EventExpire:
			updates["expired_at"] = &now
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, order.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &ConcurrencyConflictError{Resource: "order " + orderID.String()}
		}

		if err := s.applyPaymentEffect(tx, orderID, event, now); err != nil {
			return err
		}

		if releasing[event] {
			if err := s.ledger.releaseIn(tx, orderID); err != nil {
				return err
			}
		}

		fromStatus, toStatus = order.Status, next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.TypeOrderStatusChanged, orderID.String(), events.OrderStatusChangedPayload{
		OrderID:    orderID.String(),
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Event:      string(event),
	})
	log.Printf("[Order] %s: %s -> %s (%s)", orderID, fromStatus, toStatus, event)

	return s.Get(ctx, orderID)
}

func (s *OrderService) applyPaymentEffect(tx *gorm.DB, orderID uuid.UUID, event Event, now time.Time) error {
	switch event {
	case EventGatewayPaid:
		return tx.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
			Update("status", models.PaymentStatusPaid).Error
	case EventPaymentConfirmed:
		return tx.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
			Updates(map[string]any{
				"status":      models.PaymentStatusPaid,
				"reviewed_at": &now,
			}).Error
	case EventPaymentRejected:
		return tx.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
			Updates(map[string]any{
				"status":      models.PaymentStatusRejected,
				"reviewed_at": &now,
			}).Error
	}
	return nil
}

// OnPaymentFailed records a gateway failure. The order stays in
// PENDING_PAYMENT so the customer can retry until the deadline expires it.
func (s *OrderService) OnPaymentFailed(ctx context.Context, orderID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed).Error
}

// Get loads one order with its items and payment.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "order", ID: orderID.String()}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
