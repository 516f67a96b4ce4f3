package events

import (
	"encoding/json"
	"time"
)

// Event types emitted on the order stream.
const (
	TypeOrderCreated       = "OrderCreated"
	TypeOrderStatusChanged = "OrderStatusChanged"
	TypeStockReleased      = "StockReleased"
)

// Envelope wraps every published event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// OrderCreatedPayload announces a new order in PENDING_PAYMENT.
type OrderCreatedPayload struct {
	OrderID       string  `json:"order_id"`
	UserID        string  `json:"user_id"`
	StoreID       string  `json:"store_id"`
	PaymentMethod string  `json:"payment_method"`
	GrandTotal    float64 `json:"grand_total"`
}

// OrderStatusChangedPayload announces a state machine transition.
type OrderStatusChangedPayload struct {
	OrderID    string `json:"order_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Event      string `json:"event"`
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
