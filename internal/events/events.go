package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderCompleted   = "OrderCompleted"
	EventPaymentCompleted = "PaymentCompleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	PartID     string `json:"part_id"`
	Qty        int    `json:"qty"`
	TotalCents int64  `json:"total_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	Items      []ItemLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

type OrderCompletedPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

type PaymentCompletedPayload struct {
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method,omitempty"`
}
