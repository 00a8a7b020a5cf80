package payments

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	// StatusFailed is a reserved terminal state (e.g. session expiry sweep);
	// the reconciliation core never sets it.
	StatusFailed Status = "failed"
)

// Recognized metadata keys. Anything else in the map is provider-specific
// audit data carried as-is; nothing in the workflows branches on it.
const (
	MetaSessionID     = "session_id"
	MetaEventID       = "event_id"
	MetaPaymentStatus = "payment_status"
)

// Payment is one attempt to settle an order. An order accumulates attempts
// over time; the latest one is the current candidate for reconciliation.
type Payment struct {
	ID            string            `json:"id"`
	OrderID       string            `json:"order_id"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	SessionID     string            `json:"session_id"`     // provider checkout session ref
	TransactionID string            `json:"transaction_id"` // provider payment-intent ref, unique per attempt
	Method        string            `json:"payment_method,omitempty"`
	Status        Status            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
