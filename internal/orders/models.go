package orders

import "time"

// ItemRequest is one requested line of a placement: which part, how many.
type ItemRequest struct {
	PartID string `json:"part_id"`
	Qty    int    `json:"quantity"`
}

// LineItem is owned by its order. TotalCents is frozen at placement time
// from the part's price then; later catalog price changes never touch it.
type LineItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	PartID     string `json:"part_id"`
	Qty        int    `json:"quantity"`
	TotalCents int64  `json:"total_cents"`
}

type Order struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TotalCents is always derived from the line items; it is never stored as a
// column that could drift.
func (o *Order) TotalCents() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.TotalCents
	}
	return sum
}
