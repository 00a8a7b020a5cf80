package events

const (
	TopicOrderCreated     = "order.created"
	TopicOrderCompleted   = "order.completed"
	TopicPaymentCompleted = "payment.completed"
)

// PartitionKey keeps every event for one order on the same partition so
// ordering per order is preserved.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
