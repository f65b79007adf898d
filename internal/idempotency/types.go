package idempotency

import "time"

// Status values for ledger entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Key prefixes. Checkout keys come from the client's Idempotency-Key header,
// delivery keys guard the one-time "order paid" notification and mail keys
// stop the worker from sending the same queue message twice.
const (
	checkoutPrefix = "checkout:"
	deliveryPrefix = "delivery:"
	mailPrefix     = "mail:"
)

// CheckoutKey namespaces a client supplied Idempotency-Key.
func CheckoutKey(clientKey string) string { return checkoutPrefix + clientKey }

// DeliveryKey is the ledger key claimed once per paid order.
func DeliveryKey(orderID string) string { return deliveryPrefix + orderID }

// MailKey is claimed by the worker before sending the mail for one queue message.
func MailKey(messageID string) string { return mailPrefix + messageID }

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}
