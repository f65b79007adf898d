// Package notify carries customer notifications from the API to the mail worker.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message kinds.
const (
	KindOrderPlaced    = "order_placed"
	KindOrderPaid      = "order_paid"
	KindReviewApproved = "review_approved"
)

var ErrInvalidMessage = errors.New("notify: invalid message")

// Message is the queue payload. Fields unused by a kind are left empty.
type Message struct {
	Kind         string    `json:"kind"`
	To           string    `json:"to"`
	Name         string    `json:"name"`
	OrderID      string    `json:"order_id,omitempty"`
	ReferenceNo  string    `json:"reference_no,omitempty"`
	ProductID    int64     `json:"product_id,omitempty"`
	ProductTitle string    `json:"product_title,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	TrxID        string    `json:"trx_id,omitempty"`
	DownloadURL  string    `json:"download_url,omitempty"`
	ReviewTitle  string    `json:"review_title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the fields every kind needs.
func (m Message) Validate() error {
	switch m.Kind {
	case KindOrderPlaced, KindOrderPaid:
		if m.OrderID == "" {
			return fmt.Errorf("%w: %s without order id", ErrInvalidMessage, m.Kind)
		}
	case KindReviewApproved:
		if m.ProductID == 0 {
			return fmt.Errorf("%w: %s without product id", ErrInvalidMessage, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if m.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	return nil
}

// Notifier hands a message off for delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
