package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)

// Callback statuses the gateway appends to the callback URL.
const (
	CallbackSuccess = "success"
	CallbackFailure = "failure"
	CallbackCancel  = "cancel"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrInvalidInput     = errors.New("invalid order input")
	ErrStatusMismatch   = errors.New("status mismatch/conditional failed")
	ErrOrderClosed      = errors.New("order is not awaiting payment")
	ErrPaymentFailed    = errors.New("payment could not be completed")
	ErrPaymentCancelled = errors.New("payment cancelled by customer")
	ErrNotPaid          = errors.New("order is not paid")
	ErrNoPayment        = errors.New("order has no payment to reconcile")
)

// Order is a single-product purchase.
type Order struct {
	ID             string          `json:"id"`
	ReferenceNo    string          `json:"reference_no"`
	ProductID      int64           `json:"product_id"`
	CustomerName   string          `json:"customer_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"` // pending | paid | failed
	BkashPaymentID string          `json:"bkash_payment_id,omitempty"`
	TrxID          string          `json:"trx_id,omitempty"`
	DownloadCount  int             `json:"download_count"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Customer is the contact captured at checkout.
type Customer struct {
	Name  string `validate:"required,max=100"`
	Email string `validate:"required,email,max=254"`
	Phone string `validate:"required,phone"`
}

// PaymentSession is what the customer needs to continue on the gateway page.
type PaymentSession struct {
	PaymentID string `json:"payment_id"`
	BkashURL  string `json:"bkash_url"`
}

// ConfirmResult describes the outcome of a confirm or reconcile call.
// AlreadyPaid is set when an earlier request completed the payment.
type ConfirmResult struct {
	Order             *Order
	AlreadyPaid       bool
	TransactionStatus string
}

// Deliverable is what a paid order downloads: a file under the media root or a link.
type Deliverable struct {
	FilePath    string
	FileName    string
	ExternalURL string
}

// FindQuery matches orders for operator lookups. Empty fields are ignored;
// at least one must be set.
type FindQuery struct {
	Email       string
	PaymentID   string
	TrxID       string
	ReferenceNo string
}
