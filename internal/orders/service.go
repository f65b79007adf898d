package orders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-ebook-store/internal/bkash"
	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/metrics"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
	"github.com/imrishuroy/go-ebook-store/internal/validation"
)

const maxReferenceAttempts = 5

// Products resolves the product being bought; *catalog.Service satisfies it.
type Products interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

// Gateway is the subset of *bkash.Client the lifecycle needs.
type Gateway interface {
	CreatePayment(ctx context.Context, amount decimal.Decimal, invoiceNumber, intent string) (*bkash.CreatePaymentResponse, error)
	ExecutePayment(ctx context.Context, paymentID string) (*bkash.ExecutePaymentResponse, error)
	QueryPayment(ctx context.Context, paymentID string) (*bkash.QueryPaymentResponse, error)
}

// Ledger records one-time side effects; *idempotency.Store satisfies it.
type Ledger interface {
	Claim(ctx context.Context, key, orderID string) (bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// ServiceConfig holds the deployment values the lifecycle needs.
type ServiceConfig struct {
	WebURL    string // public site root, used for download links in mail
	MediaRoot string // directory product files live under
}

// Service drives an order from checkout through payment to download.
type Service struct {
	repo      Repository
	products  Products
	gateway   Gateway
	ledger    Ledger
	notifier  notify.Notifier
	metrics   metrics.Recorder
	validator *validatorv10.Validate
	cfg       ServiceConfig
	log       *log.Helper
}

// NewService wires the order lifecycle. notifier and recorder may be nil.
func NewService(repo Repository, products Products, gateway Gateway, ledger Ledger,
	notifier notify.Notifier, recorder metrics.Recorder, cfg ServiceConfig, logger log.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		products:  products,
		gateway:   gateway,
		ledger:    ledger,
		notifier:  notifier,
		metrics:   recorder,
		validator: validation.New(),
		cfg:       cfg,
		log:       log.NewHelper(log.With(logger, "module", "orders")),
	}
}

// Create places a pending order for productID at the product's current price.
func (s *Service) Create(ctx context.Context, productID int64, c Customer) (*Order, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = validation.NormalizePhone(c.Phone)
	if err := s.validator.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, validation.FieldErrors(err))
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return nil, err
	}

	o := &Order{
		ID:           uuid.NewString(),
		ProductID:    product.ID,
		CustomerName: c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Amount:       product.Price,
		Status:       StatusPending,
	}
	for attempt := 1; ; attempt++ {
		if o.ReferenceNo, err = newReference(); err != nil {
			return nil, err
		}
		err = s.repo.Create(ctx, o)
		if !errors.Is(err, errDuplicateReference) || attempt == maxReferenceAttempts {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Infow("msg", "order created", "order_id", o.ID, "reference_no", o.ReferenceNo, "product_id", o.ProductID)
	s.metrics.Count(ctx, metrics.OrderCreated, 1)

	if err := s.notifier.Notify(ctx, notify.Message{
		Kind:         notify.KindOrderPlaced,
		To:           o.Email,
		Name:         o.CustomerName,
		OrderID:      o.ID,
		ReferenceNo:  o.ReferenceNo,
		ProductID:    product.ID,
		ProductTitle: product.Title,
		Amount:       o.Amount.StringFixed(2),
	}); err != nil {
		s.log.Warnf("order placed notification for %s: %v", o.ID, err)
	}
	return o, nil
}

// Get returns an order by id. Malformed ids are reported as not found.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByReference(ctx context.Context, ref string) (*Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByReference(ctx, ref)
}

// Find is the operator lookup by email, payment id, transaction id or reference.
func (s *Service) Find(ctx context.Context, q FindQuery) ([]Order, error) {
	return s.repo.Find(ctx, q)
}

// InitiatePayment opens a gateway payment for a pending order, using the
// order id as the merchant invoice number.
func (s *Service) InitiatePayment(ctx context.Context, orderID string) (*PaymentSession, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrOrderClosed
	}

	resp, err := s.gateway.CreatePayment(ctx, o.Amount, o.ID, "")
	if err != nil {
		s.log.Errorf("create payment for order %s: %v", o.ID, err)
		s.metrics.Count(ctx, metrics.GatewayFailure, 1, "Operation", "create")
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	if err := s.repo.SetPaymentID(ctx, o.ID, resp.PaymentID); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, ErrOrderClosed
		}
		return nil, err
	}

	s.log.Infow("msg", "payment initiated", "order_id", o.ID, "payment_id", resp.PaymentID)
	s.metrics.Count(ctx, metrics.PaymentInitiated, 1)
	return &PaymentSession{PaymentID: resp.PaymentID, BkashURL: resp.BkashURL}, nil
}

// ConfirmPayment handles the gateway callback. It is safe to call any number
// of times, concurrently, for the same payment: only one call moves the order
// to paid and triggers delivery.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID, callbackStatus string) (*ConfirmResult, error) {
	if paymentID == "" {
		return nil, ErrNotFound
	}
	o, err := s.repo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case StatusPaid:
		return &ConfirmResult{Order: o, AlreadyPaid: true}, nil
	case StatusFailed:
		return nil, ErrOrderClosed
	}

	switch strings.ToLower(callbackStatus) {
	case CallbackCancel, CallbackFailure:
		return s.cancel(ctx, o, callbackStatus)
	}

	exec, err := s.gateway.ExecutePayment(ctx, paymentID)
	if err != nil {
		s.log.Errorf("execute payment %s for order %s: %v", paymentID, o.ID, err)
		s.metrics.Count(ctx, metrics.GatewayFailure, 1, "Operation", "execute")

		current, getErr := s.repo.Get(ctx, o.ID)
		if getErr == nil && current.Status == StatusPaid {
			return &ConfirmResult{Order: current, AlreadyPaid: true}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	return s.markPaid(ctx, o, exec.TrxID, exec.TransactionStatus)
}

// cancel handles a cancel or failure callback. The callback carries no
// proof, so bKash is asked first: a settled payment is completed, an open one
// leaves the order pending, and only a closed one fails the order.
func (s *Service) cancel(ctx context.Context, o *Order, callbackStatus string) (*ConfirmResult, error) {
	q, err := s.gateway.QueryPayment(ctx, o.BkashPaymentID)
	if err != nil {
		s.log.Warnf("query payment %s after %s callback: %v", o.BkashPaymentID, callbackStatus, err)
		s.metrics.Count(ctx, metrics.GatewayFailure, 1, "Operation", "query")
		return nil, ErrPaymentCancelled
	}
	if q.Completed() {
		return s.markPaid(ctx, o, q.TrxID, q.TransactionStatus)
	}
	if !q.Closed() {
		s.log.Infow("msg", "cancel callback for open payment, order left pending",
			"order_id", o.ID, "callback_status", callbackStatus, "transaction_status", q.TransactionStatus)
		return nil, ErrPaymentCancelled
	}

	err = s.repo.UpdateStatus(ctx, o.ID, StatusPending, StatusFailed)
	if errors.Is(err, ErrStatusMismatch) {
		current, getErr := s.repo.Get(ctx, o.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusPaid {
			return &ConfirmResult{Order: current, AlreadyPaid: true}, nil
		}
		return nil, ErrPaymentCancelled
	}
	if err != nil {
		return nil, err
	}
	s.log.Infow("msg", "payment cancelled", "order_id", o.ID, "transaction_status", q.TransactionStatus)
	s.metrics.Count(ctx, metrics.PaymentCancelled, 1, "Status", strings.ToLower(callbackStatus))
	return nil, ErrPaymentCancelled
}

// markPaid applies the pending -> paid transition. The conditional update
// picks a single winner; everyone else reports AlreadyPaid.
func (s *Service) markPaid(ctx context.Context, o *Order, trxID, txStatus string) (*ConfirmResult, error) {
	err := s.repo.MarkPaid(ctx, o.ID, trxID)
	if errors.Is(err, ErrStatusMismatch) {
		current, getErr := s.repo.Get(ctx, o.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == StatusPaid {
			return &ConfirmResult{Order: current, AlreadyPaid: true, TransactionStatus: txStatus}, nil
		}
		return nil, ErrOrderClosed
	}
	if err != nil {
		return nil, err
	}

	o.Status = StatusPaid
	o.TrxID = trxID
	s.log.Infow("msg", "payment confirmed", "order_id", o.ID, "trx_id", trxID)
	s.metrics.Count(ctx, metrics.PaymentConfirmed, 1)

	s.deliver(ctx, o)
	return &ConfirmResult{Order: o, TransactionStatus: txStatus}, nil
}

// deliver sends the "order paid" notification at most once per order.
// Failures are logged and recorded in the ledger; the payment stands.
func (s *Service) deliver(ctx context.Context, o *Order) {
	key := idempotency.DeliveryKey(o.ID)
	claimed, err := s.ledger.Claim(ctx, key, o.ID)
	if err != nil {
		s.log.Errorf("claim delivery for order %s: %v", o.ID, err)
		return
	}
	if !claimed {
		s.log.Warnf("delivery for order %s already claimed", o.ID)
		s.metrics.Count(ctx, metrics.DeliverySkipped, 1)
		return
	}

	msg := notify.Message{
		Kind:        notify.KindOrderPaid,
		To:          o.Email,
		Name:        o.CustomerName,
		OrderID:     o.ID,
		ReferenceNo: o.ReferenceNo,
		ProductID:   o.ProductID,
		Amount:      o.Amount.StringFixed(2),
		TrxID:       o.TrxID,
		DownloadURL: s.DownloadURL(o.ID),
	}
	if p, err := s.products.GetProduct(ctx, o.ProductID); err == nil {
		msg.ProductTitle = p.Title
	}

	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Errorf("order paid notification for %s: %v", o.ID, err)
		if mErr := s.ledger.MarkFailed(ctx, key, err.Error()); mErr != nil {
			s.log.Errorf("mark delivery failed for %s: %v", o.ID, mErr)
		}
		return
	}
	if err := s.ledger.MarkDone(ctx, key, notify.KindOrderPaid, 200); err != nil {
		s.log.Errorf("mark delivery done for %s: %v", o.ID, err)
	}
}

// Reconcile asks the gateway about a pending order's payment and completes it
// when the gateway reports it settled.
func (s *Service) Reconcile(ctx context.Context, orderID string) (*ConfirmResult, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case StatusPaid:
		return &ConfirmResult{Order: o, AlreadyPaid: true}, nil
	case StatusFailed:
		return nil, ErrOrderClosed
	}
	if o.BkashPaymentID == "" {
		return nil, ErrNoPayment
	}

	q, err := s.gateway.QueryPayment(ctx, o.BkashPaymentID)
	if err != nil {
		s.metrics.Count(ctx, metrics.GatewayFailure, 1, "Operation", "query")
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	if !q.Completed() {
		s.log.Infow("msg", "reconcile: payment not settled", "order_id", o.ID, "transaction_status", q.TransactionStatus)
		return &ConfirmResult{Order: o, TransactionStatus: q.TransactionStatus}, nil
	}
	return s.markPaid(ctx, o, q.TrxID, q.TransactionStatus)
}

// Download authorizes a download of a paid order and counts it.
func (s *Service) Download(ctx context.Context, orderID string) (*Deliverable, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPaid {
		return nil, ErrNotPaid
	}

	p, err := s.products.GetProduct(ctx, o.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, o.ProductID)
		}
		return nil, err
	}

	d := &Deliverable{ExternalURL: p.ExternalURL}
	if p.HasFile() {
		d.FilePath = s.resolveMedia(p.FilePath)
		d.FileName = path.Base(filepath.ToSlash(p.FilePath))
		d.ExternalURL = ""
		// Only downloads that can be served are counted.
		if fi, err := os.Stat(d.FilePath); err != nil || fi.IsDir() {
			s.log.Warnf("ebook file for order %s unavailable: %s", o.ID, d.FilePath)
			return nil, fmt.Errorf("%w: file for product %d", ErrNotFound, p.ID)
		}
	}

	n, err := s.repo.IncrementDownloads(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.log.Infow("msg", "download", "order_id", o.ID, "count", n)
	s.metrics.Count(ctx, metrics.DownloadsCompleted, 1)
	return d, nil
}

// DownloadURL is the customer-facing link for a paid order.
func (s *Service) DownloadURL(orderID string) string {
	return s.cfg.WebURL + "/api/orders/" + orderID + "/download"
}

// resolveMedia keeps rel inside the media root.
func (s *Service) resolveMedia(rel string) string {
	clean := filepath.Clean(string(filepath.Separator) + rel)
	return filepath.Join(s.cfg.MediaRoot, clean)
}
