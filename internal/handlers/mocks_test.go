package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

var errMockUnset = errors.New("mock: not configured")

type mockCatalog struct {
	ListCategoriesFunc func(ctx context.Context) ([]catalog.Category, error)
	ListProductsFunc   func(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error)
	GetProductFunc     func(ctx context.Context, id int64) (*catalog.Product, error)
	SearchFunc         func(ctx context.Context, q string) ([]catalog.Product, error)
	PopularFunc        func(ctx context.Context, limit int) ([]catalog.Product, error)
}

func (m *mockCatalog) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	if m.ListCategoriesFunc != nil {
		return m.ListCategoriesFunc(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx, f)
	}
	return nil, nil
}

func (m *mockCatalog) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, id)
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) Search(ctx context.Context, q string) ([]catalog.Product, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockCatalog) Popular(ctx context.Context, limit int) ([]catalog.Product, error) {
	if m.PopularFunc != nil {
		return m.PopularFunc(ctx, limit)
	}
	return nil, nil
}

type mockOrders struct {
	CreateFunc          func(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error)
	GetFunc             func(ctx context.Context, id string) (*orders.Order, error)
	GetByReferenceFunc  func(ctx context.Context, ref string) (*orders.Order, error)
	FindFunc            func(ctx context.Context, q orders.FindQuery) ([]orders.Order, error)
	InitiatePaymentFunc func(ctx context.Context, orderID string) (*orders.PaymentSession, error)
	ConfirmPaymentFunc  func(ctx context.Context, paymentID, status string) (*orders.ConfirmResult, error)
	ReconcileFunc       func(ctx context.Context, orderID string) (*orders.ConfirmResult, error)
	DownloadFunc        func(ctx context.Context, orderID string) (*orders.Deliverable, error)
}

func (m *mockOrders) Create(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, productID, c)
	}
	return nil, errMockUnset
}

func (m *mockOrders) Get(ctx context.Context, id string) (*orders.Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, orders.ErrNotFound
}

func (m *mockOrders) GetByReference(ctx context.Context, ref string) (*orders.Order, error) {
	if m.GetByReferenceFunc != nil {
		return m.GetByReferenceFunc(ctx, ref)
	}
	return nil, orders.ErrNotFound
}

func (m *mockOrders) Find(ctx context.Context, q orders.FindQuery) ([]orders.Order, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockOrders) InitiatePayment(ctx context.Context, orderID string) (*orders.PaymentSession, error) {
	if m.InitiatePaymentFunc != nil {
		return m.InitiatePaymentFunc(ctx, orderID)
	}
	return nil, errMockUnset
}

func (m *mockOrders) ConfirmPayment(ctx context.Context, paymentID, status string) (*orders.ConfirmResult, error) {
	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, paymentID, status)
	}
	return nil, errMockUnset
}

func (m *mockOrders) Reconcile(ctx context.Context, orderID string) (*orders.ConfirmResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, orderID)
	}
	return nil, errMockUnset
}

func (m *mockOrders) Download(ctx context.Context, orderID string) (*orders.Deliverable, error) {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, orderID)
	}
	return nil, errMockUnset
}

type mockReviews struct {
	SubmitFunc            func(ctx context.Context, productID int64, sub reviews.Submission) (*reviews.Review, error)
	EditFunc              func(ctx context.Context, id int64, email string, e reviews.Edit) (*reviews.Review, error)
	DeleteFunc            func(ctx context.Context, id int64, email string) error
	ApproveFunc           func(ctx context.Context, ids []int64, operator string) (*reviews.ModerationResult, error)
	RejectFunc            func(ctx context.Context, ids []int64) (*reviews.ModerationResult, error)
	ResetPendingFunc      func(ctx context.Context, ids []int64) (*reviews.ModerationResult, error)
	ListApprovedFunc      func(ctx context.Context, productID int64, page int) (*reviews.Page, error)
	StatsFunc             func(ctx context.Context, productID int64) (*reviews.Stats, error)
	ListForModerationFunc func(ctx context.Context, status string) ([]reviews.Review, error)
}

func (m *mockReviews) Submit(ctx context.Context, productID int64, sub reviews.Submission) (*reviews.Review, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, productID, sub)
	}
	return nil, errMockUnset
}

func (m *mockReviews) Edit(ctx context.Context, id int64, email string, e reviews.Edit) (*reviews.Review, error) {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, id, email, e)
	}
	return nil, errMockUnset
}

func (m *mockReviews) Delete(ctx context.Context, id int64, email string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, email)
	}
	return errMockUnset
}

func (m *mockReviews) Approve(ctx context.Context, ids []int64, operator string) (*reviews.ModerationResult, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, ids, operator)
	}
	return &reviews.ModerationResult{}, nil
}

func (m *mockReviews) Reject(ctx context.Context, ids []int64) (*reviews.ModerationResult, error) {
	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, ids)
	}
	return &reviews.ModerationResult{}, nil
}

func (m *mockReviews) ResetPending(ctx context.Context, ids []int64) (*reviews.ModerationResult, error) {
	if m.ResetPendingFunc != nil {
		return m.ResetPendingFunc(ctx, ids)
	}
	return &reviews.ModerationResult{}, nil
}

func (m *mockReviews) ListApproved(ctx context.Context, productID int64, page int) (*reviews.Page, error) {
	if m.ListApprovedFunc != nil {
		return m.ListApprovedFunc(ctx, productID, page)
	}
	return &reviews.Page{Reviews: []reviews.Review{}, Page: page, PerPage: reviews.PageSize}, nil
}

func (m *mockReviews) Stats(ctx context.Context, productID int64) (*reviews.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, productID)
	}
	st := reviews.Summarize(nil)
	return &st, nil
}

func (m *mockReviews) ListForModeration(ctx context.Context, status string) ([]reviews.Review, error) {
	if m.ListForModerationFunc != nil {
		return m.ListForModerationFunc(ctx, status)
	}
	return nil, nil
}

// memoryLedger keeps idempotency records in a map.
type memoryLedger struct {
	mu       sync.Mutex
	records  map[string]*idempotency.Record
	released []string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: map[string]*idempotency.Record{}}
}

func (l *memoryLedger) CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[key]; ok {
		return false, nil
	}
	l.records[key] = &idempotency.Record{IdempotencyKey: key, Status: idempotency.StatusInProgress, OrderID: orderID}
	return true, nil
}

func (l *memoryLedger) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (l *memoryLedger) MarkDone(ctx context.Context, key, body string, status int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return errors.New("missing record")
	}
	rec.Status = idempotency.StatusDone
	rec.ResponseBody = body
	rec.ResponseStatus = status
	return nil
}

func (l *memoryLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, key)
	if rec, ok := l.records[key]; ok && rec.Status != idempotency.StatusDone {
		delete(l.records, key)
	}
	return nil
}
