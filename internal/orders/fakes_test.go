package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-ebook-store/internal/bkash"
	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
)

// memoryRepo mirrors the conditional semantics of the SQL store.
type memoryRepo struct {
	mu            sync.Mutex
	orders        map[string]*Order
	dupReferences int // Create fails this many times with errDuplicateReference
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[string]*Order{}}
}

func (r *memoryRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dupReferences > 0 {
		r.dupReferences--
		return errDuplicateReference
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memoryRepo) GetByReference(ctx context.Context, ref string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ReferenceNo == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.BkashPaymentID == paymentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) SetPaymentID(ctx context.Context, id, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != StatusPending {
		return ErrStatusMismatch
	}
	o.BkashPaymentID = paymentID
	return nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != expected {
		return ErrStatusMismatch
	}
	o.Status = next
	return nil
}

func (r *memoryRepo) MarkPaid(ctx context.Context, id, trxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != StatusPending {
		return ErrStatusMismatch
	}
	o.Status = StatusPaid
	o.TrxID = trxID
	return nil
}

func (r *memoryRepo) IncrementDownloads(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != StatusPaid {
		return 0, ErrNotPaid
	}
	o.DownloadCount++
	return o.DownloadCount, nil
}

func (r *memoryRepo) Find(ctx context.Context, q FindQuery) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if (q.Email != "" && o.Email == q.Email) || (q.TrxID != "" && o.TrxID == q.TrxID) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memoryRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

type fakeProducts map[int64]*catalog.Product

func (f fakeProducts) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

type fakeGateway struct {
	mu           sync.Mutex
	createCalls  int
	executeCalls int
	queryCalls   int
	lastInvoice  string
	lastAmount   decimal.Decimal
	createErr    error
	executeErr   error
	onExecute    func()
	queryResp    *bkash.QueryPaymentResponse
}

func (g *fakeGateway) CreatePayment(ctx context.Context, amount decimal.Decimal, invoice, intent string) (*bkash.CreatePaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastInvoice = invoice
	g.lastAmount = amount
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &bkash.CreatePaymentResponse{
		StatusCode: bkash.StatusSuccess,
		PaymentID:  "PAY-" + invoice,
		BkashURL:   "https://sandbox.bka.sh/checkout?id=PAY-" + invoice,
	}, nil
}

func (g *fakeGateway) ExecutePayment(ctx context.Context, paymentID string) (*bkash.ExecutePaymentResponse, error) {
	g.mu.Lock()
	g.executeCalls++
	hook, err := g.onExecute, g.executeErr
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &bkash.ExecutePaymentResponse{
		StatusCode:        bkash.StatusSuccess,
		PaymentID:         paymentID,
		TrxID:             "TRX-" + paymentID,
		TransactionStatus: bkash.TransactionCompleted,
	}, nil
}

func (g *fakeGateway) QueryPayment(ctx context.Context, paymentID string) (*bkash.QueryPaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls++
	if g.queryResp == nil {
		return nil, errors.New("query not configured")
	}
	return g.queryResp, nil
}

func (g *fakeGateway) executions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.executeCalls
}

type memoryLedger struct {
	mu     sync.Mutex
	status map[string]string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{status: map[string]string{}}
}

func (l *memoryLedger) Claim(ctx context.Context, key, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.status[key]; ok {
		return false, nil
	}
	l.status[key] = "IN_PROGRESS"
	return true, nil
}

func (l *memoryLedger) MarkDone(ctx context.Context, key, body string, status int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status[key] = "DONE"
	return nil
}

func (l *memoryLedger) MarkFailed(ctx context.Context, key, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status[key] = "FAILED"
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.msgs {
		if m.Kind == kind {
			c++
		}
	}
	return c
}
