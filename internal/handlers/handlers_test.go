package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-ebook-store/internal/bkash"
	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

const testOrderID = "6f1c1c9e-2b0a-4d7a-9a53-2f43f1c7a001"

type testServer struct {
	router  *gin.Engine
	catalog *mockCatalog
	orders  *mockOrders
	reviews *mockReviews
	ledger  *memoryLedger
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	s := &testServer{
		catalog: &mockCatalog{},
		orders:  &mockOrders{},
		reviews: &mockReviews{},
		ledger:  newMemoryLedger(),
	}
	s.router = gin.New()
	RegisterRoutes(s.router, HandlerConfig{
		Catalog:     s.catalog,
		Orders:      s.orders,
		Reviews:     s.reviews,
		Idempotency: s.ledger,
		WebURL:      "https://shop.example",
		Operators:   gin.Accounts{"admin": "secret"},
		Logger:      log.NewStdLogger(io.Discard),
	})
	return s
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func pendingOrder() *orders.Order {
	return &orders.Order{
		ID:          testOrderID,
		ReferenceNo: "AB12CD34EF",
		ProductID:   1,
		Amount:      decimal.RequireFromString("500"),
		Status:      orders.StatusPending,
	}
}

const checkoutBody = `{"customer_name":"Rahim","email":"rahim@example.com","phone":"01712345678"}`

func TestHealth(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListProducts_CategoryFilter(t *testing.T) {
	s := newTestServer()
	var got catalog.ProductFilter
	s.catalog.ListProductsFunc = func(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
		got = f
		return nil, nil
	}

	w := s.do(http.MethodGet, "/api/products?category=fiction", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.CategorySlug != "fiction" {
		t.Fatalf("filter not passed, got %+v", got)
	}
	if !strings.Contains(w.Body.String(), `"products":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}

	s.catalog.ListProductsFunc = func(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
		return nil, catalog.ErrNotFound
	}
	if w := s.do(http.MethodGet, "/api/products?category=nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestProductDetail_IncludesReviewStats(t *testing.T) {
	s := newTestServer()
	s.catalog.GetProductFunc = func(ctx context.Context, id int64) (*catalog.Product, error) {
		return &catalog.Product{ID: id, Title: "Go", Price: decimal.RequireFromString("500"), FilePath: "secret/path.pdf"}, nil
	}
	s.reviews.StatsFunc = func(ctx context.Context, id int64) (*reviews.Stats, error) {
		st := reviews.Summarize(map[int]int{5: 1, 4: 1})
		return &st, nil
	}

	w := s.do(http.MethodGet, "/api/products/3", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["title"] != "Go" {
		t.Fatalf("unexpected body %v", body)
	}
	stats, ok := body["review_stats"].(map[string]interface{})
	if !ok || stats["average"].(float64) != 4.5 {
		t.Fatalf("unexpected stats %v", body["review_stats"])
	}
	if strings.Contains(w.Body.String(), "secret/path.pdf") {
		t.Fatal("file path must not be exposed")
	}

	if w := s.do(http.MethodGet, "/api/products/abc", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for bad id, got %d", w.Code)
	}
}

func TestPopularRoute(t *testing.T) {
	s := newTestServer()
	var gotLimit int
	s.catalog.PopularFunc = func(ctx context.Context, limit int) ([]catalog.Product, error) {
		gotLimit = limit
		return []catalog.Product{{ID: 1}}, nil
	}
	w := s.do(http.MethodGet, "/api/products/popular?limit=3", "", nil)
	if w.Code != http.StatusOK || gotLimit != 3 {
		t.Fatalf("expected popular route, got %d limit=%d", w.Code, gotLimit)
	}
}

func TestSearch(t *testing.T) {
	s := newTestServer()
	s.catalog.SearchFunc = func(ctx context.Context, q string) ([]catalog.Product, error) {
		if q != "golang" {
			t.Errorf("unexpected query %q", q)
		}
		return []catalog.Product{{ID: 1}, {ID: 2}}, nil
	}
	w := s.do(http.MethodGet, "/api/search?q=golang", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decode(t, w)["count"].(float64) != 2 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestCheckout_Created(t *testing.T) {
	s := newTestServer()
	s.orders.CreateFunc = func(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error) {
		if productID != 1 || c.Email != "rahim@example.com" {
			t.Errorf("unexpected input %d %+v", productID, c)
		}
		return pendingOrder(), nil
	}

	w := s.do(http.MethodPost, "/api/checkout/1", checkoutBody, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "/api/orders/"+testOrderID {
		t.Fatalf("unexpected location %q", w.Header().Get("Location"))
	}
	body := decode(t, w)
	if body["reference_no"] != "AB12CD34EF" || body["amount"] != "500.00" || body["status"] != "pending" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCheckout_ValidationError(t *testing.T) {
	s := newTestServer()
	called := false
	s.orders.CreateFunc = func(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error) {
		called = true
		return nil, nil
	}

	w := s.do(http.MethodPost, "/api/checkout/1", `{"customer_name":"","email":"bad","phone":"1"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if called {
		t.Fatal("service must not be called on invalid input")
	}
}

func TestCheckout_IdempotencyKeyReplaysResponse(t *testing.T) {
	s := newTestServer()
	calls := 0
	s.orders.CreateFunc = func(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error) {
		calls++
		return pendingOrder(), nil
	}
	headers := map[string]string{"Idempotency-Key": "k-1"}

	first := s.do(http.MethodPost, "/api/checkout/1", checkoutBody, headers)
	second := s.do(http.MethodPost, "/api/checkout/1", checkoutBody, headers)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if calls != 1 {
		t.Fatalf("expected a single order, got %d", calls)
	}
	if decode(t, second)["order_id"] != testOrderID {
		t.Fatalf("replayed body mismatch: %s", second.Body.String())
	}
}

func TestCheckout_IdempotencyKeyInProgress(t *testing.T) {
	s := newTestServer()
	_, _ = s.ledger.CreateIfNotExists(context.Background(), idempotency.CheckoutKey("k-2"), "")

	w := s.do(http.MethodPost, "/api/checkout/1", checkoutBody, map[string]string{"Idempotency-Key": "k-2"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
}

func TestCheckout_FailureReleasesKey(t *testing.T) {
	s := newTestServer()
	s.orders.CreateFunc = func(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error) {
		return nil, orders.ErrNotFound
	}

	w := s.do(http.MethodPost, "/api/checkout/9", checkoutBody, map[string]string{"Idempotency-Key": "k-3"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if len(s.ledger.released) != 1 || s.ledger.released[0] != idempotency.CheckoutKey("k-3") {
		t.Fatalf("expected key release, got %v", s.ledger.released)
	}
}

func TestInternalErrorIsGeneric(t *testing.T) {
	s := newTestServer()
	s.orders.GetFunc = func(ctx context.Context, id string) (*orders.Order, error) {
		return nil, errors.New("pq: connection refused on 10.0.0.5")
	}

	w := s.do(http.MethodGet, "/api/orders/"+testOrderID, "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Fatal("internal detail leaked")
	}
}

func TestOrderByReference(t *testing.T) {
	s := newTestServer()
	s.orders.GetByReferenceFunc = func(ctx context.Context, ref string) (*orders.Order, error) {
		if ref != "AB12CD34EF" {
			return nil, orders.ErrNotFound
		}
		return pendingOrder(), nil
	}
	if w := s.do(http.MethodGet, "/api/orders/ref/AB12CD34EF", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/orders/ref/NOPE", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreatePayment(t *testing.T) {
	s := newTestServer()
	s.orders.InitiatePaymentFunc = func(ctx context.Context, orderID string) (*orders.PaymentSession, error) {
		return &orders.PaymentSession{PaymentID: "PAY1", BkashURL: "https://bkash/pay"}, nil
	}

	w := s.do(http.MethodPost, "/api/payments/create", `{"order_id":"`+testOrderID+`"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["success"] != true || body["payment_id"] != "PAY1" || body["bkash_url"] != "https://bkash/pay" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreatePayment_GatewayFailure(t *testing.T) {
	s := newTestServer()
	s.orders.InitiatePaymentFunc = func(ctx context.Context, orderID string) (*orders.PaymentSession, error) {
		return nil, fmt.Errorf("%w: %w", orders.ErrPaymentFailed, bkash.ErrGateway)
	}

	w := s.do(http.MethodPost, "/api/payments/create", `{"order_id":"`+testOrderID+`"}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if decode(t, w)["success"] != false {
		t.Fatalf("expected success=false")
	}
}

func TestPaymentCallback_Redirects(t *testing.T) {
	s := newTestServer()
	s.orders.ConfirmPaymentFunc = func(ctx context.Context, paymentID, status string) (*orders.ConfirmResult, error) {
		switch paymentID {
		case "PAY-OK":
			return &orders.ConfirmResult{Order: pendingOrder()}, nil
		case "PAY-CANCEL":
			return nil, orders.ErrPaymentCancelled
		default:
			return nil, orders.ErrNotFound
		}
	}

	tests := []struct {
		query    string
		location string
	}{
		{"paymentID=PAY-OK&status=success", "https://shop.example/payment/success?order=" + testOrderID},
		{"paymentID=PAY-CANCEL&status=cancel", "https://shop.example/payment/failed?reason=cancelled"},
		{"paymentID=PAY-X&status=success", "https://shop.example/payment/failed?reason=unknown_payment"},
	}
	for _, tt := range tests {
		w := s.do(http.MethodGet, "/payment/callback?"+tt.query, "", nil)
		if w.Code != http.StatusFound {
			t.Fatalf("%s: expected 302, got %d", tt.query, w.Code)
		}
		if got := w.Header().Get("Location"); got != tt.location {
			t.Fatalf("%s: expected %s, got %s", tt.query, tt.location, got)
		}
	}
}

func TestDownload(t *testing.T) {
	s := newTestServer()
	s.orders.DownloadFunc = func(ctx context.Context, orderID string) (*orders.Deliverable, error) {
		if orderID == "unpaid" {
			return nil, orders.ErrNotPaid
		}
		return &orders.Deliverable{ExternalURL: "https://cdn.example/book.pdf"}, nil
	}

	if w := s.do(http.MethodGet, "/api/orders/unpaid/download", "", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w := s.do(http.MethodGet, "/api/orders/"+testOrderID+"/download", "", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://cdn.example/book.pdf" {
		t.Fatalf("expected redirect to link, got %d %s", w.Code, w.Header().Get("Location"))
	}
}

func TestSubmitReview_Duplicate(t *testing.T) {
	s := newTestServer()
	s.reviews.SubmitFunc = func(ctx context.Context, productID int64, sub reviews.Submission) (*reviews.Review, error) {
		return nil, reviews.ErrDuplicateReview
	}

	body := `{"name":"Karim","email":"x@y.com","rating":5,"title":"Great","comment":"Loved it"}`
	w := s.do(http.MethodPost, "/api/products/1/reviews", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if decode(t, w)["error"] != "duplicate_review" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestSubmitReview_InvalidRating(t *testing.T) {
	s := newTestServer()
	body := `{"name":"Karim","email":"x@y.com","rating":9,"title":"Great","comment":"Loved it"}`
	if w := s.do(http.MethodPost, "/api/products/1/reviews", body, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestEditReview_UsesReviewerHeader(t *testing.T) {
	s := newTestServer()
	s.reviews.EditFunc = func(ctx context.Context, id int64, email string, e reviews.Edit) (*reviews.Review, error) {
		if email != "author@example.com" {
			return nil, reviews.ErrForbidden
		}
		return &reviews.Review{ID: id, Status: reviews.StatusPending}, nil
	}
	body := `{"rating":3,"title":"ok","comment":"fine"}`

	if w := s.do(http.MethodPut, "/api/reviews/4", body, map[string]string{ReviewerHeader: "other@example.com"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := s.do(http.MethodPut, "/api/reviews/4", body, map[string]string{ReviewerHeader: "author@example.com"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestDeleteReview(t *testing.T) {
	s := newTestServer()
	s.reviews.DeleteFunc = func(ctx context.Context, id int64, email string) error { return nil }
	if w := s.do(http.MethodDelete, "/api/reviews/4", "", map[string]string{ReviewerHeader: "a@b.com"}); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestListReviews_Page(t *testing.T) {
	s := newTestServer()
	var gotPage int
	s.reviews.ListApprovedFunc = func(ctx context.Context, productID int64, page int) (*reviews.Page, error) {
		gotPage = page
		return &reviews.Page{Reviews: []reviews.Review{}, Page: page, PerPage: reviews.PageSize, HasNext: true, Total: 12}, nil
	}
	w := s.do(http.MethodGet, "/api/products/1/reviews?page=2", "", nil)
	if w.Code != http.StatusOK || gotPage != 2 {
		t.Fatalf("expected page 2, got %d (status %d)", gotPage, w.Code)
	}
	if decode(t, w)["has_next"] != true {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestAdmin_RequiresBasicAuth(t *testing.T) {
	s := newTestServer()
	if w := s.do(http.MethodGet, "/admin/reviews", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func adminRequest(s *testServer, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestAdmin_ApprovePassesOperator(t *testing.T) {
	s := newTestServer()
	var (
		gotIDs      []int64
		gotOperator string
	)
	s.reviews.ApproveFunc = func(ctx context.Context, ids []int64, operator string) (*reviews.ModerationResult, error) {
		gotIDs, gotOperator = ids, operator
		return &reviews.ModerationResult{Changed: []reviews.Review{{ID: 1}}, Skipped: []int64{2}}, nil
	}

	w := adminRequest(s, http.MethodPost, "/admin/reviews/approve", `{"ids":[1,2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotOperator != "admin" || len(gotIDs) != 2 {
		t.Fatalf("unexpected call ids=%v operator=%q", gotIDs, gotOperator)
	}
	if decode(t, w)["changed"].(float64) != 1 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestAdmin_ModerationValidation(t *testing.T) {
	s := newTestServer()
	if w := adminRequest(s, http.MethodPost, "/admin/reviews/reject", `{"ids":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAdmin_ListReviewsShowsEmail(t *testing.T) {
	s := newTestServer()
	s.reviews.ListForModerationFunc = func(ctx context.Context, status string) ([]reviews.Review, error) {
		return []reviews.Review{{ID: 1, Email: "x@y.com", Status: reviews.StatusPending}}, nil
	}
	w := adminRequest(s, http.MethodGet, "/admin/reviews?status=pending", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "x@y.com") {
		t.Fatalf("expected email in admin listing, got %d %s", w.Code, w.Body.String())
	}
}

func TestAdmin_Reconcile(t *testing.T) {
	s := newTestServer()
	s.orders.ReconcileFunc = func(ctx context.Context, orderID string) (*orders.ConfirmResult, error) {
		o := pendingOrder()
		o.Status = orders.StatusPaid
		return &orders.ConfirmResult{Order: o, TransactionStatus: "Completed"}, nil
	}
	w := adminRequest(s, http.MethodPost, "/admin/orders/"+testOrderID+"/reconcile", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "paid" || body["transaction_status"] != "Completed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAdmin_FindOrders(t *testing.T) {
	s := newTestServer()
	var got orders.FindQuery
	s.orders.FindFunc = func(ctx context.Context, q orders.FindQuery) ([]orders.Order, error) {
		got = q
		return []orders.Order{*pendingOrder()}, nil
	}
	w := adminRequest(s, http.MethodGet, "/admin/orders?email=a@b.com&trx_id=T1", "")
	if w.Code != http.StatusOK || got.Email != "a@b.com" || got.TrxID != "T1" {
		t.Fatalf("unexpected result %d %+v", w.Code, got)
	}
}

func TestAdminRoutesDisabledWithoutOperators(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, HandlerConfig{
		Catalog: &mockCatalog{},
		Orders:  &mockOrders{},
		Reviews: &mockReviews{},
		Logger:  log.NewStdLogger(io.Discard),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/reviews", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
