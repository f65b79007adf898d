package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

// CatalogService is implemented by *catalog.Service.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	Search(ctx context.Context, q string) ([]catalog.Product, error)
	Popular(ctx context.Context, limit int) ([]catalog.Product, error)
}

// OrderService is implemented by *orders.Service.
type OrderService interface {
	Create(ctx context.Context, productID int64, c orders.Customer) (*orders.Order, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	GetByReference(ctx context.Context, ref string) (*orders.Order, error)
	Find(ctx context.Context, q orders.FindQuery) ([]orders.Order, error)
	InitiatePayment(ctx context.Context, orderID string) (*orders.PaymentSession, error)
	ConfirmPayment(ctx context.Context, paymentID, callbackStatus string) (*orders.ConfirmResult, error)
	Reconcile(ctx context.Context, orderID string) (*orders.ConfirmResult, error)
	Download(ctx context.Context, orderID string) (*orders.Deliverable, error)
}

// ReviewService is implemented by *reviews.Service.
type ReviewService interface {
	Submit(ctx context.Context, productID int64, sub reviews.Submission) (*reviews.Review, error)
	Edit(ctx context.Context, id int64, authorEmail string, e reviews.Edit) (*reviews.Review, error)
	Delete(ctx context.Context, id int64, authorEmail string) error
	Approve(ctx context.Context, ids []int64, operator string) (*reviews.ModerationResult, error)
	Reject(ctx context.Context, ids []int64) (*reviews.ModerationResult, error)
	ResetPending(ctx context.Context, ids []int64) (*reviews.ModerationResult, error)
	ListApproved(ctx context.Context, productID int64, page int) (*reviews.Page, error)
	Stats(ctx context.Context, productID int64) (*reviews.Stats, error)
	ListForModeration(ctx context.Context, status string) ([]reviews.Review, error)
}

// CheckoutLedger is implemented by *idempotency.Store.
type CheckoutLedger interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	Release(ctx context.Context, key string) error
}

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	Catalog     CatalogService
	Orders      OrderService
	Reviews     ReviewService
	Idempotency CheckoutLedger // optional; without it Idempotency-Key is ignored
	WebURL      string
	Operators   gin.Accounts // basic auth for /admin; admin routes are off when empty
	Logger      log.Logger
}

// RegisterRoutes mounts every route on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterCatalogRoutes(r, cfg)
	RegisterOrdersRoutes(r, cfg)
	RegisterPaymentRoutes(r, cfg)
	RegisterReviewRoutes(r, cfg)
	RegisterAdminRoutes(r, cfg)
}

func newHelper(logger log.Logger) *log.Helper {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return log.NewHelper(log.With(logger, "module", "handlers"))
}
