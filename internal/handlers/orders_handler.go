package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/idempotency"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/validation"
)

type checkoutResponse struct {
	OrderID     string `json:"order_id"`
	ReferenceNo string `json:"reference_no"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
}

// RegisterOrdersRoutes registers checkout, order detail and download.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	h := newHelper(cfg.Logger)
	api := r.Group("/api")

	api.POST("/checkout/:product_id", func(c *gin.Context) {
		ctx := c.Request.Context()

		productID, ok := int64Param(c, "product_id")
		if !ok {
			respondError(c, h, catalog.ErrNotFound)
			return
		}

		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		// the key is optional; with it, a retried submit replays the first response
		var ledgerKey string
		if clientKey := c.GetHeader("Idempotency-Key"); clientKey != "" && cfg.Idempotency != nil {
			ledgerKey = idempotency.CheckoutKey(clientKey)
			created, err := cfg.Idempotency.CreateIfNotExists(ctx, ledgerKey, "")
			if err != nil {
				respondError(c, h, err)
				return
			}
			if !created {
				replayCheckout(c, h, cfg.Idempotency, ledgerKey)
				return
			}
		}

		order, err := cfg.Orders.Create(ctx, productID, orders.Customer{
			Name:  req.CustomerName,
			Email: req.Email,
			Phone: req.Phone,
		})
		if err != nil {
			if ledgerKey != "" {
				if rErr := cfg.Idempotency.Release(ctx, ledgerKey); rErr != nil {
					h.Warnf("release idempotency key: %v", rErr)
				}
			}
			respondError(c, h, err)
			return
		}

		resp := checkoutResponse{
			OrderID:     order.ID,
			ReferenceNo: order.ReferenceNo,
			Status:      order.Status,
			Amount:      order.Amount.StringFixed(2),
		}
		if ledgerKey != "" {
			body, _ := json.Marshal(resp)
			if err := cfg.Idempotency.MarkDone(ctx, ledgerKey, string(body), http.StatusCreated); err != nil {
				h.Warnf("mark idempotency key done: %v", err)
			}
		}

		c.Header("Location", "/api/orders/"+order.ID)
		c.JSON(http.StatusCreated, resp)
	})

	api.GET("/orders/:id", func(c *gin.Context) {
		o, err := cfg.Orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, o)
	})

	api.GET("/orders/ref/:ref", func(c *gin.Context) {
		o, err := cfg.Orders.GetByReference(c.Request.Context(), c.Param("ref"))
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, o)
	})

	api.GET("/orders/:id/download", func(c *gin.Context) {
		d, err := cfg.Orders.Download(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, h, err)
			return
		}
		if d.FilePath != "" {
			c.FileAttachment(d.FilePath, d.FileName)
			return
		}
		c.Redirect(http.StatusFound, d.ExternalURL)
	})
}

func replayCheckout(c *gin.Context, h *log.Helper, ledger CheckoutLedger, key string) {
	rec, err := ledger.Get(c.Request.Context(), key)
	if err != nil || rec == nil {
		h.Warnf("idempotency record %s unreadable: %v", key, err)
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_conflict", "message": "Please retry the request."})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_conflict", "message": "Please retry with a new key."})
	}
}
