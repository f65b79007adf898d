package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/validation"
)

// RegisterPaymentRoutes registers payment creation and the gateway callback.
func RegisterPaymentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	h := newHelper(cfg.Logger)

	r.POST("/api/payments/create", func(c *gin.Context) {
		var req validation.CreatePaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		sess, err := cfg.Orders.InitiatePayment(c.Request.Context(), req.OrderID)
		if err != nil {
			e := classify(err)
			if e.status >= http.StatusInternalServerError {
				h.Errorw("msg", "create payment failed", "order_id", req.OrderID, "error", err.Error())
			}
			c.JSON(e.status, gin.H{"success": false, "error": e.code, "message": e.message})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"payment_id": sess.PaymentID,
			"bkash_url":  sess.BkashURL,
		})
	})

	// bKash redirects the customer here with paymentID and status.
	r.GET("/payment/callback", func(c *gin.Context) {
		paymentID := c.Query("paymentID")
		status := c.Query("status")

		res, err := cfg.Orders.ConfirmPayment(c.Request.Context(), paymentID, status)
		if err != nil {
			reason := "failed"
			switch {
			case errors.Is(err, orders.ErrPaymentCancelled):
				reason = "cancelled"
			case errors.Is(err, orders.ErrNotFound):
				reason = "unknown_payment"
			}
			h.Warnw("msg", "payment callback failed", "payment_id", paymentID, "status", status, "error", err.Error())
			c.Redirect(http.StatusFound, cfg.WebURL+"/payment/failed?reason="+reason)
			return
		}
		c.Redirect(http.StatusFound, cfg.WebURL+"/payment/success?order="+url.QueryEscape(res.Order.ID))
	})
}
