package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
	"github.com/imrishuroy/go-ebook-store/internal/validation"
)

// adminReview exposes the reviewer email, which public payloads hide.
type adminReview struct {
	reviews.Review
	Email string `json:"email"`
}

// RegisterAdminRoutes registers operator routes behind basic auth.
func RegisterAdminRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := newHelper(cfg.Logger)
	if len(cfg.Operators) == 0 {
		h.Warn("no operator credentials configured, admin routes disabled")
		return
	}
	v := validation.New()
	admin := r.Group("/admin", gin.BasicAuth(cfg.Operators))

	admin.GET("/reviews", func(c *gin.Context) {
		list, err := cfg.Reviews.ListForModeration(c.Request.Context(), c.Query("status"))
		if err != nil {
			respondError(c, h, err)
			return
		}
		out := make([]adminReview, 0, len(list))
		for _, rv := range list {
			out = append(out, adminReview{Review: rv, Email: rv.Email})
		}
		c.JSON(http.StatusOK, gin.H{"reviews": out})
	})

	moderate := func(action string, apply func(ctx context.Context, ids []int64, operator string) (*reviews.ModerationResult, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			var req validation.ModerationRequest
			if err := validation.BindAndValidate(c, &req, v); err != nil {
				return
			}
			operator := c.GetString(gin.AuthUserKey)
			res, err := apply(c.Request.Context(), req.IDs, operator)
			if err != nil {
				respondError(c, h, err)
				return
			}
			h.Infow("msg", "moderation", "action", action, "operator", operator, "changed", len(res.Changed))
			c.JSON(http.StatusOK, gin.H{
				"action":  action,
				"changed": len(res.Changed),
				"skipped": res.Skipped,
			})
		}
	}
	admin.POST("/reviews/approve", moderate("approve", cfg.Reviews.Approve))
	admin.POST("/reviews/reject", moderate("reject", func(ctx context.Context, ids []int64, _ string) (*reviews.ModerationResult, error) {
		return cfg.Reviews.Reject(ctx, ids)
	}))
	admin.POST("/reviews/reset", moderate("reset", func(ctx context.Context, ids []int64, _ string) (*reviews.ModerationResult, error) {
		return cfg.Reviews.ResetPending(ctx, ids)
	}))

	admin.GET("/orders", func(c *gin.Context) {
		list, err := cfg.Orders.Find(c.Request.Context(), orders.FindQuery{
			Email:       c.Query("email"),
			PaymentID:   c.Query("payment_id"),
			TrxID:       c.Query("trx_id"),
			ReferenceNo: c.Query("reference"),
		})
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": nonNil(list)})
	})

	admin.POST("/orders/:id/reconcile", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
		defer cancel()

		res, err := cfg.Orders.Reconcile(ctx, c.Param("id"))
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"order_id":           res.Order.ID,
			"status":             res.Order.Status,
			"already_paid":       res.AlreadyPaid,
			"transaction_status": res.TransactionStatus,
		})
	})
}
