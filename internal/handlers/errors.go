package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/imrishuroy/go-ebook-store/internal/bkash"
	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/orders"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

type apiError struct {
	status  int
	code    string
	message string
}

// classify maps domain errors to responses. Messages are safe to show to customers.
func classify(err error) apiError {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, orders.ErrNotFound), errors.Is(err, reviews.ErrNotFound):
		return apiError{http.StatusNotFound, "not_found", "The requested item was not found."}

	case errors.Is(err, reviews.ErrDuplicateReview):
		return apiError{http.StatusConflict, "duplicate_review", "You have already reviewed this product."}
	case errors.Is(err, orders.ErrOrderClosed):
		return apiError{http.StatusConflict, "order_closed", "This order is no longer awaiting payment."}
	case errors.Is(err, reviews.ErrStatusMismatch), errors.Is(err, catalog.ErrDuplicate):
		return apiError{http.StatusConflict, "conflict", "The item was changed by another request. Please retry."}

	case errors.Is(err, orders.ErrNotPaid):
		return apiError{http.StatusForbidden, "not_paid", "Payment for this order has not been confirmed."}
	case errors.Is(err, reviews.ErrForbidden):
		return apiError{http.StatusForbidden, "forbidden", "You can only change your own review."}

	case errors.Is(err, orders.ErrPaymentCancelled):
		return apiError{http.StatusBadRequest, "payment_cancelled", "The payment was cancelled."}
	case errors.Is(err, orders.ErrNoPayment):
		return apiError{http.StatusBadRequest, "no_payment", "This order has no payment yet."}
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, orders.ErrInvalidInput), errors.Is(err, reviews.ErrInvalidInput):
		return apiError{http.StatusBadRequest, "invalid_input", "Some of the submitted fields are invalid."}

	case errors.Is(err, orders.ErrPaymentFailed), errors.Is(err, bkash.ErrGateway), errors.Is(err, bkash.ErrNoToken):
		return apiError{http.StatusBadGateway, "payment_failed", "Payment could not be processed. Please try again."}
	}
	return apiError{http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again later."}
}

// respondError logs err and writes its classified response. Internal
// details never reach the client.
func respondError(c *gin.Context, h *log.Helper, err error) {
	e := classify(err)
	_ = c.Error(err)
	if e.status >= http.StatusInternalServerError {
		h.Errorw("msg", "request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(e.status, gin.H{"error": e.code, "message": e.message})
}
