package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-ebook-store/internal/reviews"
	"github.com/imrishuroy/go-ebook-store/internal/validation"
)

// ReviewerHeader carries the email of the customer editing or deleting a review.
const ReviewerHeader = "X-Reviewer-Email"

// RegisterReviewRoutes registers the public review routes.
func RegisterReviewRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	h := newHelper(cfg.Logger)
	api := r.Group("/api")

	api.GET("/products/:id/reviews", func(c *gin.Context) {
		productID, ok := int64Param(c, "id")
		if !ok {
			respondError(c, h, reviews.ErrNotFound)
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		p, err := cfg.Reviews.ListApproved(c.Request.Context(), productID, page)
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})

	api.GET("/products/:id/reviews/stats", func(c *gin.Context) {
		productID, ok := int64Param(c, "id")
		if !ok {
			respondError(c, h, reviews.ErrNotFound)
			return
		}
		st, err := cfg.Reviews.Stats(c.Request.Context(), productID)
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	api.POST("/products/:id/reviews", func(c *gin.Context) {
		productID, ok := int64Param(c, "id")
		if !ok {
			respondError(c, h, reviews.ErrNotFound)
			return
		}
		var req validation.ReviewRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		rv, err := cfg.Reviews.Submit(c.Request.Context(), productID, reviews.Submission{
			Name:    req.Name,
			Email:   req.Email,
			Rating:  req.Rating,
			Title:   req.Title,
			Comment: req.Comment,
		})
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"review":  rv,
			"message": "Thank you! Your review will appear after moderation.",
		})
	})

	api.PUT("/reviews/:id", func(c *gin.Context) {
		id, ok := int64Param(c, "id")
		if !ok {
			respondError(c, h, reviews.ErrNotFound)
			return
		}
		var req validation.ReviewEditRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		rv, err := cfg.Reviews.Edit(c.Request.Context(), id, c.GetHeader(ReviewerHeader), reviews.Edit{
			Rating:  req.Rating,
			Title:   req.Title,
			Comment: req.Comment,
		})
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"review": rv})
	})

	api.DELETE("/reviews/:id", func(c *gin.Context) {
		id, ok := int64Param(c, "id")
		if !ok {
			respondError(c, h, reviews.ErrNotFound)
			return
		}
		if err := cfg.Reviews.Delete(c.Request.Context(), id, c.GetHeader(ReviewerHeader)); err != nil {
			respondError(c, h, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
