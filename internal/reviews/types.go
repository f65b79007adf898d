// Package reviews implements customer reviews and their operator moderation.
package reviews

import (
	"errors"
	"time"
)

// Review statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// PageSize is the number of approved reviews per public page.
const PageSize = 5

var (
	ErrNotFound        = errors.New("review not found")
	ErrInvalidInput    = errors.New("invalid review input")
	ErrDuplicateReview = errors.New("you have already reviewed this product")
	ErrForbidden       = errors.New("only the author may change this review")
	ErrStatusMismatch  = errors.New("review status changed concurrently")
)

type Review struct {
	ID         int64      `json:"id"`
	ProductID  int64      `json:"product_id"`
	Name       string     `json:"name"`
	Email      string     `json:"-"`
	Rating     int        `json:"rating"`
	Title      string     `json:"title"`
	Comment    string     `json:"comment"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Submission is a new review from a customer.
type Submission struct {
	Name    string `validate:"required,max=100"`
	Email   string `validate:"required,email,max=254"`
	Rating  int    `validate:"min=1,max=5"`
	Title   string `validate:"required,max=200"`
	Comment string `validate:"required"`
}

// Edit replaces the content of an existing review.
type Edit struct {
	Rating  int    `validate:"min=1,max=5"`
	Title   string `validate:"required,max=200"`
	Comment string `validate:"required"`
}

// Page is one page of approved reviews.
type Page struct {
	Reviews []Review `json:"reviews"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Total   int      `json:"total"`
	HasNext bool     `json:"has_next"`
}

// Stats aggregates approved reviews only.
type Stats struct {
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"distribution"` // star -> count, keys 1..5
}

// ModerationResult lists the reviews a bulk action changed and the ids it left alone.
type ModerationResult struct {
	Changed []Review `json:"changed"`
	Skipped []int64  `json:"skipped"`
}
