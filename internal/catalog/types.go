// Package catalog holds categories and products and the read paths the storefront needs.
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrInvalidInput = errors.New("catalog: invalid input")
	ErrDuplicate    = errors.New("catalog: duplicate slug")
)

// Category groups products; Slug is the URL-safe unique key.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Product is a purchasable ebook. Exactly one of FilePath and ExternalURL is set.
type Product struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	FilePath    string          `json:"-"`
	ExternalURL string          `json:"-"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HasFile reports whether the deliverable is a stored file rather than a link.
func (p *Product) HasFile() bool { return p.FilePath != "" }

// ProductFilter narrows ListProducts. An empty CategorySlug lists everything.
type ProductFilter struct {
	CategorySlug string
}

// NewProduct is the input for CreateProduct.
type NewProduct struct {
	CategoryID  int64
	Title       string
	Author      string
	Description string
	Price       decimal.Decimal
	FilePath    string
	ExternalURL string
	Thumbnail   string
}
