package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/reviews"
)

// RegisterCatalogRoutes registers the read-only storefront routes.
func RegisterCatalogRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := newHelper(cfg.Logger)
	api := r.Group("/api")

	api.GET("/categories", func(c *gin.Context) {
		list, err := cfg.Catalog.ListCategories(c.Request.Context())
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": nonNil(list)})
	})

	api.GET("/products", func(c *gin.Context) {
		list, err := cfg.Catalog.ListProducts(c.Request.Context(), catalog.ProductFilter{CategorySlug: c.Query("category")})
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": nonNil(list)})
	})

	api.GET("/products/popular", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		list, err := cfg.Catalog.Popular(c.Request.Context(), limit)
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": nonNil(list)})
	})

	api.GET("/products/:id", func(c *gin.Context) {
		id, ok := int64Param(c, "id")
		if !ok {
			respondError(c, h, catalog.ErrNotFound)
			return
		}
		ctx := c.Request.Context()
		p, err := cfg.Catalog.GetProduct(ctx, id)
		if err != nil {
			respondError(c, h, err)
			return
		}
		stats, err := cfg.Reviews.Stats(ctx, id)
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, productDetail{Product: p, Reviews: stats})
	})

	api.GET("/search", func(c *gin.Context) {
		q := c.Query("q")
		list, err := cfg.Catalog.Search(c.Request.Context(), q)
		if err != nil {
			respondError(c, h, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": q, "count": len(list), "products": nonNil(list)})
	})
}

type productDetail struct {
	*catalog.Product
	Reviews *reviews.Stats `json:"review_stats"`
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
