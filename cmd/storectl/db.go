package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/database"
)

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := database.Connect(ctx, e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := database.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				printf(cmd.OutOrStdout(), "schema is up to date\n")
				return nil
			}
			for _, v := range applied {
				printf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}

// seeder is the part of *catalog.Service used by seed.
type seeder interface {
	CreateCategory(ctx context.Context, name, slug string) (*catalog.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*catalog.Category, error)
	ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.NewProduct) (*catalog.Product, error)
}

const (
	sampleCategoryName = "Programming"
	sampleCategorySlug = "programming"
	sampleTitle        = "Sample eBook - Getting Started"
	sampleLink         = "https://example.com/sample-ebook.pdf"
)

var samplePrice = decimal.RequireFromString("500.00")

func seedCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample category and ebook if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := database.Connect(ctx, e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := catalog.NewService(catalog.NewStore(pool), e.logger)
			return seed(ctx, svc, cmd.OutOrStdout())
		},
	}
}

// seed is safe to run repeatedly.
func seed(ctx context.Context, svc seeder, out io.Writer) error {
	cat, err := svc.CreateCategory(ctx, sampleCategoryName, sampleCategorySlug)
	switch {
	case errors.Is(err, catalog.ErrDuplicate):
		if cat, err = svc.GetCategoryBySlug(ctx, sampleCategorySlug); err != nil {
			return fmt.Errorf("load category %s: %w", sampleCategorySlug, err)
		}
	case err != nil:
		return fmt.Errorf("create category: %w", err)
	default:
		printf(out, "created category %s\n", cat.Slug)
	}

	existing, err := svc.ListProducts(ctx, catalog.ProductFilter{CategorySlug: cat.Slug})
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.Title == sampleTitle {
			printf(out, "sample product already present (id %d)\n", p.ID)
			return nil
		}
	}

	p, err := svc.CreateProduct(ctx, catalog.NewProduct{
		CategoryID:  cat.ID,
		Title:       sampleTitle,
		Author:      "Store Team",
		Description: "A sample ebook for trying out checkout and bKash payments.",
		Price:       samplePrice,
		ExternalURL: sampleLink,
	})
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	printf(out, "created product %d %q at %s\n", p.ID, p.Title, p.Price.StringFixed(2))
	return nil
}
