package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/imrishuroy/go-ebook-store/internal/database"
)

// Repository is the persistence the Service depends on.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	ListProducts(ctx context.Context, categoryID int64) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	SearchProducts(ctx context.Context, pattern string) ([]Product, error)
	PopularProducts(ctx context.Context, limit int) ([]Product, error)
	CreateProduct(ctx context.Context, p *Product) error
}

// Store is the Postgres Repository.
type Store struct {
	db database.DBTX
}

// NewStore returns a Store over db.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

const productColumns = `p.id, p.category_id, p.title, p.author, p.description, p.price,
	p.file_path, p.external_url, p.thumbnail, p.created_at`

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return out, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	var c Category
	err := s.db.QueryRow(ctx, `SELECT id, name, slug FROM categories WHERE slug = $1`, slug).
		Scan(&c.ID, &c.Name, &c.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category %q: %w", slug, err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Slug,
	).Scan(&c.ID)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", ErrDuplicate, c.Slug)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// ListProducts returns products newest first; categoryID 0 means all categories.
func (s *Store) ListProducts(ctx context.Context, categoryID int64) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products p`
	args := []any{}
	if categoryID != 0 {
		sql += ` WHERE p.category_id = $1`
		args = append(args, categoryID)
	}
	sql += ` ORDER BY p.created_at DESC, p.id DESC`
	return s.queryProducts(ctx, sql, args...)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by id %d: %w", id, err)
	}
	return p, nil
}

// SearchProducts matches pattern (an ILIKE pattern with wildcards already
// escaped) against title, author and description.
func (s *Store) SearchProducts(ctx context.Context, pattern string) ([]Product, error) {
	sql := `SELECT DISTINCT ` + productColumns + ` FROM products p
		WHERE p.title ILIKE $1 ESCAPE '\' OR p.author ILIKE $1 ESCAPE '\' OR p.description ILIKE $1 ESCAPE '\'
		ORDER BY p.created_at DESC, p.id DESC`
	return s.queryProducts(ctx, sql, pattern)
}

// PopularProducts ranks by number of paid orders, newest first on ties.
func (s *Store) PopularProducts(ctx context.Context, limit int) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products p
		LEFT JOIN orders o ON o.product_id = p.id AND o.status = 'paid'
		GROUP BY p.id
		ORDER BY COUNT(o.id) DESC, p.created_at DESC, p.id DESC
		LIMIT $1`
	return s.queryProducts(ctx, sql, limit)
}

func (s *Store) CreateProduct(ctx context.Context, p *Product) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO products (category_id, title, author, description, price, file_path, external_url, thumbnail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		p.CategoryID, p.Title, p.Author, p.Description, p.Price, p.FilePath, p.ExternalURL, p.Thumbnail,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *Store) queryProducts(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return out, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Title,
		&p.Author,
		&p.Description,
		&p.Price,
		&p.FilePath,
		&p.ExternalURL,
		&p.Thumbnail,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
