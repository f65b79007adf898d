package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/imrishuroy/go-ebook-store/internal/database"
)

const uniqueProductEmail = "reviews_product_email_key"

// Repository is the review persistence used by the Service.
type Repository interface {
	Create(ctx context.Context, r *Review) error
	Get(ctx context.Context, id int64) (*Review, error)
	GetMany(ctx context.Context, ids []int64) ([]Review, error)
	ExistsForEmail(ctx context.Context, productID int64, email string) (bool, error)
	// Save writes content, status and approval fields if the stored status
	// still equals expectedStatus; otherwise ErrStatusMismatch.
	Save(ctx context.Context, r *Review, expectedStatus string) error
	Delete(ctx context.Context, id int64) error
	ListApproved(ctx context.Context, productID int64, limit, offset int) ([]Review, int, error)
	CountApprovedByRating(ctx context.Context, productID int64) (map[int]int, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]Review, error)
}

// Store is the Postgres Repository.
type Store struct {
	db database.DBTX
}

func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

const reviewColumns = `id, product_id, name, email, rating, title, comment, status,
	approved_at, COALESCE(approved_by, ''), created_at, updated_at`

func (s *Store) Create(ctx context.Context, r *Review) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO reviews (product_id, name, email, rating, title, comment, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		r.ProductID, r.Name, r.Email, r.Rating, r.Title, r.Comment, r.Status, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		if database.IsUniqueViolation(err, uniqueProductEmail) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Review, error) {
	r, err := scanReview(s.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review %d: %w", id, err)
	}
	return r, nil
}

func (s *Store) GetMany(ctx context.Context, ids []int64) ([]Review, error) {
	return s.queryReviews(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *Store) ExistsForEmail(ctx context.Context, productID int64, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reviews WHERE product_id = $1 AND email = $2)`,
		productID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return exists, nil
}

func (s *Store) Save(ctx context.Context, r *Review, expectedStatus string) error {
	var approvedBy *string
	if r.ApprovedBy != "" {
		approvedBy = &r.ApprovedBy
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE reviews
		SET rating = $3, title = $4, comment = $5, status = $6, approved_at = $7, approved_by = $8, updated_at = $9
		WHERE id = $1 AND status = $2`,
		r.ID, expectedStatus, r.Rating, r.Title, r.Comment, r.Status, r.ApprovedAt, approvedBy, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save review %d: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusMismatch
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListApproved returns one page of approved reviews, newest first, and the
// total number of approved reviews for the product.
func (s *Store) ListApproved(ctx context.Context, productID int64, limit, offset int) ([]Review, int, error) {
	var total int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = $1 AND status = 'approved'`, productID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}
	list, err := s.queryReviews(ctx, `SELECT `+reviewColumns+` FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) CountApprovedByRating(ctx context.Context, productID int64) (map[int]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rating, COUNT(*) FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		GROUP BY rating`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer rows.Close()

	counts := map[int]int{}
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rating count: %w", err)
		}
		counts[rating] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return counts, nil
}

// ListByStatus is the operator queue, oldest first so reviews are handled in order.
func (s *Store) ListByStatus(ctx context.Context, status string, limit int) ([]Review, error) {
	return s.queryReviews(ctx, `SELECT `+reviewColumns+` FROM reviews
		WHERE status = $1 ORDER BY created_at ASC, id ASC LIMIT $2`, status, limit)
}

func (s *Store) queryReviews(ctx context.Context, sql string, args ...any) ([]Review, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return out, nil
}

func scanReview(row pgx.Row) (*Review, error) {
	var (
		r          Review
		approvedAt *time.Time
	)
	err := row.Scan(
		&r.ID,
		&r.ProductID,
		&r.Name,
		&r.Email,
		&r.Rating,
		&r.Title,
		&r.Comment,
		&r.Status,
		&approvedAt,
		&r.ApprovedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ApprovedAt = approvedAt
	return &r, nil
}
