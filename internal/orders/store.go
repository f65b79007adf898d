package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/imrishuroy/go-ebook-store/internal/database"
)

const referenceConstraint = "orders_reference_no_key"

var errDuplicateReference = errors.New("duplicate reference number")

// Repository is the order persistence used by the Service. Status changes
// are conditional on the expected current status so concurrent callers
// cannot both win a transition.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByReference(ctx context.Context, ref string) (*Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	SetPaymentID(ctx context.Context, id, paymentID string) error
	UpdateStatus(ctx context.Context, id, expectedStatus, newStatus string) error
	MarkPaid(ctx context.Context, id, trxID string) error
	IncrementDownloads(ctx context.Context, id string) (int, error)
	Find(ctx context.Context, q FindQuery) ([]Order, error)
}

// Store is the Postgres Repository.
type Store struct {
	db      database.DBTX
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db, nowFunc: time.Now}
}

const orderColumns = `id, reference_no, product_id, customer_name, email, phone, amount, status,
	COALESCE(bkash_payment_id, ''), COALESCE(trx_id, ''), download_count, created_at, updated_at`

// Create inserts o. A clash on reference_no returns errDuplicateReference so
// the caller can pick another one.
func (s *Store) Create(ctx context.Context, o *Order) error {
	now := s.nowFunc().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (id, reference_no, product_id, customer_name, email, phone, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.ReferenceNo, o.ProductID, o.CustomerName, o.Email, o.Phone, o.Amount, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, referenceConstraint) {
			return errDuplicateReference
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Order, error) {
	return s.getBy(ctx, "id", id)
}

func (s *Store) GetByReference(ctx context.Context, ref string) (*Order, error) {
	return s.getBy(ctx, "reference_no", strings.ToUpper(ref))
}

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	return s.getBy(ctx, "bkash_payment_id", paymentID)
}

// column is always one of the literals above.
func (s *Store) getBy(ctx context.Context, column, value string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order by %s: %w", column, err)
	}
	return o, nil
}

// SetPaymentID records the gateway payment id on a pending order.
func (s *Store) SetPaymentID(ctx context.Context, id, paymentID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET bkash_payment_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, paymentID, s.nowFunc().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set payment id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, id, expectedStatus, newStatus string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, expectedStatus, newStatus, s.nowFunc().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// MarkPaid moves a pending order to paid and stores the transaction id.
func (s *Store) MarkPaid(ctx context.Context, id, trxID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET status = 'paid', trx_id = NULLIF($2, ''), updated_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, trxID, s.nowFunc().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// IncrementDownloads bumps the counter of a paid order and returns the new value.
func (s *Store) IncrementDownloads(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		UPDATE orders SET download_count = download_count + 1
		WHERE id = $1 AND status = 'paid'
		RETURNING download_count`, id,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotPaid
		}
		return 0, fmt.Errorf("failed to increment downloads: %w", err)
	}
	return n, nil
}

// Find returns orders matching any of the set fields, newest first.
func (s *Store) Find(ctx context.Context, q FindQuery) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	add("LOWER(email) = LOWER($%d)", q.Email)
	add("bkash_payment_id = $%d", q.PaymentID)
	add("trx_id = $%d", q.TrxID)
	add("reference_no = UPPER($%d)", q.ReferenceNo)
	if len(conds) == 0 {
		return nil, fmt.Errorf("%w: empty search", ErrInvalidInput)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+strings.Join(conds, " OR ")+` ORDER BY created_at DESC LIMIT 100`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.ReferenceNo,
		&o.ProductID,
		&o.CustomerName,
		&o.Email,
		&o.Phone,
		&o.Amount,
		&o.Status,
		&o.BkashPaymentID,
		&o.TrxID,
		&o.DownloadCount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
