package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-ebook-store/internal/catalog"
	"github.com/imrishuroy/go-ebook-store/internal/metrics"
	"github.com/imrishuroy/go-ebook-store/internal/notify"
	"github.com/imrishuroy/go-ebook-store/internal/validation"
)

const moderationQueueLimit = 200

// Products checks the reviewed product exists; *catalog.Service satisfies it.
type Products interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

type Service struct {
	repo      Repository
	products  Products
	notifier  notify.Notifier
	metrics   metrics.Recorder
	validator *validatorv10.Validate
	log       *log.Helper
	nowFunc   func() time.Time
}

// NewService wires review moderation. notifier and recorder may be nil.
func NewService(repo Repository, products Products, notifier notify.Notifier, recorder metrics.Recorder, logger log.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		products:  products,
		notifier:  notifier,
		metrics:   recorder,
		validator: validation.New(),
		log:       log.NewHelper(log.With(logger, "module", "reviews")),
		nowFunc:   time.Now,
	}
}

// Submit creates a pending review. One review per product and email.
func (s *Service) Submit(ctx context.Context, productID int64, sub Submission) (*Review, error) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = normalizeEmail(sub.Email)
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Comment = strings.TrimSpace(sub.Comment)
	if err := s.validator.Struct(sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, validation.FieldErrors(err))
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return nil, err
	}

	exists, err := s.repo.ExistsForEmail(ctx, productID, sub.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateReview
	}

	now := s.nowFunc().UTC()
	r := &Review{
		ProductID: productID,
		Name:      sub.Name,
		Email:     sub.Email,
		Rating:    sub.Rating,
		Title:     sub.Title,
		Comment:   sub.Comment,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// the unique index decides between concurrent submissions
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	s.log.Infow("msg", "review submitted", "review_id", r.ID, "product_id", productID)
	s.metrics.Count(ctx, metrics.ReviewSubmitted, 1)
	return r, nil
}

// Edit replaces the content of the author's review and returns it to moderation.
func (s *Service) Edit(ctx context.Context, id int64, authorEmail string, e Edit) (*Review, error) {
	e.Title = strings.TrimSpace(e.Title)
	e.Comment = strings.TrimSpace(e.Comment)
	if err := s.validator.Struct(e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, validation.FieldErrors(err))
	}

	r, err := s.authored(ctx, id, authorEmail)
	if err != nil {
		return nil, err
	}
	prev := r.Status
	ApplyEdit(r, e, s.nowFunc().UTC())
	if err := s.repo.Save(ctx, r, prev); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the author's review.
func (s *Service) Delete(ctx context.Context, id int64, authorEmail string) error {
	if _, err := s.authored(ctx, id, authorEmail); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) authored(ctx context.Context, id int64, authorEmail string) (*Review, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if authorEmail == "" || normalizeEmail(authorEmail) != normalizeEmail(r.Email) {
		return nil, ErrForbidden
	}
	return r, nil
}

// Approve publishes the pending reviews among ids, then notifies their authors.
func (s *Service) Approve(ctx context.Context, ids []int64, operator string) (*ModerationResult, error) {
	res, err := s.moderate(ctx, ids, func(r *Review, now time.Time) bool {
		return Approve(r, operator, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("msg", "reviews approved", "operator", operator, "changed", len(res.Changed), "skipped", len(res.Skipped))
	s.notifyApproved(ctx, res.Changed)
	return res, nil
}

func (s *Service) Reject(ctx context.Context, ids []int64) (*ModerationResult, error) {
	return s.moderate(ctx, ids, Reject)
}

func (s *Service) ResetPending(ctx context.Context, ids []int64) (*ModerationResult, error) {
	return s.moderate(ctx, ids, ResetPending)
}

// moderate applies transition to each review and stores the ones it changed.
// Unknown ids, no-op transitions and reviews changed concurrently are skipped.
func (s *Service) moderate(ctx context.Context, ids []int64, transition func(*Review, time.Time) bool) (*ModerationResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no review ids", ErrInvalidInput)
	}
	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]Review, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	res := &ModerationResult{Changed: []Review{}, Skipped: []int64{}}
	now := s.nowFunc().UTC()
	seen := map[int64]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		r, ok := byID[id]
		if !ok {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		prev := r.Status
		if !transition(&r, now) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if err := s.repo.Save(ctx, &r, prev); err != nil {
			if errors.Is(err, ErrStatusMismatch) {
				res.Skipped = append(res.Skipped, id)
				continue
			}
			return nil, err
		}
		res.Changed = append(res.Changed, r)
	}

	if n := len(res.Changed); n > 0 {
		s.metrics.Count(ctx, metrics.ReviewsModerated, float64(n))
	}
	return res, nil
}

func (s *Service) notifyApproved(ctx context.Context, approved []Review) {
	titles := map[int64]string{}
	for _, r := range approved {
		title, ok := titles[r.ProductID]
		if !ok {
			if p, err := s.products.GetProduct(ctx, r.ProductID); err == nil {
				title = p.Title
			}
			titles[r.ProductID] = title
		}
		err := s.notifier.Notify(ctx, notify.Message{
			Kind:         notify.KindReviewApproved,
			To:           r.Email,
			Name:         r.Name,
			ProductID:    r.ProductID,
			ProductTitle: title,
			ReviewTitle:  r.Title,
		})
		if err != nil {
			s.log.Warnf("review approved notification for %d: %v", r.ID, err)
		}
	}
}

// ListApproved returns a page (1-based) of approved reviews, newest first.
func (s *Service) ListApproved(ctx context.Context, productID int64, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	list, total, err := s.repo.ListApproved(ctx, productID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Review{}
	}
	return &Page{
		Reviews: list,
		Page:    page,
		PerPage: PageSize,
		Total:   total,
		HasNext: page*PageSize < total,
	}, nil
}

// Stats aggregates approved reviews for a product.
func (s *Service) Stats(ctx context.Context, productID int64) (*Stats, error) {
	counts, err := s.repo.CountApprovedByRating(ctx, productID)
	if err != nil {
		return nil, err
	}
	st := Summarize(counts)
	return &st, nil
}

// ListForModeration is the operator queue for status (default pending).
func (s *Service) ListForModeration(ctx context.Context, status string) ([]Review, error) {
	switch status {
	case "":
		status = StatusPending
	case StatusPending, StatusApproved, StatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	list, err := s.repo.ListByStatus(ctx, status, moderationQueueLimit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Review{}
	}
	return list, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
