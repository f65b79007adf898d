package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
)

const DefaultPopularLimit = 8

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Service exposes catalog reads and the few writes used by the operator CLI.
type Service struct {
	repo Repository
	log  *log.Helper
}

// NewService returns a catalog Service.
func NewService(repo Repository, logger log.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.NewHelper(log.With(logger, "module", "catalog")),
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	return s.repo.CategoryBySlug(ctx, slug)
}

// ListProducts lists products newest first. An unknown category slug is ErrNotFound.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var categoryID int64
	if filter.CategorySlug != "" {
		c, err := s.repo.CategoryBySlug(ctx, filter.CategorySlug)
		if err != nil {
			return nil, err
		}
		categoryID = c.ID
	}
	return s.repo.ListProducts(ctx, categoryID)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.GetProduct(ctx, id)
}

// Search does a case-insensitive substring match over title, author and
// description. A blank query returns no results.
func (s *Service) Search(ctx context.Context, q string) ([]Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Product{}, nil
	}
	products, err := s.repo.SearchProducts(ctx, "%"+escapeLike(q)+"%")
	if err != nil {
		return nil, err
	}
	s.log.Debugf("search %q matched %d products", q, len(products))
	return products, nil
}

// Popular returns the best selling products. limit <= 0 uses DefaultPopularLimit.
func (s *Service) Popular(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	return s.repo.PopularProducts(ctx, limit)
}

func (s *Service) CreateCategory(ctx context.Context, name, slug string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name required", ErrInvalidInput)
	}
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: bad slug %q", ErrInvalidInput, slug)
	}
	c := &Category{Name: name, Slug: slug}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CreateProduct(ctx context.Context, in NewProduct) (*Product, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Author) == "" {
		return nil, fmt.Errorf("%w: title and author required", ErrInvalidInput)
	}
	if !in.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if (in.FilePath == "") == (in.ExternalURL == "") {
		return nil, fmt.Errorf("%w: exactly one of file path and external url is required", ErrInvalidInput)
	}
	if in.CategoryID <= 0 {
		return nil, fmt.Errorf("%w: category required", ErrInvalidInput)
	}

	p := &Product{
		CategoryID:  in.CategoryID,
		Title:       strings.TrimSpace(in.Title),
		Author:      strings.TrimSpace(in.Author),
		Description: in.Description,
		Price:       in.Price.Round(2),
		FilePath:    in.FilePath,
		ExternalURL: in.ExternalURL,
		Thumbnail:   in.Thumbnail,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.log.Infof("created product %d %q", p.ID, p.Title)
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
