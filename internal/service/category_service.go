package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/slug"
	"github.com/magazine-cms/internal/validation"
	"github.com/rs/zerolog"
)

type categoryService struct {
	repos *repository.Repositories
	now   func() time.Time
	log   zerolog.Logger
}

func newCategoryService(repos *repository.Repositories, now func() time.Time, log zerolog.Logger) *categoryService {
	return &categoryService{
		repos: repos,
		now:   now,
		log:   log.With().Str("service", "category").Logger(),
	}
}

// Create stores a category and its subcategories in one transaction
func (s *categoryService) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	if err := validationError(validation.NewValidator().ValidateCategory(c)); err != nil {
		return nil, err
	}

	now := s.now()
	c.ID = uuid.New().String()
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = slug.Make(c.Name)
	c.CreatedAt = now
	c.UpdatedAt = now

	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Category.Create(ctx, c); err != nil {
			return conflictOnDuplicate(err, "category", c.Slug)
		}
		for i := range c.Subcategories {
			s.prepareSubcategory(&c.Subcategories[i], c.ID, now)
			if err := s.repos.Category.CreateSubcategory(ctx, &c.Subcategories[i]); err != nil {
				return conflictOnDuplicate(err, "subcategory", c.Subcategories[i].Slug)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("category_id", c.ID).Int("subcategories", len(c.Subcategories)).Msg("Category created")
	return c, nil
}

// AddSubcategories attaches new subcategories to an existing category in one transaction
func (s *categoryService) AddSubcategories(ctx context.Context, categoryID string, subs []models.Subcategory) ([]models.Subcategory, error) {
	if err := checkID("category", categoryID); err != nil {
		return nil, err
	}
	if err := validationError(validation.NewValidator().ValidateCategory(&models.Category{Name: "-", Subcategories: subs})); err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: at least one subcategory is required", ErrValidation)
	}

	now := s.now()
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.repos.Category.Exists(ctx, categoryID)
		if err != nil {
			return err
		}
		if !exists {
			return notFound("category", categoryID)
		}
		for i := range subs {
			s.prepareSubcategory(&subs[i], categoryID, now)
			if err := s.repos.Category.CreateSubcategory(ctx, &subs[i]); err != nil {
				return conflictOnDuplicate(err, "subcategory", subs[i].Slug)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// List returns all categories with subcategories
func (s *categoryService) List(ctx context.Context) ([]*models.Category, error) {
	return s.repos.Category.List(ctx)
}

func (s *categoryService) prepareSubcategory(sub *models.Subcategory, categoryID string, now time.Time) {
	sub.ID = uuid.New().String()
	sub.CategoryID = categoryID
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Slug = slug.Make(sub.Name)
	sub.CreatedAt = now
	sub.UpdatedAt = now
}

func conflictOnDuplicate(err error, kind, slugValue string) error {
	if errors.Is(err, repository.ErrDuplicateSlug) {
		return fmt.Errorf("%w: %s slug %q already exists", ErrPersistenceConflict, kind, slugValue)
	}
	return fmt.Errorf("create %s: %w", kind, err)
}
