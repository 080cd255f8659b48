package repository

import (
	"context"
	"time"

	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

// categoryRepo is the concrete implementation of CategoryRepository
type categoryRepo struct {
	db *database.DB
}

// NewCategoryRepo creates a new category repository
func NewCategoryRepo(db *database.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

// Create inserts a category
func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Slug, c.Description, c.CreatedAt, time.Now())
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

// CreateSubcategory inserts a subcategory
func (r *categoryRepo) CreateSubcategory(ctx context.Context, s *models.Subcategory) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO subcategories (id, category_id, name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.CategoryID, s.Name, s.Slug, s.CreatedAt, time.Now())
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

// List returns all categories with their subcategories, ordered by name
func (r *categoryRepo) List(ctx context.Context) ([]*models.Category, error) {
	exec := r.db.Executor(ctx)

	rows, err := exec.QueryContext(ctx,
		"SELECT id, name, slug, description, created_at, updated_at FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.Category
	byID := make(map[string]*models.Category)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := exec.QueryContext(ctx,
		"SELECT id, category_id, name, slug, created_at, updated_at FROM subcategories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	for subRows.Next() {
		var s models.Subcategory
		if err := subRows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Slug, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if parent, ok := byID[s.CategoryID]; ok {
			parent.Subcategories = append(parent.Subcategories, s)
		}
	}
	return categories, subRows.Err()
}

// GetAllIDs retrieves all category IDs (for FK validation cache)
func (r *categoryRepo) GetAllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, "SELECT id FROM categories")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a category with the given ID exists
func (r *categoryRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)", id).Scan(&exists)
	return exists, err
}
