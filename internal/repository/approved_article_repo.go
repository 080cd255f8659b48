package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

var approvedColumns = []string{
	"id", "title", "slug", "content", "meta_title", "meta_description", "featured_image",
	"category_id", "subcategory_id", "user_id", "ai_generated", "original_article_id",
	"status", "published_at", "created_at", "updated_at",
}

// approvedArticleRepo is the concrete implementation of ApprovedArticleRepository
type approvedArticleRepo struct {
	db *database.DB
}

// NewApprovedArticleRepo creates a new approved article repository
func NewApprovedArticleRepo(db *database.DB) ApprovedArticleRepository {
	return &approvedArticleRepo{db: db}
}

// InsertIfSlugFree inserts the article unless its slug is taken. A taken slug
// reports false without aborting the surrounding transaction.
func (r *approvedArticleRepo) InsertIfSlugFree(ctx context.Context, a *models.ApprovedArticle) (bool, error) {
	query := `
		INSERT INTO approved_articles (id, title, slug, content, meta_title, meta_description,
			featured_image, category_id, subcategory_id, user_id, ai_generated, original_article_id,
			status, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (slug) DO NOTHING
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		a.ID, a.Title, a.Slug, a.Content, a.MetaTitle, a.MetaDescription, a.FeaturedImage,
		nullID(a.CategoryID), nullID(a.SubcategoryID), a.UserID, a.AIGenerated,
		nullID(a.OriginalArticleID), a.Status, a.PublishedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// Update writes every editable column of an approved article
func (r *approvedArticleRepo) Update(ctx context.Context, a *models.ApprovedArticle) error {
	query := `
		UPDATE approved_articles SET
			title = $1, slug = $2, content = $3, meta_title = $4, meta_description = $5,
			featured_image = $6, category_id = $7, subcategory_id = $8, ai_generated = $9,
			status = $10, published_at = $11, updated_at = $12
		WHERE id = $13
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		a.Title, a.Slug, a.Content, a.MetaTitle, a.MetaDescription, a.FeaturedImage,
		nullID(a.CategoryID), nullID(a.SubcategoryID), a.AIGenerated,
		a.Status, a.PublishedAt, a.UpdatedAt, a.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	return err
}

// GetByID retrieves an approved article by ID
func (r *approvedArticleRepo) GetByID(ctx context.Context, id string) (*models.ApprovedArticle, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetBySlug retrieves an approved article by slug
func (r *approvedArticleRepo) GetBySlug(ctx context.Context, slug string) (*models.ApprovedArticle, error) {
	return r.getOne(ctx, sq.Eq{"slug": slug})
}

// GetByOriginalArticleID retrieves the newest approved article promoted from a raw article
func (r *approvedArticleRepo) GetByOriginalArticleID(ctx context.Context, originalID string) (*models.ApprovedArticle, error) {
	return r.getOne(ctx, sq.Eq{"original_article_id": originalID})
}

func (r *approvedArticleRepo) getOne(ctx context.Context, where sq.Eq) (*models.ApprovedArticle, error) {
	query, args, err := psql.Select(approvedColumns...).
		From("approved_articles").
		Where(where).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	article, err := scanApproved(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

// List returns approved articles matching the filter, newest first
func (r *approvedArticleRepo) List(ctx context.Context, filter models.ApprovedFilter) ([]*models.ApprovedArticle, error) {
	q := psql.Select(approvedColumns...).From("approved_articles").OrderBy("created_at DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.CategoryID != "" {
		q = q.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	if filter.Search != "" {
		q = q.Where(sq.ILike{"title": "%" + filter.Search + "%"})
	}
	q = q.Limit(clampLimit(filter.Limit)).Offset(clampOffset(filter.Offset))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*models.ApprovedArticle
	for rows.Next() {
		article, err := scanApproved(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// SlugExists checks if an approved article with the given slug exists
func (r *approvedArticleRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM approved_articles WHERE slug = $1)", slug).Scan(&exists)
	return exists, err
}

// SetPublication writes status and published_at together
func (r *approvedArticleRepo) SetPublication(ctx context.Context, id string, status models.PublishStatus, publishedAt *time.Time) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		"UPDATE approved_articles SET status = $1, published_at = $2, updated_at = $3 WHERE id = $4",
		status, publishedAt, time.Now(), id,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Delete hard-deletes an approved article and reports whether a row was removed
func (r *approvedArticleRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, "DELETE FROM approved_articles WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Exists checks if an approved article with the given ID exists
func (r *approvedArticleRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM approved_articles WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// Count returns the total number of approved articles
func (r *approvedArticleRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM approved_articles").Scan(&count)
	return count, err
}

// StreamPublished streams published articles, newest first, for the public feed
func (r *approvedArticleRepo) StreamPublished(ctx context.Context, callback func(*models.ApprovedArticle) error) error {
	query, args, err := psql.Select(approvedColumns...).
		From("approved_articles").
		Where(sq.Eq{"status": string(models.PublishStatusPublished)}).
		OrderBy("published_at DESC").
		ToSql()
	if err != nil {
		return err
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanApproved(rows)
		if err != nil {
			return err
		}
		if err := callback(article); err != nil {
			return err
		}
	}

	return rows.Err()
}

func scanApproved(row rowScanner) (*models.ApprovedArticle, error) {
	var a models.ApprovedArticle
	var categoryID, subcategoryID, originalID sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Content, &a.MetaTitle, &a.MetaDescription, &a.FeaturedImage,
		&categoryID, &subcategoryID, &a.UserID, &a.AIGenerated, &originalID,
		&a.Status, &publishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CategoryID = idPtr(categoryID)
	a.SubcategoryID = idPtr(subcategoryID)
	a.OriginalArticleID = idPtr(originalID)
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	return &a, nil
}
