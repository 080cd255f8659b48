package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

var rewrittenColumns = []string{
	"id", "title", "slug", "content", "meta_title", "meta_description", "featured_image",
	"category_id", "subcategory_id", "user_id", "ai_generated", "status",
	"original_article_id", "created_at", "updated_at",
}

// rewrittenArticleRepo is the concrete implementation of RewrittenArticleRepository
type rewrittenArticleRepo struct {
	db *database.DB
}

// NewRewrittenArticleRepo creates a new draft repository
func NewRewrittenArticleRepo(db *database.DB) RewrittenArticleRepository {
	return &rewrittenArticleRepo{db: db}
}

// Create inserts a new draft
func (r *rewrittenArticleRepo) Create(ctx context.Context, a *models.RewrittenArticle) error {
	query := `
		INSERT INTO rewritten_articles (id, title, slug, content, meta_title, meta_description,
			featured_image, category_id, subcategory_id, user_id, ai_generated, status,
			original_article_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		a.ID, a.Title, a.Slug, a.Content, a.MetaTitle, a.MetaDescription, a.FeaturedImage,
		nullID(a.CategoryID), nullID(a.SubcategoryID), a.UserID, a.AIGenerated, a.Status,
		nullID(a.OriginalArticleID), a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// Update writes every editable column of a draft
func (r *rewrittenArticleRepo) Update(ctx context.Context, a *models.RewrittenArticle) error {
	query := `
		UPDATE rewritten_articles SET
			title = $1, slug = $2, content = $3, meta_title = $4, meta_description = $5,
			featured_image = $6, category_id = $7, subcategory_id = $8, ai_generated = $9,
			status = $10, updated_at = $11
		WHERE id = $12
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		a.Title, a.Slug, a.Content, a.MetaTitle, a.MetaDescription, a.FeaturedImage,
		nullID(a.CategoryID), nullID(a.SubcategoryID), a.AIGenerated, a.Status,
		a.UpdatedAt, a.ID,
	)
	return err
}

// GetByID retrieves a draft by ID
func (r *rewrittenArticleRepo) GetByID(ctx context.Context, id string) (*models.RewrittenArticle, error) {
	return r.get(ctx, psql.Select(rewrittenColumns...).From("rewritten_articles").Where(sq.Eq{"id": id}))
}

// GetForUpdate retrieves a draft and locks its row until the surrounding
// transaction ends. Concurrent approvals of the same draft serialize here.
func (r *rewrittenArticleRepo) GetForUpdate(ctx context.Context, id string) (*models.RewrittenArticle, error) {
	return r.get(ctx, psql.Select(rewrittenColumns...).From("rewritten_articles").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
}

func (r *rewrittenArticleRepo) get(ctx context.Context, q sq.SelectBuilder) (*models.RewrittenArticle, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	article, err := scanRewritten(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

// List returns drafts matching the filter, newest first
func (r *rewrittenArticleRepo) List(ctx context.Context, filter models.DraftFilter) ([]*models.RewrittenArticle, error) {
	q := psql.Select(rewrittenColumns...).From("rewritten_articles").OrderBy("created_at DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.CategoryID != "" {
		q = q.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	if filter.AIGenerated != nil {
		q = q.Where(sq.Eq{"ai_generated": *filter.AIGenerated})
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

	var articles []*models.RewrittenArticle
	for rows.Next() {
		article, err := scanRewritten(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// TransitionStatus atomically moves a draft from one status to another.
// It reports false when the draft does not exist or is not in the from status.
func (r *rewrittenArticleRepo) TransitionStatus(ctx context.Context, id string, from, to models.DraftStatus) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		"UPDATE rewritten_articles SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		to, time.Now(), id, from,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Delete hard-deletes a draft and reports whether a row was removed
func (r *rewrittenArticleRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, "DELETE FROM rewritten_articles WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Exists checks if a draft with the given ID exists
func (r *rewrittenArticleRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM rewritten_articles WHERE id = $1)", id).Scan(&exists)
	return exists, err
}

// CountAIGeneratedSince counts a user's AI generated drafts created at or after since
func (r *rewrittenArticleRepo) CountAIGeneratedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rewritten_articles
		WHERE user_id = $1 AND ai_generated = TRUE AND created_at >= $2
	`, userID, since).Scan(&count)
	return count, err
}

// DeleteOrphans removes drafts whose source article has already been promoted
func (r *rewrittenArticleRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		DELETE FROM rewritten_articles r
		WHERE r.original_article_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM approved_articles a
			WHERE a.original_article_id = r.original_article_id
		  )
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the total number of drafts
func (r *rewrittenArticleRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM rewritten_articles").Scan(&count)
	return count, err
}

func scanRewritten(row rowScanner) (*models.RewrittenArticle, error) {
	var a models.RewrittenArticle
	var categoryID, subcategoryID, originalID sql.NullString

	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Content, &a.MetaTitle, &a.MetaDescription, &a.FeaturedImage,
		&categoryID, &subcategoryID, &a.UserID, &a.AIGenerated, &a.Status,
		&originalID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CategoryID = idPtr(categoryID)
	a.SubcategoryID = idPtr(subcategoryID)
	a.OriginalArticleID = idPtr(originalID)
	return &a, nil
}
