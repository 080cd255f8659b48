package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

var rawColumns = []string{
	"id", "title", "body", "meta_title", "meta_description", "image_url",
	"source_url", "source_name", "rewritten_id", "created_at", "updated_at",
}

// rawArticleRepo is the concrete implementation of RawArticleRepository
type rawArticleRepo struct {
	db *database.DB
}

// NewRawArticleRepo creates a new raw article repository
func NewRawArticleRepo(db *database.DB) RawArticleRepository {
	return &rawArticleRepo{db: db}
}

// Create inserts a new raw article
func (r *rawArticleRepo) Create(ctx context.Context, article *models.RawArticle) error {
	query := `
		INSERT INTO raw_articles (id, title, body, meta_title, meta_description, image_url,
			source_url, source_name, rewritten_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		article.ID, article.Title, article.Body, article.MetaTitle, article.MetaDescription,
		article.ImageURL, article.SourceURL, article.SourceName, nullID(article.RewrittenID),
		article.CreatedAt, time.Now(),
	)
	return err
}

// BatchInsert inserts multiple raw articles using PostgreSQL COPY. The batch
// is all or nothing: a failed row aborts the COPY.
func (r *rawArticleRepo) BatchInsert(ctx context.Context, articles []*models.RawArticle) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("raw_articles",
		"id", "title", "body", "meta_title", "meta_description", "image_url",
		"source_url", "source_name", "created_at", "updated_at",
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()

	for _, article := range articles {
		_, err := stmt.ExecContext(ctx,
			article.ID, article.Title, article.Body, article.MetaTitle, article.MetaDescription,
			article.ImageURL, article.SourceURL, article.SourceName, article.CreatedAt, now,
		)
		if err != nil {
			return 0, fmt.Errorf("copy raw article %s: %w", article.ID, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(articles), nil
}

// GetByID retrieves a raw article by ID
func (r *rawArticleRepo) GetByID(ctx context.Context, id string) (*models.RawArticle, error) {
	query, args, err := psql.Select(rawColumns...).From("raw_articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	article, err := scanRaw(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

// List returns raw articles, newest first
func (r *rawArticleRepo) List(ctx context.Context, filter models.RawFilter) ([]*models.RawArticle, error) {
	q := psql.Select(rawColumns...).From("raw_articles").OrderBy("created_at DESC")
	if filter.SourceName != "" {
		q = q.Where(sq.Eq{"source_name": filter.SourceName})
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

	var articles []*models.RawArticle
	for rows.Next() {
		article, err := scanRaw(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// SetRewrittenID links a raw article to the draft created from it
func (r *rawArticleRepo) SetRewrittenID(ctx context.Context, id, rewrittenID string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		"UPDATE raw_articles SET rewritten_id = $1, updated_at = $2 WHERE id = $3",
		nullString(rewrittenID), time.Now(), id,
	)
	return err
}

// Count returns the total number of raw articles
func (r *rawArticleRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM raw_articles").Scan(&count)
	return count, err
}

func scanRaw(row rowScanner) (*models.RawArticle, error) {
	var article models.RawArticle
	var rewrittenID sql.NullString

	err := row.Scan(
		&article.ID, &article.Title, &article.Body, &article.MetaTitle, &article.MetaDescription,
		&article.ImageURL, &article.SourceURL, &article.SourceName, &rewrittenID,
		&article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	article.RewrittenID = idPtr(rewrittenID)
	return &article, nil
}
