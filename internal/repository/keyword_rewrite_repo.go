package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

var keywordColumns = []string{
	"id", "keyword", "content", "user_id", "status", "result_title", "result_content",
	"error_message", "attempts", "created_at", "started_at", "completed_at",
}

// keywordRewriteRepo is the concrete implementation of KeywordRewriteRepository
type keywordRewriteRepo struct {
	db *database.DB
}

// NewKeywordRewriteRepo creates a new keyword rewrite job repository
func NewKeywordRewriteRepo(db *database.DB) KeywordRewriteRepository {
	return &keywordRewriteRepo{db: db}
}

// Create inserts a new job
func (r *keywordRewriteRepo) Create(ctx context.Context, job *models.KeywordRewrite) error {
	query := `
		INSERT INTO keyword_rewrites (id, keyword, content, user_id, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		job.ID, job.Keyword, job.Content, job.UserID, job.Status, job.Attempts, job.CreatedAt,
	)
	return err
}

// Update updates job status and result fields
func (r *keywordRewriteRepo) Update(ctx context.Context, job *models.KeywordRewrite) error {
	query := `
		UPDATE keyword_rewrites SET
			status = $1, result_title = $2, result_content = $3, error_message = $4,
			attempts = $5, started_at = $6, completed_at = $7
		WHERE id = $8
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		job.Status, job.ResultTitle, job.ResultContent, job.ErrorMessage,
		job.Attempts, job.StartedAt, job.CompletedAt, job.ID,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *keywordRewriteRepo) GetByID(ctx context.Context, id string) (*models.KeywordRewrite, error) {
	query, args, err := psql.Select(keywordColumns...).From("keyword_rewrites").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanKeywordRewrite(r.db.Executor(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns jobs, optionally restricted to one status, newest first
func (r *keywordRewriteRepo) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.KeywordRewrite, error) {
	q := psql.Select(keywordColumns...).From("keyword_rewrites").OrderBy("created_at DESC")
	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}
	query, args, err := q.Limit(clampLimit(limit)).ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

// GetPendingJobs retrieves all pending jobs, oldest first
func (r *keywordRewriteRepo) GetPendingJobs(ctx context.Context) ([]*models.KeywordRewrite, error) {
	query, args, err := psql.Select(keywordColumns...).
		From("keyword_rewrites").
		Where(sq.Eq{"status": string(models.JobStatusPending)}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, query, args...)
}

// MarkAsProcessing atomically moves a job from the given status to processing
func (r *keywordRewriteRepo) MarkAsProcessing(ctx context.Context, id string, from models.JobStatus) (bool, error) {
	query := `
		UPDATE keyword_rewrites
		SET status = 'processing', started_at = $1, completed_at = NULL,
			error_message = '', attempts = attempts + 1
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Count returns the total number of jobs
func (r *keywordRewriteRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM keyword_rewrites").Scan(&count)
	return count, err
}

func (r *keywordRewriteRepo) query(ctx context.Context, query string, args ...any) ([]*models.KeywordRewrite, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.KeywordRewrite
	for rows.Next() {
		job, err := scanKeywordRewrite(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanKeywordRewrite(row rowScanner) (*models.KeywordRewrite, error) {
	var job models.KeywordRewrite
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.Keyword, &job.Content, &job.UserID, &job.Status, &job.ResultTitle,
		&job.ResultContent, &job.ErrorMessage, &job.Attempts, &job.CreatedAt,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}
