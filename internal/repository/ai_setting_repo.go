package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

// aiSettingRepo is the concrete implementation of AISettingRepository
type aiSettingRepo struct {
	db *database.DB
}

// NewAISettingRepo creates a new AI settings repository
func NewAISettingRepo(db *database.DB) AISettingRepository {
	return &aiSettingRepo{db: db}
}

// Get returns the settings row, or nil when it has never been saved
func (r *aiSettingRepo) Get(ctx context.Context) (*models.AISetting, error) {
	query := `
		SELECT provider, api_url, api_key, model_name, temperature, max_tokens,
			prompt_template, auto_approve, max_daily_rewrites, updated_at
		FROM ai_settings WHERE id = 1
	`
	var s models.AISetting
	err := r.db.Executor(ctx).QueryRowContext(ctx, query).Scan(
		&s.Provider, &s.APIURL, &s.APIKey, &s.ModelName, &s.Temperature, &s.MaxTokens,
		&s.PromptTemplate, &s.AutoApprove, &s.MaxDailyRewrites, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save upserts the singleton settings row
func (r *aiSettingRepo) Save(ctx context.Context, s *models.AISetting) error {
	s.UpdatedAt = time.Now()
	query := `
		INSERT INTO ai_settings (id, provider, api_url, api_key, model_name, temperature, max_tokens,
			prompt_template, auto_approve, max_daily_rewrites, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			api_url = EXCLUDED.api_url,
			api_key = EXCLUDED.api_key,
			model_name = EXCLUDED.model_name,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			prompt_template = EXCLUDED.prompt_template,
			auto_approve = EXCLUDED.auto_approve,
			max_daily_rewrites = EXCLUDED.max_daily_rewrites,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		s.Provider, s.APIURL, s.APIKey, s.ModelName, s.Temperature, s.MaxTokens,
		s.PromptTemplate, s.AutoApprove, s.MaxDailyRewrites, s.UpdatedAt,
	)
	return err
}
