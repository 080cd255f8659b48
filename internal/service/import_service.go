package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/validation"
	"github.com/rs/zerolog"
)

const (
	importBatchSize = 1000
	maxImportErrors = 1000
)

// importService is the concrete implementation of ImportService
type importService struct {
	repos *repository.Repositories
	now   func() time.Time
	log   zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, now func() time.Time, log zerolog.Logger) *importService {
	return &importService{
		repos: repos,
		now:   now,
		log:   log.With().Str("service", "import").Logger(),
	}
}

// CreateRawArticle stores one scraped article
func (s *importService) CreateRawArticle(ctx context.Context, in *models.RawArticleNDJSON) (*models.RawArticle, error) {
	if err := validationError(validation.NewValidator().ValidateRawArticle(in)); err != nil {
		return nil, err
	}

	article := s.convert(in)
	if err := s.repos.Raw.Create(ctx, article); err != nil {
		return nil, fmt.Errorf("create raw article: %w", err)
	}

	s.log.Info().Str("raw_id", article.ID).Str("source", article.SourceName).Msg("Raw article created")
	return article, nil
}

// ImportRawArticles reads NDJSON raw articles, validates each line and
// inserts valid ones in COPY batches
func (s *importService) ImportRawArticles(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	start := time.Now()
	result := &models.ImportResult{}

	scanner := bufio.NewScanner(r)
	// Increase buffer size for long article bodies
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	validator := validation.NewValidator()
	var batch []*models.RawArticle
	lineNum := 0

	addError := func(e models.ValidationError) {
		if len(result.Errors) < maxImportErrors {
			result.Errors = append(result.Errors, e)
		}
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		inserted, err := s.repos.Raw.BatchInsert(ctx, batch)
		if err != nil {
			s.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch insert failed")
			result.FailedCount += len(batch)
		} else {
			result.SuccessfulCount += inserted
		}
		batch = batch[:0]
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.TotalRecords++

		if lineNum%10000 == 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}
		}

		var record models.RawArticleNDJSON
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			result.FailedCount++
			addError(models.ValidationError{Line: lineNum, Field: "json", Message: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}

		if errs := validator.ValidateRawArticle(&record); len(errs) > 0 {
			result.FailedCount++
			for _, e := range errs {
				addError(models.ValidationError{Line: lineNum, Field: e.Field, Message: e.Message, Value: e.Value})
			}
			continue
		}

		validator.AddSourceURL(record.SourceURL)
		batch = append(batch, s.convert(&record))
		if len(batch) >= importBatchSize {
			flush()
		}
	}
	flush()

	result.DurationMs = time.Since(start).Milliseconds()

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("%w: read NDJSON: %v", ErrValidation, err)
	}

	s.log.Info().
		Int("total", result.TotalRecords).
		Int("successful", result.SuccessfulCount).
		Int("failed", result.FailedCount).
		Int64("duration_ms", result.DurationMs).
		Msg("Raw article import completed")

	return result, nil
}

// ListRawArticles lists raw articles matching the filter
func (s *importService) ListRawArticles(ctx context.Context, filter models.RawFilter) ([]*models.RawArticle, error) {
	return s.repos.Raw.List(ctx, filter)
}

func (s *importService) convert(in *models.RawArticleNDJSON) *models.RawArticle {
	now := s.now()
	return &models.RawArticle{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(in.Title),
		Body:            in.Body,
		MetaTitle:       in.MetaTitle,
		MetaDescription: in.MetaDescription,
		ImageURL:        in.ImageURL,
		SourceURL:       in.SourceURL,
		SourceName:      in.SourceName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
