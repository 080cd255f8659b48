package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/rs/zerolog"
)

// publicService streams published articles to the public site
type publicService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

func newPublicService(repos *repository.Repositories, log zerolog.Logger) *publicService {
	return &publicService{
		repos: repos,
		log:   log.With().Str("service", "public").Logger(),
	}
}

// StreamPublished writes every published article as a JSON array or NDJSON
func (s *publicService) StreamPublished(ctx context.Context, w http.ResponseWriter, format string) error {
	switch format {
	case "ndjson":
		return s.streamNDJSON(ctx, w)
	case "json", "":
		return s.streamJSON(ctx, w)
	default:
		return fmt.Errorf("%w: unsupported format: %s", ErrValidation, format)
	}
}

func (s *publicService) streamNDJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Approved.StreamPublished(ctx, func(a *models.ApprovedArticle) error {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		w.Write(data)
		w.Write([]byte("\n"))
		count++

		// Flush every 100 records for streaming
		if count%100 == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Str("format", "ndjson").Msg("Published feed streamed")
	return err
}

func (s *publicService) streamJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")

	w.Write([]byte("["))
	first := true
	count := 0

	err := s.repos.Approved.StreamPublished(ctx, func(a *models.ApprovedArticle) error {
		if !first {
			w.Write([]byte(","))
		}
		first = false

		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		w.Write(data)
		count++
		return nil
	})

	w.Write([]byte("]"))
	s.log.Info().Int("count", count).Str("format", "json").Msg("Published feed streamed")
	return err
}

// GetPublishedBySlug returns a published article. Unpublished ones are not found.
func (s *publicService) GetPublishedBySlug(ctx context.Context, slug string) (*models.ApprovedArticle, error) {
	a, err := s.repos.Approved.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get article by slug: %w", err)
	}
	if a == nil || a.Status != models.PublishStatusPublished {
		return nil, notFound("article", slug)
	}
	return a, nil
}

// GetCounts returns row counts per collection
func (s *publicService) GetCounts(ctx context.Context) (map[string]int, error) {
	counters := map[string]func(context.Context) (int, error){
		"raw_articles":       s.repos.Raw.Count,
		"rewritten_articles": s.repos.Rewritten.Count,
		"approved_articles":  s.repos.Approved.Count,
		"keyword_rewrites":   s.repos.Keyword.Count,
	}

	counts := make(map[string]int, len(counters))
	for name, count := range counters {
		n, err := count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}
