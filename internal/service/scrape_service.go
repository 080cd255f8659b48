package service

import (
	"context"
	"fmt"

	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/validation"
	"github.com/rs/zerolog"
)

type scrapeService struct {
	dispatcher JobDispatcher
	log        zerolog.Logger
}

func newScrapeService(dispatcher JobDispatcher, log zerolog.Logger) *scrapeService {
	return &scrapeService{
		dispatcher: dispatcher,
		log:        log.With().Str("service", "scrape").Logger(),
	}
}

// StartScrape starts a scrape on the scraper service, or launches the scraper
// directly when the service is unreachable
func (s *scrapeService) StartScrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	if err := validationError(validation.NewValidator().ValidateScrapeRequest(req)); err != nil {
		return nil, err
	}

	result, err := s.dispatcher.StartScrapeJob(ctx, *req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	return result, nil
}

// KeywordServiceHealth makes sure the keyword rewrite service is up. It may
// block while the service starts.
func (s *scrapeService) KeywordServiceHealth(ctx context.Context) bool {
	return s.dispatcher.EnsureServiceRunning(ctx, s.dispatcher.KeywordServiceURL())
}
