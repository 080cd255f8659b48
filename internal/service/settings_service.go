package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const settingsKey = "ai_settings"

// settingsService caches the singleton AI settings row. Concurrent cache
// misses share one database read, and Invalidate drops the cached copy.
type settingsService struct {
	repo    repository.AISettingRepository
	gateway AIGateway
	group   singleflight.Group
	log     zerolog.Logger

	mu         sync.RWMutex
	cached     *models.AISetting
	generation uint64
}

// newSettingsService creates a new SettingsService
func newSettingsService(repo repository.AISettingRepository, gateway AIGateway, log zerolog.Logger) *settingsService {
	return &settingsService{
		repo:    repo,
		gateway: gateway,
		log:     log.With().Str("service", "settings").Logger(),
	}
}

// Get returns a copy of the AI settings, or ErrConfigurationMissing when none
// have been saved
func (s *settingsService) Get(ctx context.Context) (*models.AISetting, error) {
	s.mu.RLock()
	cached, gen := s.cached, s.generation
	s.mu.RUnlock()

	if cached != nil {
		cp := *cached
		return &cp, nil
	}

	v, err, _ := s.group.Do(settingsKey, func() (interface{}, error) {
		setting, err := s.repo.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AI settings: %w", err)
		}
		if setting == nil {
			return nil, ErrConfigurationMissing
		}

		s.mu.Lock()
		if s.generation == gen {
			s.cached = setting
		}
		s.mu.Unlock()
		return setting, nil
	})
	if err != nil {
		return nil, err
	}

	cp := *v.(*models.AISetting)
	return &cp, nil
}

// Save validates and stores the settings. A masked API key, as rendered by
// the settings form, keeps the stored key.
func (s *settingsService) Save(ctx context.Context, setting *models.AISetting) (*models.AISetting, error) {
	if err := validationError(validation.NewValidator().ValidateAISetting(setting)); err != nil {
		return nil, err
	}

	if strings.HasPrefix(setting.APIKey, "****") {
		existing, err := s.repo.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AI settings: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: api_key: masked key given but none is stored", ErrValidation)
		}
		setting.APIKey = existing.APIKey
	}

	if err := s.repo.Save(ctx, setting); err != nil {
		return nil, fmt.Errorf("save AI settings: %w", err)
	}
	s.Invalidate()

	s.log.Info().
		Str("provider", string(setting.Provider)).
		Str("model", setting.ModelName).
		Bool("auto_approve", setting.AutoApprove).
		Int("max_daily_rewrites", setting.MaxDailyRewrites).
		Msg("AI settings saved")

	return setting, nil
}

// Invalidate drops the cached settings so the next Get reads the database
func (s *settingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.generation++
	s.mu.Unlock()
	s.group.Forget(settingsKey)
}

// TestConnection checks provider reachability. An empty or masked key falls
// back to the stored key for the same provider.
func (s *settingsService) TestConnection(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult {
	if req.APIKey == "" || strings.HasPrefix(req.APIKey, "****") {
		if stored, err := s.Get(ctx); err == nil && stored.Provider == req.Provider {
			req.APIKey = stored.APIKey
		}
	}
	return s.gateway.TestConnection(ctx, req)
}
