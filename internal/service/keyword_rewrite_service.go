package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/slug"
	"github.com/magazine-cms/internal/validation"
	"github.com/rs/zerolog"
)

const maxBatchRewrites = 100

type keywordPayload struct {
	Keyword     string `json:"keyword,omitempty"`
	Content     string `json:"content,omitempty"`
	RewriteID   string `json:"rewrite_id"`
	CallbackURL string `json:"callback_url"`
}

// keywordRewriteService is the concrete implementation of KeywordRewriteService
type keywordRewriteService struct {
	repos        *repository.Repositories
	dispatcher   JobDispatcher
	now          func() time.Time
	pollInterval time.Duration
	log          zerolog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	loopDone     chan struct{}
	running      bool
	mu           sync.Mutex
	// sem bounds concurrent dispatches from the background processor
	sem chan struct{}
}

// newKeywordRewriteService creates a new KeywordRewriteService
func newKeywordRewriteService(repos *repository.Repositories, deps Deps, cfg config.JobsConfig, log zerolog.Logger) *keywordRewriteService {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	log.Info().Int("max_workers", maxWorkers).Msg("Initializing keyword rewrite worker pool")

	return &keywordRewriteService{
		repos:        repos,
		dispatcher:   deps.Dispatcher,
		now:          deps.Now,
		pollInterval: pollInterval,
		log:          log.With().Str("service", "keyword_rewrite").Logger(),
		sem:          make(chan struct{}, maxWorkers),
	}
}

// Create stores a job and dispatches it right away. A dispatch failure marks
// the job failed and is returned together with the job.
func (s *keywordRewriteService) Create(ctx context.Context, req *models.KeywordRewriteRequest) (*models.KeywordRewrite, error) {
	job, err := s.newJob(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, job, models.JobStatusPending); err != nil {
		return job, err
	}
	return job, nil
}

// Queue stores pending jobs for the background processor
func (s *keywordRewriteService) Queue(ctx context.Context, reqs []models.KeywordRewriteRequest) ([]*models.KeywordRewrite, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one rewrite is required", ErrValidation)
	}
	if len(reqs) > maxBatchRewrites {
		return nil, fmt.Errorf("%w: at most %d rewrites per batch", ErrValidation, maxBatchRewrites)
	}

	v := validation.NewValidator()
	for i := range reqs {
		if errs := v.ValidateKeywordRewrite(&reqs[i]); len(errs) > 0 {
			return nil, fmt.Errorf("item %d: %w", i, validationError(errs))
		}
	}

	jobs := make([]*models.KeywordRewrite, 0, len(reqs))
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		for i := range reqs {
			job, err := s.newJob(ctx, &reqs[i])
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("count", len(jobs)).Msg("Keyword rewrites queued")
	return jobs, nil
}

func (s *keywordRewriteService) newJob(ctx context.Context, req *models.KeywordRewriteRequest) (*models.KeywordRewrite, error) {
	if err := validationError(validation.NewValidator().ValidateKeywordRewrite(req)); err != nil {
		return nil, err
	}

	job := &models.KeywordRewrite{
		ID:        uuid.New().String(),
		Keyword:   req.Keyword,
		Content:   req.Content,
		UserID:    req.UserID,
		Status:    models.JobStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.repos.Keyword.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create keyword rewrite: %w", err)
	}
	return job, nil
}

// Retry re-dispatches a failed job
func (s *keywordRewriteService) Retry(ctx context.Context, id string) (*models.KeywordRewrite, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusFailed {
		return nil, fmt.Errorf("keyword rewrite %s is %s: %w", id, job.Status, ErrInvalidTransition)
	}

	if err := s.dispatch(ctx, job, models.JobStatusFailed); err != nil {
		return job, err
	}
	return job, nil
}

// dispatch claims the job in the from status and sends it
func (s *keywordRewriteService) dispatch(ctx context.Context, job *models.KeywordRewrite, from models.JobStatus) error {
	marked, err := s.repos.Keyword.MarkAsProcessing(ctx, job.ID, from)
	if err != nil {
		return fmt.Errorf("mark keyword rewrite processing: %w", err)
	}
	if !marked {
		return fmt.Errorf("keyword rewrite %s is no longer %s: %w", job.ID, from, ErrInvalidTransition)
	}
	s.markedProcessing(job)
	return s.send(ctx, job)
}

func (s *keywordRewriteService) markedProcessing(job *models.KeywordRewrite) {
	now := s.now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	job.CompletedAt = nil
	job.ErrorMessage = ""
	job.Attempts++
}

// send posts the job to the keyword service. Failure is persisted on the job.
func (s *keywordRewriteService) send(ctx context.Context, job *models.KeywordRewrite) error {
	log := s.log.With().Str("rewrite_id", job.ID).Int("attempt", job.Attempts).Logger()

	if !s.dispatcher.EnsureServiceRunning(ctx, s.dispatcher.KeywordServiceURL()) {
		log.Warn().Msg("Keyword service health check failed, dispatching anyway")
	}

	result, err := s.dispatcher.DispatchProcessingJob(ctx, s.dispatcher.KeywordProcessEndpoint(), keywordPayload{
		Keyword:     job.Keyword,
		Content:     job.Content,
		RewriteID:   job.ID,
		CallbackURL: s.dispatcher.CallbackURL(),
	})
	if err != nil {
		completed := s.now()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = err.Error()
		job.CompletedAt = &completed
		if uerr := s.repos.Keyword.Update(ctx, job); uerr != nil {
			log.Error().Err(uerr).Msg("Failed to persist dispatch failure")
		}
		log.Error().Err(err).Msg("Keyword rewrite dispatch failed")
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	log.Info().Str("via", result.Via).Msg("Keyword rewrite dispatched")
	return nil
}

// HandleCallback applies a result posted by the keyword service. A completed
// rewrite also becomes a pending AI generated draft.
func (s *keywordRewriteService) HandleCallback(ctx context.Context, cb *models.KeywordRewriteCallback) (*models.KeywordRewrite, error) {
	if err := validationError(validation.NewValidator().ValidateCallback(cb)); err != nil {
		return nil, err
	}

	var job *models.KeywordRewrite
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		job, err = s.Get(ctx, cb.RewriteID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusProcessing {
			return fmt.Errorf("keyword rewrite %s is %s: %w", job.ID, job.Status, ErrInvalidTransition)
		}

		now := s.now()
		job.Status = cb.Status
		job.CompletedAt = &now

		if cb.Status == models.JobStatusFailed {
			job.ErrorMessage = cb.Error
			if job.ErrorMessage == "" {
				job.ErrorMessage = "keyword rewrite failed"
			}
			return s.repos.Keyword.Update(ctx, job)
		}

		job.ResultTitle = cb.Title
		job.ResultContent = cb.Content
		job.ErrorMessage = ""
		if err := s.repos.Keyword.Update(ctx, job); err != nil {
			return err
		}
		return s.createDraftFromResult(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("rewrite_id", job.ID).Str("status", string(job.Status)).Msg("Keyword rewrite callback applied")
	return job, nil
}

func (s *keywordRewriteService) createDraftFromResult(ctx context.Context, job *models.KeywordRewrite) error {
	title := job.ResultTitle
	if title == "" {
		title = job.Keyword
	}
	if title == "" {
		title = "Untitled"
	}

	now := s.now()
	draft := &models.RewrittenArticle{
		ID:          uuid.New().String(),
		Title:       title,
		Slug:        slug.Make(title),
		Content:     job.ResultContent,
		MetaTitle:   title,
		UserID:      job.UserID,
		AIGenerated: true,
		Status:      models.DraftStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Rewritten.Create(ctx, draft); err != nil {
		return fmt.Errorf("create draft from keyword rewrite: %w", err)
	}
	return nil
}

// Get retrieves a job by ID
func (s *keywordRewriteService) Get(ctx context.Context, id string) (*models.KeywordRewrite, error) {
	if err := checkID("keyword rewrite", id); err != nil {
		return nil, err
	}
	job, err := s.repos.Keyword.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get keyword rewrite: %w", err)
	}
	if job == nil {
		return nil, notFound("keyword rewrite", id)
	}
	return job, nil
}

// List lists jobs, optionally by status
func (s *keywordRewriteService) List(ctx context.Context, status models.JobStatus, limit int) ([]*models.KeywordRewrite, error) {
	return s.repos.Keyword.List(ctx, status, limit)
}

// StartProcessor starts the background processor for queued jobs. It returns
// once the processor is registered, so a following StopProcessor always stops it.
func (s *keywordRewriteService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})

	go s.run(s.ctx, s.loopDone)
	s.log.Info().Dur("poll_interval", s.pollInterval).Msg("Keyword rewrite processor started")
}

func (s *keywordRewriteService) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Keyword rewrite processor stopping")
			return
		case <-ticker.C:
			s.processPendingJobs()
		}
	}
}

// StopProcessor stops the processor and waits for in-flight dispatches
func (s *keywordRewriteService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.loopDone
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Keyword rewrite processor stopped")
}

// processPendingJobs dispatches queued jobs, at most cap(sem) at a time
func (s *keywordRewriteService) processPendingJobs() {
	jobs, err := s.repos.Keyword.GetPendingJobs(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending keyword rewrites")
		return
	}

	for _, job := range jobs {
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		marked, err := s.repos.Keyword.MarkAsProcessing(s.ctx, job.ID, models.JobStatusPending)
		if err != nil || !marked {
			<-s.sem
			continue
		}
		s.markedProcessing(job)

		s.wg.Add(1)
		go func(j *models.KeywordRewrite) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("rewrite_id", j.ID).
						Msg("Keyword rewrite dispatch panicked - recovered")
					j.Status = models.JobStatusFailed
					j.ErrorMessage = fmt.Sprintf("internal error: %v", r)
					s.repos.Keyword.Update(s.ctx, j)
				}
			}()

			// failures are already persisted on the job
			_ = s.send(s.ctx, j)
		}(job)
	}
}
