package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/dispatcher"
	"github.com/magazine-cms/internal/mocks"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

func TestKeywordRewriteService_Create(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.Keyword.Create(context.Background(), &models.KeywordRewriteRequest{Keyword: "du lịch Đà Lạt", UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != models.JobStatusProcessing {
		t.Errorf("expected processing, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", job.Attempts)
	}
	if f.dispatcher.Dispatched() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", f.dispatcher.Dispatched())
	}
	if f.dispatcher.Endpoints[0] != f.dispatcher.KeywordProcessEndpoint() {
		t.Errorf("unexpected endpoint %s", f.dispatcher.Endpoints[0])
	}

	data, err := json.Marshal(f.dispatcher.Payloads[0])
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["rewrite_id"] != job.ID || payload["keyword"] != "du lịch Đà Lạt" {
		t.Errorf("unexpected payload %v", payload)
	}
	if payload["callback_url"] != f.dispatcher.CallbackURL() {
		t.Errorf("expected callback url %s, got %s", f.dispatcher.CallbackURL(), payload["callback_url"])
	}
	if _, ok := payload["content"]; ok {
		t.Error("expected content to be omitted for keyword jobs")
	}

	if stored := f.store.Keyword[job.ID]; stored.Status != models.JobStatusProcessing {
		t.Errorf("expected stored job processing, got %s", stored.Status)
	}
}

func TestKeywordRewriteService_Create_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []models.KeywordRewriteRequest{
		{},
		{Keyword: "a", Content: "b"},
	}
	for _, req := range tests {
		if _, err := f.svc.Keyword.Create(context.Background(), &req); !errors.Is(err, service.ErrValidation) {
			t.Errorf("expected ErrValidation for %+v, got %v", req, err)
		}
	}
	if f.dispatcher.Dispatched() != 0 {
		t.Error("expected no dispatch for invalid requests")
	}
}

func TestKeywordRewriteService_Create_DispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.Healthy = false
	f.dispatcher.DispatchFunc = func(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error) {
		return nil, errors.New("http: connection refused\nraw_http: connection refused")
	}

	job, err := f.svc.Keyword.Create(context.Background(), &models.KeywordRewriteRequest{Content: "some text"})
	if !errors.Is(err, service.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if job == nil {
		t.Fatal("expected the failed job to be returned")
	}

	stored := f.store.Keyword[job.ID]
	if stored.Status != models.JobStatusFailed {
		t.Errorf("expected failed, got %s", stored.Status)
	}
	if stored.ErrorMessage == "" || stored.CompletedAt == nil {
		t.Errorf("expected error message and completion time, got %+v", stored)
	}
	if len(f.dispatcher.HealthChecks) != 1 {
		t.Errorf("expected a health check before dispatch, got %d", len(f.dispatcher.HealthChecks))
	}
}

func TestKeywordRewriteService_Retry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fail := true
	f.dispatcher.DispatchFunc = func(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error) {
		if fail {
			return nil, errors.New("unreachable")
		}
		return &dispatcher.Result{Via: "raw_http", StatusCode: 200}, nil
	}

	job, _ := f.svc.Keyword.Create(ctx, &models.KeywordRewriteRequest{Keyword: "retry"})

	fail = false
	retried, err := f.svc.Keyword.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retried.Status != models.JobStatusProcessing || retried.Attempts != 2 {
		t.Errorf("expected processing after 2 attempts, got %s / %d", retried.Status, retried.Attempts)
	}
	if retried.ErrorMessage != "" {
		t.Errorf("expected error message to be cleared, got %q", retried.ErrorMessage)
	}

	if _, err := f.svc.Keyword.Retry(ctx, job.ID); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition retrying a processing job, got %v", err)
	}
	if _, err := f.svc.Keyword.Retry(ctx, "missing"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestKeywordRewriteService_HandleCallback_Completed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svc.Keyword.Create(ctx, &models.KeywordRewriteRequest{Keyword: "cà phê", UserID: "user-7"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, err := f.svc.Keyword.HandleCallback(ctx, &models.KeywordRewriteCallback{
		RewriteID: job.ID,
		Status:    models.JobStatusCompleted,
		Title:     "Cà phê sáng",
		Content:   "Generated article",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != models.JobStatusCompleted || done.CompletedAt == nil {
		t.Errorf("expected completed job, got %+v", done)
	}

	var draft *models.RewrittenArticle
	for _, d := range f.store.Rewritten {
		draft = d
	}
	if len(f.store.Rewritten) != 1 {
		t.Fatalf("expected one draft, got %d", len(f.store.Rewritten))
	}
	if draft.Title != "Cà phê sáng" || draft.Content != "Generated article" {
		t.Errorf("unexpected draft %+v", draft)
	}
	if !draft.AIGenerated || draft.Status != models.DraftStatusPending || draft.UserID != "user-7" {
		t.Errorf("expected pending ai generated draft for user-7, got %+v", draft)
	}

	_, err = f.svc.Keyword.HandleCallback(ctx, &models.KeywordRewriteCallback{
		RewriteID: job.ID,
		Status:    models.JobStatusCompleted,
		Content:   "again",
	})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for a duplicate callback, got %v", err)
	}
}

func TestKeywordRewriteService_HandleCallback_Failed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, _ := f.svc.Keyword.Create(ctx, &models.KeywordRewriteRequest{Keyword: "x"})

	failed, err := f.svc.Keyword.HandleCallback(ctx, &models.KeywordRewriteCallback{RewriteID: job.ID, Status: models.JobStatusFailed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.Status != models.JobStatusFailed || failed.ErrorMessage == "" {
		t.Errorf("expected failed job with message, got %+v", failed)
	}
	if len(f.store.Rewritten) != 0 {
		t.Error("expected no draft for a failed rewrite")
	}
}

func TestKeywordRewriteService_HandleCallback_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Keyword.HandleCallback(ctx, &models.KeywordRewriteCallback{RewriteID: "x", Status: "done"})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	_, err = f.svc.Keyword.HandleCallback(ctx, &models.KeywordRewriteCallback{RewriteID: "missing", Status: models.JobStatusFailed})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	queued, err := f.svc.Keyword.Queue(ctx, []models.KeywordRewriteRequest{{Keyword: "later"}})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	_, err = f.svc.Keyword.HandleCallback(ctx, &models.KeywordRewriteCallback{RewriteID: queued[0].ID, Status: models.JobStatusFailed})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for a pending job, got %v", err)
	}
}

func TestKeywordRewriteService_Queue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	jobs, err := f.svc.Keyword.Queue(ctx, []models.KeywordRewriteRequest{{Keyword: "a"}, {Content: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		if j.Status != models.JobStatusPending {
			t.Errorf("expected pending, got %s", j.Status)
		}
	}
	if f.dispatcher.Dispatched() != 0 {
		t.Error("expected queued jobs not to be dispatched immediately")
	}

	_, err = f.svc.Keyword.Queue(ctx, []models.KeywordRewriteRequest{{Keyword: "ok"}, {}})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if len(f.store.Keyword) != 2 {
		t.Errorf("expected invalid batch to store nothing, got %d jobs", len(f.store.Keyword))
	}

	pending, err := f.svc.Keyword.List(ctx, models.JobStatusPending, 10)
	if err != nil || len(pending) != 2 {
		t.Errorf("expected 2 pending jobs, got %d (%v)", len(pending), err)
	}
}

func newFastProcessor() (*service.Services, *mocks.MockDispatcher) {
	repos, _ := mocks.NewRepositories()
	cfg := config.Default()
	cfg.Jobs.PollInterval = 5 * time.Millisecond

	jobs := mocks.NewMockDispatcher()
	svc := service.NewServices(repos, service.Deps{
		Gateway:    mocks.NewMockGateway(),
		Dispatcher: jobs,
		Now:        func() time.Time { return fixedNow },
	}, cfg, zerolog.Nop())
	return svc, jobs
}

func TestKeywordRewriteService_Processor(t *testing.T) {
	svc, _ := newFastProcessor()
	ctx := context.Background()

	queued, err := svc.Keyword.Queue(ctx, []models.KeywordRewriteRequest{{Keyword: "phở"}})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}

	svc.Keyword.StartProcessor(ctx)
	defer svc.Keyword.StopProcessor()

	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := svc.Keyword.Get(ctx, queued[0].ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if job.Status == models.JobStatusProcessing {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected job to be dispatched, still %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestKeywordRewriteService_StopRightAfterStart(t *testing.T) {
	svc, jobs := newFastProcessor()
	ctx := context.Background()

	svc.Keyword.StartProcessor(ctx)
	svc.Keyword.StopProcessor()

	queued, err := svc.Keyword.Queue(ctx, []models.KeywordRewriteRequest{{Keyword: "bún chả"}})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	job, err := svc.Keyword.Get(ctx, queued[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != models.JobStatusPending || jobs.Dispatched() != 0 {
		t.Errorf("expected processor to be stopped, job is %s after %d dispatches", job.Status, jobs.Dispatched())
	}
}
