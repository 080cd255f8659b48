package mocks

import (
	"context"
	"sync"

	"github.com/magazine-cms/internal/dispatcher"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
)

// Verify interface compliance
var (
	_ service.AIGateway     = (*MockGateway)(nil)
	_ service.JobDispatcher = (*MockDispatcher)(nil)
)

// MockGateway is a mock implementation of AIGateway
type MockGateway struct {
	RewriteFunc        func(ctx context.Context, content string, settings models.AISetting) (string, error)
	TestConnectionFunc func(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult

	mu            sync.Mutex
	RewriteCalls  int
	TestRequests  []models.ConnectionTestRequest
	LastRewritten string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Rewrite(ctx context.Context, content string, settings models.AISetting) (string, error) {
	m.mu.Lock()
	m.RewriteCalls++
	m.LastRewritten = content
	m.mu.Unlock()

	if m.RewriteFunc != nil {
		return m.RewriteFunc(ctx, content, settings)
	}
	return "rewritten: " + content, nil
}

func (m *MockGateway) TestConnection(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult {
	m.mu.Lock()
	m.TestRequests = append(m.TestRequests, req)
	m.mu.Unlock()

	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx, req)
	}
	return models.ConnectionTestResult{OK: true}
}

// Calls returns how many rewrites were requested
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RewriteCalls
}

// MockDispatcher is a mock implementation of JobDispatcher
type MockDispatcher struct {
	StartScrapeFunc func(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error)
	DispatchFunc    func(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error)
	Healthy         bool

	mu           sync.Mutex
	Payloads     []any
	Endpoints    []string
	Scrapes      []models.ScrapeRequest
	HealthChecks []string
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{Healthy: true}
}

func (m *MockDispatcher) StartScrapeJob(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error) {
	m.mu.Lock()
	m.Scrapes = append(m.Scrapes, req)
	m.mu.Unlock()

	if m.StartScrapeFunc != nil {
		return m.StartScrapeFunc(ctx, req)
	}
	return &models.ScrapeResult{Started: true, JobID: "scrape-1", Via: "http", Message: "scrape started"}, nil
}

func (m *MockDispatcher) EnsureServiceRunning(ctx context.Context, baseURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HealthChecks = append(m.HealthChecks, baseURL)
	return m.Healthy
}

func (m *MockDispatcher) DispatchProcessingJob(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error) {
	m.mu.Lock()
	m.Endpoints = append(m.Endpoints, endpoint)
	m.Payloads = append(m.Payloads, payload)
	m.mu.Unlock()

	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, endpoint, payload)
	}
	return &dispatcher.Result{Via: "http", StatusCode: 202}, nil
}

func (m *MockDispatcher) KeywordServiceURL() string {
	return "http://keyword.test"
}

func (m *MockDispatcher) KeywordProcessEndpoint() string {
	return "http://keyword.test/api/keyword_rewrite/process"
}

func (m *MockDispatcher) CallbackURL() string {
	return "http://cms.test/v1/callbacks/keyword-rewrite"
}

// Dispatched returns how many processing jobs were sent
func (m *MockDispatcher) Dispatched() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Payloads)
}
