package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/models"
	"github.com/rs/zerolog"
)

type launch struct {
	name string
	args []string
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches []launch
	err      error
	onLaunch func()
}

func (f *fakeLauncher) Launch(name string, args ...string) error {
	f.mu.Lock()
	f.launches = append(f.launches, launch{name: name, args: args})
	f.mu.Unlock()
	if f.onLaunch != nil {
		f.onLaunch()
	}
	return f.err
}

func (f *fakeLauncher) calls() []launch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]launch(nil), f.launches...)
}

func testConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		ScrapeTimeout:     100 * time.Millisecond,
		DispatchTimeout:   100 * time.Millisecond,
		RawConnectTimeout: 100 * time.Millisecond,
		RawTotalTimeout:   200 * time.Millisecond,
		HealthTimeout:     50 * time.Millisecond,
		HealthRetries:     3,
		HealthInterval:    10 * time.Millisecond,
		StartScriptUnix:   "./start_services.sh",
		StartScriptWin:    "start_services.bat",
		ScraperCommand:    "python3",
		ScraperScript:     "scraper/main.py",
	}
}

func TestStartScrapeJob_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/scrape" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body scrapePayload
		json.NewDecoder(r.Body).Decode(&body)
		if body.URL != "https://facebook.com/page" || body.Limit != 5 || !body.UseProfile {
			t.Errorf("unexpected payload %+v", body)
		}
		w.Write([]byte(`{"job_id":"job-42"}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.ScraperURL = server.URL
	launcher := &fakeLauncher{}
	d := New(cfg, zerolog.Nop(), WithLauncher(launcher))

	result, err := d.StartScrapeJob(context.Background(), models.ScrapeRequest{
		URL: "https://facebook.com/page", UseProfile: true, ChromeProfile: "Default", Limit: 5,
	})
	if err != nil {
		t.Fatalf("StartScrapeJob: %v", err)
	}
	if !result.Started || result.Via != "http" || result.JobID != "job-42" {
		t.Errorf("unexpected result %+v", result)
	}
	if len(launcher.calls()) != 0 {
		t.Error("process fallback must not run when HTTP succeeds")
	}
}

func TestStartScrapeJob_TimeoutFallsBackToProcess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.ScraperURL = server.URL
	launcher := &fakeLauncher{}
	d := New(cfg, zerolog.Nop(), WithLauncher(launcher))

	result, err := d.StartScrapeJob(context.Background(), models.ScrapeRequest{
		URL: "https://facebook.com/page", UseProfile: true, ChromeProfile: "Work",
	})
	if err != nil {
		t.Fatalf("StartScrapeJob: %v", err)
	}
	if !result.Started || result.Via != "process" {
		t.Errorf("expected optimistic process start, got %+v", result)
	}

	calls := launcher.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one launch, got %d", len(calls))
	}
	want := "scraper/main.py --url https://facebook.com/page --save_to_db --headless --use_profile --chrome_profile Work"
	if calls[0].name != "python3" || strings.Join(calls[0].args, " ") != want {
		t.Errorf("unexpected launch %s %v", calls[0].name, calls[0].args)
	}
}

func TestStartScrapeJob_AllTiersFail(t *testing.T) {
	cfg := testConfig()
	cfg.ScraperURL = "http://127.0.0.1:1"
	launcher := &fakeLauncher{err: errors.New("python3 not found")}
	d := New(cfg, zerolog.Nop(), WithLauncher(launcher))

	_, err := d.StartScrapeJob(context.Background(), models.ScrapeRequest{URL: "https://x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http:") || !strings.Contains(err.Error(), "process:") {
		t.Errorf("error should name every tier, got %v", err)
	}
}

func TestEnsureServiceRunning_AlreadyHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	launcher := &fakeLauncher{}
	d := New(testConfig(), zerolog.Nop(), WithLauncher(launcher))

	if !d.EnsureServiceRunning(context.Background(), server.URL) {
		t.Fatal("expected healthy service")
	}
	if len(launcher.calls()) != 0 {
		t.Error("start script must not run for a healthy service")
	}
}

func TestEnsureServiceRunning_UnreachableReturnsFalse(t *testing.T) {
	launcher := &fakeLauncher{}
	d := New(testConfig(), zerolog.Nop(), WithLauncher(launcher), WithGOOS("linux"))

	start := time.Now()
	if d.EnsureServiceRunning(context.Background(), "http://127.0.0.1:1") {
		t.Fatal("expected false for an unreachable service")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("health wait was not bounded by the retry ceiling")
	}

	calls := launcher.calls()
	if len(calls) != 1 || calls[0].name != "sh" || calls[0].args[0] != "./start_services.sh" {
		t.Errorf("unexpected launches %+v", calls)
	}
}

func TestEnsureServiceRunning_WindowsScript(t *testing.T) {
	launcher := &fakeLauncher{}
	d := New(testConfig(), zerolog.Nop(), WithLauncher(launcher), WithGOOS("windows"))

	d.EnsureServiceRunning(context.Background(), "http://127.0.0.1:1")

	calls := launcher.calls()
	if len(calls) != 1 || calls[0].name != "cmd" || calls[0].args[1] != "start_services.bat" {
		t.Errorf("unexpected launches %+v", calls)
	}
}

func TestEnsureServiceRunning_BecomesHealthyAfterLaunch(t *testing.T) {
	var started atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !started.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	launcher := &fakeLauncher{onLaunch: func() { started.Store(true) }}
	d := New(testConfig(), zerolog.Nop(), WithLauncher(launcher))

	if !d.EnsureServiceRunning(context.Background(), server.URL) {
		t.Fatal("expected service to become healthy")
	}
}

func TestDispatchProcessingJob_FallsBackToRawTier(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["rewrite_id"] != "r1" {
			t.Errorf("payload lost in fallback: %v", body)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := New(testConfig(), zerolog.Nop(), WithLauncher(&fakeLauncher{}))
	result, err := d.DispatchProcessingJob(context.Background(), server.URL, map[string]string{"rewrite_id": "r1"})
	if err != nil {
		t.Fatalf("DispatchProcessingJob: %v", err)
	}
	if result.Via != "raw_http" || result.StatusCode != http.StatusAccepted {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestDispatchProcessingJob_BothTiersFail(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := New(testConfig(), zerolog.Nop(), WithLauncher(&fakeLauncher{}))
	if _, err := d.DispatchProcessingJob(context.Background(), server.URL, map[string]string{}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly one call per tier, got %d", calls.Load())
	}
}

type stubStrategy struct {
	name  string
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Send(context.Context, Request) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Result{}, nil
}

func TestChain_FirstSuccessShortCircuits(t *testing.T) {
	first := &stubStrategy{name: "a", err: errors.New("down")}
	second := &stubStrategy{name: "b"}
	third := &stubStrategy{name: "c"}

	result, err := Chain{first, second, third}.Send(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Via != "b" {
		t.Errorf("Via = %q, want b", result.Via)
	}
	if third.calls != 0 {
		t.Error("strategies after the first success must not run")
	}
}

func TestChain_Empty(t *testing.T) {
	if _, err := (Chain{}).Send(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

func TestKeywordProcessEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.KeywordServiceURL = "http://localhost:5001/"
	d := New(cfg, zerolog.Nop(), WithLauncher(&fakeLauncher{}))

	if got := d.KeywordProcessEndpoint(); got != "http://localhost:5001/api/keyword_rewrite/process" {
		t.Errorf("KeywordProcessEndpoint() = %q", got)
	}
}
