// Package dispatcher starts fire-and-forget work on the external scraper and
// keyword rewrite services. Each call walks an ordered chain of transport
// strategies and tolerates the target service being down.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/models"
	"github.com/rs/zerolog"
)

const (
	scrapePath          = "/api/scrape"
	keywordProcessPath  = "/api/keyword_rewrite/process"
	healthPath          = "/health"
	defaultHealthRetry  = 10
	defaultHealthPeriod = time.Second
)

// Dispatcher implements the scrape, health check and processing job flows.
type Dispatcher struct {
	cfg        config.DispatcherConfig
	goos       string
	launcher   Launcher
	scrape     Chain
	processing Chain
	health     *http.Client
	log        zerolog.Logger
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithLauncher replaces the os/exec launcher
func WithLauncher(l Launcher) Option {
	return func(d *Dispatcher) { d.launcher = l }
}

// WithGOOS overrides the host OS used to pick a start script
func WithGOOS(goos string) Option {
	return func(d *Dispatcher) { d.goos = goos }
}

// New builds a dispatcher from configuration
func New(cfg config.DispatcherConfig, log zerolog.Logger, opts ...Option) *Dispatcher {
	if cfg.HealthRetries <= 0 {
		cfg.HealthRetries = defaultHealthRetry
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthPeriod
	}

	d := &Dispatcher{
		cfg:    cfg,
		goos:   runtime.GOOS,
		health: &http.Client{Timeout: cfg.HealthTimeout},
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.launcher == nil {
		d.launcher = NewExecLauncher(log)
	}

	d.scrape = Chain{
		NewHTTPStrategy(cfg.ScrapeTimeout),
		NewProcessStrategy(d.launcher, cfg.ScraperCommand),
	}
	d.processing = Chain{
		NewHTTPStrategy(cfg.DispatchTimeout),
		NewRawHTTPStrategy(cfg.RawConnectTimeout, cfg.RawTotalTimeout),
	}

	return d
}

// CallbackURL is where downstream services post processing results
func (d *Dispatcher) CallbackURL() string {
	return d.cfg.CallbackURL
}

// KeywordServiceURL is the base URL of the keyword rewrite service
func (d *Dispatcher) KeywordServiceURL() string {
	return d.cfg.KeywordServiceURL
}

// KeywordProcessEndpoint is the keyword service's processing endpoint
func (d *Dispatcher) KeywordProcessEndpoint() string {
	return strings.TrimRight(d.cfg.KeywordServiceURL, "/") + keywordProcessPath
}

type scrapePayload struct {
	URL           string `json:"url"`
	UseProfile    bool   `json:"use_profile"`
	ChromeProfile string `json:"chrome_profile"`
	Limit         int    `json:"limit"`
}

// StartScrapeJob asks the scraper service to scrape a page and falls back to
// launching the scraper CLI directly. In the fallback case the result is
// optimistic: the process started, nothing more is known.
func (d *Dispatcher) StartScrapeJob(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error) {
	result, err := d.scrape.Send(ctx, Request{
		URL: strings.TrimRight(d.cfg.ScraperURL, "/") + scrapePath,
		Payload: scrapePayload{
			URL:           req.URL,
			UseProfile:    req.UseProfile,
			ChromeProfile: req.ChromeProfile,
			Limit:         req.Limit,
		},
		Args: d.scraperArgs(req),
	})
	if err != nil {
		d.log.Error().Err(err).Str("url", req.URL).Msg("Failed to start scrape job")
		return nil, err
	}

	out := &models.ScrapeResult{Started: true, Via: result.Via}
	switch result.Via {
	case "http":
		var body struct {
			JobID   string `json:"job_id"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(result.Body, &body)
		out.JobID = body.JobID
		out.Message = body.Message
		if out.Message == "" {
			out.Message = "scrape job accepted by scraper service"
		}
	default:
		d.log.Warn().Str("url", req.URL).Str("via", result.Via).Msg("Scraper service unavailable, launched scraper process")
		out.Message = "scraper service unavailable, scraper process launched"
	}

	d.log.Info().Str("url", req.URL).Str("via", out.Via).Str("job_id", out.JobID).Msg("Scrape job started")
	return out, nil
}

func (d *Dispatcher) scraperArgs(req models.ScrapeRequest) []string {
	var args []string
	if d.cfg.ScraperScript != "" {
		args = append(args, d.cfg.ScraperScript)
	}
	args = append(args, "--url", req.URL, "--save_to_db", "--headless")
	if req.UseProfile {
		args = append(args, "--use_profile")
		if req.ChromeProfile != "" {
			args = append(args, "--chrome_profile", req.ChromeProfile)
		}
	}
	if req.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(req.Limit))
	}
	return args
}

// EnsureServiceRunning reports whether the service at baseURL answers its
// health check, launching its start script and polling once per interval if
// it does not. It blocks for at most HealthRetries intervals.
func (d *Dispatcher) EnsureServiceRunning(ctx context.Context, baseURL string) bool {
	log := d.log.With().Str("service_url", baseURL).Logger()

	if d.healthy(ctx, baseURL) {
		return true
	}

	if script := d.startScript(); script != "" {
		name, args := d.scriptCommand(script)
		if err := d.launcher.Launch(name, args...); err != nil {
			log.Warn().Err(err).Str("script", script).Msg("Failed to launch service start script")
		} else {
			log.Info().Str("script", script).Msg("Service start script launched")
		}
	} else {
		log.Warn().Msg("Service is down and no start script is configured")
	}

	ticker := time.NewTicker(d.cfg.HealthInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= d.cfg.HealthRetries; attempt++ {
		select {
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("Health wait cancelled")
			return false
		case <-ticker.C:
		}
		if d.healthy(ctx, baseURL) {
			log.Info().Int("attempt", attempt).Msg("Service became healthy")
			return true
		}
	}

	log.Warn().Int("attempts", d.cfg.HealthRetries).Msg("Service did not become healthy")
	return false
}

func (d *Dispatcher) healthy(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := d.health.Do(req)
	if err != nil {
		d.log.Debug().Err(err).Str("service_url", baseURL).Msg("Health check failed")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (d *Dispatcher) startScript() string {
	if d.goos == "windows" {
		return d.cfg.StartScriptWin
	}
	return d.cfg.StartScriptUnix
}

func (d *Dispatcher) scriptCommand(script string) (string, []string) {
	if d.goos == "windows" {
		return "cmd", []string{"/C", script}
	}
	return "sh", []string{script}
}

// DispatchProcessingJob posts payload to endpoint, first with the regular
// client and then with the raw fallback client. The error is returned to the
// caller, nothing is retried later.
func (d *Dispatcher) DispatchProcessingJob(ctx context.Context, endpoint string, payload any) (*Result, error) {
	result, err := d.processing.Send(ctx, Request{URL: endpoint, Payload: payload})
	if err != nil {
		d.log.Error().Err(err).Str("endpoint", endpoint).Msg("Processing job dispatch failed")
		return nil, fmt.Errorf("dispatch to %s: %w", endpoint, err)
	}

	if result.Via != "http" {
		d.log.Warn().Str("endpoint", endpoint).Str("via", result.Via).Msg("Processing job dispatched through fallback transport")
	}
	return result, nil
}
