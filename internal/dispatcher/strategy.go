package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request is one unit of work handed to a strategy chain. HTTP strategies
// POST Payload to URL; process strategies launch a command with Args.
type Request struct {
	URL     string
	Payload any
	Args    []string
}

// Result describes the strategy that accepted a request.
type Result struct {
	Via        string
	StatusCode int
	Body       []byte
}

// Strategy is one transport tier. Implementations do not retry.
type Strategy interface {
	Name() string
	Send(ctx context.Context, req Request) (*Result, error)
}

// Chain tries strategies in order and stops at the first success.
type Chain []Strategy

// Send returns the first successful result, or all failures joined.
func (c Chain) Send(ctx context.Context, req Request) (*Result, error) {
	if len(c) == 0 {
		return nil, errors.New("no transport strategies configured")
	}

	var errs []error
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := s.Send(ctx, req)
		if err == nil {
			result.Via = s.Name()
			return result, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, errors.Join(errs...)
}

// httpStrategy posts JSON with a plain client bounded by a single timeout.
type httpStrategy struct {
	name   string
	client *http.Client
}

// NewHTTPStrategy returns the primary HTTP tier.
func NewHTTPStrategy(timeout time.Duration) Strategy {
	return &httpStrategy{name: "http", client: &http.Client{Timeout: timeout}}
}

// NewRawHTTPStrategy returns the low-level fallback tier: a fresh connection
// per call with separate connect and total timeouts.
func NewRawHTTPStrategy(connectTimeout, totalTimeout time.Duration) Strategy {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		DisableKeepAlives:   true,
		Proxy:               http.ProxyFromEnvironment,
	}
	return &httpStrategy{name: "raw_http", client: &http.Client{Transport: transport, Timeout: totalTimeout}}
}

func (s *httpStrategy) Name() string { return s.name }

func (s *httpStrategy) Send(ctx context.Context, req Request) (*Result, error) {
	if req.URL == "" {
		return nil, errors.New("missing endpoint")
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// processStrategy launches a command and reports success once it has started.
type processStrategy struct {
	launcher Launcher
	command  string
}

// NewProcessStrategy returns the process-launch tier.
func NewProcessStrategy(launcher Launcher, command string) Strategy {
	return &processStrategy{launcher: launcher, command: command}
}

func (s *processStrategy) Name() string { return "process" }

func (s *processStrategy) Send(_ context.Context, req Request) (*Result, error) {
	if s.command == "" {
		return nil, errors.New("no fallback command configured")
	}
	if err := s.launcher.Launch(s.command, req.Args...); err != nil {
		return nil, err
	}
	return &Result{}, nil
}
