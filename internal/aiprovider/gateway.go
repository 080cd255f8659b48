// Package aiprovider talks to the external AI services used to rewrite
// articles. Each provider family has its own Provider implementation and the
// Gateway selects one by the configured provider name.
package aiprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/magazine-cms/internal/models"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownProvider is returned for a provider outside the supported set
	ErrUnknownProvider = errors.New("unknown AI provider")
	// ErrEmptyResponse is returned when a provider answers without text
	ErrEmptyResponse = errors.New("AI provider returned an empty response")
)

// DefaultPromptTemplate is used when the settings carry no template.
const DefaultPromptTemplate = "Rewrite the following article in a fresh, engaging journalistic style. " +
	"Keep every fact, name and number. Return only the rewritten article as HTML.\n\n{content}"

var defaultBaseURLs = map[models.AIProvider]string{
	models.AIProviderOpenAI:    "https://api.openai.com/v1",
	models.AIProviderAnthropic: "https://api.anthropic.com/v1",
	models.AIProviderMistral:   "https://api.mistral.ai/v1",
	models.AIProviderOllama:    "http://localhost:11434",
}

// Provider is one AI backend family.
type Provider interface {
	// TestConnection performs a single reachability round-trip and returns
	// the model names the provider advertises, if it lists any.
	TestConnection(ctx context.Context, baseURL, apiKey string) ([]string, error)
	// Rewrite sends the rendered prompt and returns the generated text.
	Rewrite(ctx context.Context, baseURL, prompt string, settings models.AISetting) (string, error)
}

// Options bounds gateway calls.
type Options struct {
	TestTimeout    time.Duration
	RewriteTimeout time.Duration
}

// Gateway dispatches to the Provider registered for a provider name.
type Gateway struct {
	providers map[models.AIProvider]Provider
	opts      Options
	log       zerolog.Logger
}

// NewGateway builds a gateway with the five supported providers.
func NewGateway(opts Options, log zerolog.Logger) *Gateway {
	client := &http.Client{}
	openAI := &openAICompatible{client: client}

	return NewGatewayWith(map[models.AIProvider]Provider{
		models.AIProviderOpenAI:    openAI,
		models.AIProviderMistral:   openAI,
		models.AIProviderAnthropic: &anthropic{client: client},
		models.AIProviderOllama:    &ollama{client: client},
		models.AIProviderCustom:    &custom{client: client},
	}, opts, log)
}

// NewGatewayWith builds a gateway over an explicit provider table.
func NewGatewayWith(providers map[models.AIProvider]Provider, opts Options, log zerolog.Logger) *Gateway {
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = 10 * time.Second
	}
	if opts.RewriteTimeout <= 0 {
		opts.RewriteTimeout = 60 * time.Second
	}
	return &Gateway{
		providers: providers,
		opts:      opts,
		log:       log.With().Str("component", "ai_gateway").Logger(),
	}
}

// TestConnection checks that the provider is reachable with the given
// credentials. Every failure is reported in the result, never returned.
func (g *Gateway) TestConnection(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult {
	provider, ok := g.providers[req.Provider]
	if !ok {
		return models.ConnectionTestResult{OK: false, Error: fmt.Sprintf("%s: %q", ErrUnknownProvider, req.Provider)}
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.TestTimeout)
	defer cancel()

	modelNames, err := provider.TestConnection(ctx, baseURL(req.Provider, req.APIURL), req.APIKey)
	if err != nil {
		g.log.Warn().Err(err).Str("provider", string(req.Provider)).Msg("AI connection test failed")
		return models.ConnectionTestResult{OK: false, Error: err.Error()}
	}

	g.log.Info().
		Str("provider", string(req.Provider)).
		Int("models", len(modelNames)).
		Msg("AI connection test succeeded")

	return models.ConnectionTestResult{OK: true, Models: modelNames}
}

// Rewrite asks the configured provider for a rewritten version of content.
// It makes exactly one bounded call and never retries.
func (g *Gateway) Rewrite(ctx context.Context, content string, settings models.AISetting) (string, error) {
	provider, ok := g.providers[settings.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, settings.Provider)
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.RewriteTimeout)
	defer cancel()

	start := time.Now()
	text, err := provider.Rewrite(ctx, baseURL(settings.Provider, settings.APIURL), RenderPrompt(settings.PromptTemplate, content), settings)
	if err != nil {
		return "", fmt.Errorf("%s rewrite: %w", settings.Provider, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s rewrite: %w", settings.Provider, ErrEmptyResponse)
	}

	g.log.Info().
		Str("provider", string(settings.Provider)).
		Str("model", settings.ModelName).
		Dur("duration", time.Since(start)).
		Int("chars", len(text)).
		Msg("AI rewrite completed")

	return text, nil
}

// RenderPrompt substitutes the article into the template's {content}
// placeholder, appending it when the template has none.
func RenderPrompt(template, content string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultPromptTemplate
	}
	for _, placeholder := range []string{"{{content}}", "{content}"} {
		if strings.Contains(template, placeholder) {
			return strings.ReplaceAll(template, placeholder, content)
		}
	}
	return template + "\n\n" + content
}

func baseURL(provider models.AIProvider, configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return strings.TrimRight(configured, "/")
	}
	return defaultBaseURLs[provider]
}
