package aiprovider

import (
	"context"
	"net/http"
	"strings"

	"github.com/magazine-cms/internal/models"
)

const anthropicVersion = "2023-06-01"

type anthropic struct {
	client *http.Client
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *anthropic) headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}
}

// TestConnection only checks the status of the models endpoint.
func (p *anthropic) TestConnection(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	return nil, doJSON(ctx, p.client, http.MethodGet, baseURL+"/models", p.headers(apiKey), nil, nil)
}

func (p *anthropic) Rewrite(ctx context.Context, baseURL, prompt string, s models.AISetting) (string, error) {
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	req := anthropicRequest{
		Model:       s.ModelName,
		MaxTokens:   maxTokens,
		Temperature: s.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp anthropicResponse
	if err := doJSON(ctx, p.client, http.MethodPost, baseURL+"/messages", p.headers(s.APIKey), req, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
