package aiprovider

import (
	"context"
	"errors"
	"net/http"

	"github.com/magazine-cms/internal/models"
)

// custom is a generic endpoint: a GET on the base URL for reachability and a
// JSON POST to the same URL for rewrites.
type custom struct {
	client *http.Client
}

type customRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type customResponse struct {
	Content  string `json:"content"`
	Text     string `json:"text"`
	Response string `json:"response"`
}

func (p *custom) headers(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return bearer(apiKey)
}

func (p *custom) TestConnection(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	if baseURL == "" {
		return nil, errors.New("custom provider requires an API URL")
	}
	return nil, doJSON(ctx, p.client, http.MethodGet, baseURL, p.headers(apiKey), nil, nil)
}

func (p *custom) Rewrite(ctx context.Context, baseURL, prompt string, s models.AISetting) (string, error) {
	if baseURL == "" {
		return "", errors.New("custom provider requires an API URL")
	}
	req := customRequest{
		Model:       s.ModelName,
		Prompt:      prompt,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}

	var resp customResponse
	if err := doJSON(ctx, p.client, http.MethodPost, baseURL, p.headers(s.APIKey), req, &resp); err != nil {
		return "", err
	}
	switch {
	case resp.Content != "":
		return resp.Content, nil
	case resp.Text != "":
		return resp.Text, nil
	default:
		return resp.Response, nil
	}
}
