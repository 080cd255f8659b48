package aiprovider

import (
	"context"
	"net/http"

	"github.com/magazine-cms/internal/models"
)

// openAICompatible serves OpenAI and Mistral, which share the same API shape.
type openAICompatible struct {
	client *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *openAICompatible) TestConnection(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	var list modelList
	err := doJSON(ctx, p.client, http.MethodGet, baseURL+"/models", bearer(apiKey), nil, &list)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (p *openAICompatible) Rewrite(ctx context.Context, baseURL, prompt string, s models.AISetting) (string, error) {
	req := chatRequest{
		Model:       s.ModelName,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}

	var resp chatResponse
	if err := doJSON(ctx, p.client, http.MethodPost, baseURL+"/chat/completions", bearer(s.APIKey), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func bearer(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}
