package aiprovider

import (
	"context"
	"net/http"

	"github.com/magazine-cms/internal/models"
)

type ollama struct {
	client *http.Client
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// TestConnection lists local models. Ollama takes no credentials.
func (p *ollama) TestConnection(ctx context.Context, baseURL, _ string) ([]string, error) {
	var tags ollamaTags
	if err := doJSON(ctx, p.client, http.MethodPost, baseURL+"/api/tags", nil, nil, &tags); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (p *ollama) Rewrite(ctx context.Context, baseURL, prompt string, s models.AISetting) (string, error) {
	req := ollamaGenerateRequest{
		Model:  s.ModelName,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: s.Temperature,
			NumPredict:  s.MaxTokens,
		},
	}

	var resp ollamaGenerateResponse
	if err := doJSON(ctx, p.client, http.MethodPost, baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}
