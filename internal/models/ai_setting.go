package models

import (
	"time"
)

// AIProvider identifies a supported AI rewriting backend
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderMistral   AIProvider = "mistral"
	AIProviderOllama    AIProvider = "ollama"
	AIProviderCustom    AIProvider = "custom"
)

// ValidAIProviders defines the closed provider set
var ValidAIProviders = map[AIProvider]bool{
	AIProviderOpenAI:    true,
	AIProviderAnthropic: true,
	AIProviderMistral:   true,
	AIProviderOllama:    true,
	AIProviderCustom:    true,
}

// AISetting is the singleton AI configuration row
type AISetting struct {
	Provider         AIProvider `json:"provider" db:"provider"`
	APIURL           string     `json:"api_url" db:"api_url"`
	APIKey           string     `json:"api_key,omitempty" db:"api_key"`
	ModelName        string     `json:"model_name" db:"model_name"`
	Temperature      float64    `json:"temperature" db:"temperature"`
	MaxTokens        int        `json:"max_tokens" db:"max_tokens"`
	PromptTemplate   string     `json:"prompt_template" db:"prompt_template"`
	AutoApprove      bool       `json:"auto_approve" db:"auto_approve"`
	MaxDailyRewrites int        `json:"max_daily_rewrites" db:"max_daily_rewrites"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Redacted returns a copy safe to render, with the API key masked.
func (s AISetting) Redacted() AISetting {
	if len(s.APIKey) > 4 {
		s.APIKey = "****" + s.APIKey[len(s.APIKey)-4:]
	} else if s.APIKey != "" {
		s.APIKey = "****"
	}
	return s
}

// ConnectionTestRequest is the input of a provider connectivity check
type ConnectionTestRequest struct {
	Provider  AIProvider `json:"provider"`
	APIURL    string     `json:"api_url"`
	APIKey    string     `json:"api_key"`
	ModelName string     `json:"model_name"`
}

// ConnectionTestResult reports the outcome of a provider connectivity check
type ConnectionTestResult struct {
	OK     bool     `json:"ok"`
	Models []string `json:"models,omitempty"`
	Error  string   `json:"error,omitempty"`
}
