package validation

import (
	"strings"
	"testing"

	"github.com/magazine-cms/internal/models"
)

func strPtr(s string) *string { return &s }

func hasField(errors []ValidationError, field string) bool {
	for _, err := range errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestValidateRawArticle(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		article    *models.RawArticleNDJSON
		wantErrors int
		wantFields []string
	}{
		{
			name: "valid article with all fields",
			article: &models.RawArticleNDJSON{
				Title:      "Tin nóng",
				Body:       "Nội dung bài viết",
				SourceURL:  "https://vnexpress.net/tin-nong-1",
				SourceName: "vnexpress",
				ImageURL:   "https://cdn.example.com/a.jpg",
			},
			wantErrors: 0,
		},
		{
			name:       "missing title and body",
			article:    &models.RawArticleNDJSON{SourceURL: "https://example.com/a"},
			wantErrors: 2,
			wantFields: []string{"title", "body"},
		},
		{
			name: "whitespace-only title",
			article: &models.RawArticleNDJSON{
				Title: "   ",
				Body:  "body",
			},
			wantErrors: 1,
			wantFields: []string{"title"},
		},
		{
			name: "invalid source url",
			article: &models.RawArticleNDJSON{
				Title:     "Title",
				Body:      "Body",
				SourceURL: "ftp://example.com/file",
			},
			wantErrors: 1,
			wantFields: []string{"source_url"},
		},
		{
			name: "invalid image url",
			article: &models.RawArticleNDJSON{
				Title:    "Title",
				Body:     "Body",
				ImageURL: "not a url",
			},
			wantErrors: 1,
			wantFields: []string{"image_url"},
		},
		{
			name: "title too long",
			article: &models.RawArticleNDJSON{
				Title: strings.Repeat("a", maxTitleLength+1),
				Body:  "Body",
			},
			wantErrors: 1,
			wantFields: []string{"title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.ValidateRawArticle(tt.article)
			if len(errors) != tt.wantErrors {
				t.Errorf("ValidateRawArticle() got %d errors, want %d. Errors: %v", len(errors), tt.wantErrors, errors)
			}
			for _, wantField := range tt.wantFields {
				if !hasField(errors, wantField) {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestDuplicateSourceURLDetection(t *testing.T) {
	validator := NewValidator()

	article := &models.RawArticleNDJSON{
		Title:     "Article One",
		Body:      "Body content",
		SourceURL: "https://example.com/same",
	}

	if errors := validator.ValidateRawArticle(article); len(errors) != 0 {
		t.Fatalf("First article should be valid, got %v", errors)
	}
	validator.AddSourceURL(article.SourceURL)

	errors := validator.ValidateRawArticle(&models.RawArticleNDJSON{
		Title:     "Article Two",
		Body:      "Other body",
		SourceURL: "https://example.com/same",
	})
	if len(errors) != 1 || errors[0].Message != "duplicate source_url" {
		t.Errorf("Expected a single 'duplicate source_url' error, got %v", errors)
	}
}

func TestValidateDraftInput(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name           string
		input          *models.DraftInput
		requireContent bool
		wantFields     []string
	}{
		{
			name:           "standalone draft with title and content",
			input:          &models.DraftInput{Title: strPtr("Hello"), Content: strPtr("<p>Body</p>")},
			requireContent: true,
		},
		{
			name:           "standalone draft missing content",
			input:          &models.DraftInput{Title: strPtr("Hello")},
			requireContent: true,
			wantFields:     []string{"content"},
		},
		{
			name:  "partial update leaves title untouched",
			input: &models.DraftInput{Content: strPtr("new body")},
		},
		{
			name:       "partial update cannot blank the title",
			input:      &models.DraftInput{Title: strPtr("  ")},
			wantFields: []string{"title"},
		},
		{
			name:       "invalid category id",
			input:      &models.DraftInput{CategoryID: strPtr("sports")},
			wantFields: []string{"category_id"},
		},
		{
			name:  "empty category id clears the category",
			input: &models.DraftInput{CategoryID: strPtr("")},
		},
		{
			name:       "meta description too long",
			input:      &models.DraftInput{MetaDescription: strPtr(strings.Repeat("x", maxMetaDescriptionLength+1))},
			wantFields: []string{"meta_description"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.ValidateDraftInput(tt.input, tt.requireContent)
			if len(errors) != len(tt.wantFields) {
				t.Errorf("got %d errors, want %d: %v", len(errors), len(tt.wantFields), errors)
			}
			for _, wantField := range tt.wantFields {
				if !hasField(errors, wantField) {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestValidateDraftInput_CategoryForeignKey(t *testing.T) {
	validator := NewValidator()
	validator.SetCategoryIDCache([]string{"550e8400-e29b-41d4-a716-446655440000"})

	known := &models.DraftInput{CategoryID: strPtr("550e8400-e29b-41d4-a716-446655440000")}
	if errors := validator.ValidateDraftInput(known, false); len(errors) != 0 {
		t.Errorf("known category should be valid, got %v", errors)
	}

	unknown := &models.DraftInput{CategoryID: strPtr("550e8400-e29b-41d4-a716-446655440001")}
	errors := validator.ValidateDraftInput(unknown, false)
	if len(errors) != 1 || errors[0].Message != "referenced category does not exist" {
		t.Errorf("expected FK error, got %v", errors)
	}
}

func TestValidateDraftInput_EmptyCategoryCache(t *testing.T) {
	input := &models.DraftInput{CategoryID: strPtr("550e8400-e29b-41d4-a716-446655440000")}

	if errors := NewValidator().ValidateDraftInput(input, false); len(errors) != 0 {
		t.Errorf("without a loaded cache only the format is checked, got %v", errors)
	}

	validator := NewValidator()
	validator.SetCategoryIDCache(nil)
	errors := validator.ValidateDraftInput(input, false)
	if len(errors) != 1 || errors[0].Message != "referenced category does not exist" {
		t.Errorf("expected FK error with no categories, got %v", errors)
	}
}

func TestKebabCaseValidation(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		slug  string
		valid bool
	}{
		{"valid-slug", true},
		{"tin-nong-1a2b3c4d-1700000000000000", true},
		{"a", true},
		{"Invalid-Slug", false},
		{"invalid_slug", false},
		{"invalid slug", false},
		{"-starts-with-dash", false},
		{"ends-with-dash-", false},
		{"double--dash", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			errors := validator.ValidateApprovedInput(&models.ApprovedInput{Slug: strPtr(tt.slug)})
			hasSlugError := hasField(errors, "slug")
			if tt.valid && hasSlugError {
				t.Errorf("Slug '%s' should be valid", tt.slug)
			}
			if !tt.valid && !hasSlugError {
				t.Errorf("Slug '%s' should be invalid", tt.slug)
			}
		})
	}
}

func TestValidateAISetting(t *testing.T) {
	validator := NewValidator()

	valid := func() *models.AISetting {
		return &models.AISetting{
			Provider:    models.AIProviderOpenAI,
			APIKey:      "sk-test",
			ModelName:   "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   2000,
		}
	}

	tests := []struct {
		name       string
		mutate     func(s *models.AISetting)
		wantFields []string
	}{
		{name: "valid settings", mutate: func(s *models.AISetting) {}},
		{name: "unknown provider", mutate: func(s *models.AISetting) { s.Provider = "gemini" }, wantFields: []string{"provider"}},
		{name: "temperature above range", mutate: func(s *models.AISetting) { s.Temperature = 2.5 }, wantFields: []string{"temperature"}},
		{name: "negative temperature", mutate: func(s *models.AISetting) { s.Temperature = -0.1 }, wantFields: []string{"temperature"}},
		{name: "zero max tokens", mutate: func(s *models.AISetting) { s.MaxTokens = 0 }, wantFields: []string{"max_tokens"}},
		{name: "negative quota", mutate: func(s *models.AISetting) { s.MaxDailyRewrites = -1 }, wantFields: []string{"max_daily_rewrites"}},
		{name: "zero quota means unlimited", mutate: func(s *models.AISetting) { s.MaxDailyRewrites = 0 }},
		{name: "bad api url", mutate: func(s *models.AISetting) { s.APIURL = "localhost:11434" }, wantFields: []string{"api_url"}},
		{
			name: "custom provider requires url",
			mutate: func(s *models.AISetting) {
				s.Provider = models.AIProviderCustom
				s.ModelName = ""
			},
			wantFields: []string{"api_url"},
		},
		{name: "empty api key is accepted at save time", mutate: func(s *models.AISetting) { s.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			errors := validator.ValidateAISetting(s)
			if len(errors) != len(tt.wantFields) {
				t.Errorf("got %d errors, want %d: %v", len(errors), len(tt.wantFields), errors)
			}
			for _, wantField := range tt.wantFields {
				if !hasField(errors, wantField) {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestValidateScrapeRequest(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		req        *models.ScrapeRequest
		wantFields []string
	}{
		{name: "valid", req: &models.ScrapeRequest{URL: "https://facebook.com/page", Limit: 10}},
		{name: "missing url", req: &models.ScrapeRequest{}, wantFields: []string{"url"}},
		{name: "negative limit", req: &models.ScrapeRequest{URL: "https://x.com", Limit: -1}, wantFields: []string{"limit"}},
		{name: "profile without use_profile", req: &models.ScrapeRequest{URL: "https://x.com", ChromeProfile: "Default"}, wantFields: []string{"chrome_profile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.ValidateScrapeRequest(tt.req)
			if len(errors) != len(tt.wantFields) {
				t.Errorf("got %d errors, want %d: %v", len(errors), len(tt.wantFields), errors)
			}
			for _, wantField := range tt.wantFields {
				if !hasField(errors, wantField) {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestValidateKeywordRewrite(t *testing.T) {
	validator := NewValidator()

	if errs := validator.ValidateKeywordRewrite(&models.KeywordRewriteRequest{Keyword: "bitcoin"}); len(errs) != 0 {
		t.Errorf("keyword only should be valid, got %v", errs)
	}
	if errs := validator.ValidateKeywordRewrite(&models.KeywordRewriteRequest{Content: "some text"}); len(errs) != 0 {
		t.Errorf("content only should be valid, got %v", errs)
	}
	if errs := validator.ValidateKeywordRewrite(&models.KeywordRewriteRequest{}); len(errs) != 1 {
		t.Errorf("empty request should fail, got %v", errs)
	}
	if errs := validator.ValidateKeywordRewrite(&models.KeywordRewriteRequest{Keyword: "a", Content: "b"}); len(errs) != 1 {
		t.Errorf("both fields should fail, got %v", errs)
	}
}

func TestValidateCallback(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		cb         *models.KeywordRewriteCallback
		wantFields []string
	}{
		{name: "completed", cb: &models.KeywordRewriteCallback{RewriteID: "r1", Status: models.JobStatusCompleted, Content: "text"}},
		{name: "failed without content", cb: &models.KeywordRewriteCallback{RewriteID: "r1", Status: models.JobStatusFailed, Error: "boom"}},
		{name: "completed without content", cb: &models.KeywordRewriteCallback{RewriteID: "r1", Status: models.JobStatusCompleted}, wantFields: []string{"content"}},
		{name: "processing is not a result", cb: &models.KeywordRewriteCallback{RewriteID: "r1", Status: models.JobStatusProcessing}, wantFields: []string{"status"}},
		{name: "missing id", cb: &models.KeywordRewriteCallback{Status: models.JobStatusFailed}, wantFields: []string{"rewrite_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.ValidateCallback(tt.cb)
			if len(errors) != len(tt.wantFields) {
				t.Errorf("got %d errors, want %d: %v", len(errors), len(tt.wantFields), errors)
			}
			for _, wantField := range tt.wantFields {
				if !hasField(errors, wantField) {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	validator := NewValidator()

	errors := validator.ValidateCategory(&models.Category{
		Name: "Thể thao",
		Subcategories: []models.Subcategory{
			{Name: "Bóng đá"},
			{Name: "bóng đá"},
			{Name: " "},
		},
	})
	if len(errors) != 2 {
		t.Fatalf("expected duplicate and empty subcategory errors, got %v", errors)
	}
	if !hasField(errors, "subcategories[1].name") || !hasField(errors, "subcategories[2].name") {
		t.Errorf("unexpected fields %v", errors)
	}
}

func TestErrors(t *testing.T) {
	var none Errors
	if none.Err() != nil {
		t.Error("empty list should not be an error")
	}

	errs := Errors{{Field: "title", Message: "title is required"}, {Field: "body", Message: "body is required"}}
	if got := errs.Error(); got != "title: title is required; body: body is required" {
		t.Errorf("Error() = %q", got)
	}
}

func BenchmarkValidateRawArticle(b *testing.B) {
	validator := NewValidator()
	article := &models.RawArticleNDJSON{
		Title:     "Benchmark title",
		Body:      strings.Repeat("word ", 400),
		SourceURL: "https://example.com/a",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		validator.ValidateRawArticle(article)
	}
}
