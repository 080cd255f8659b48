package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/models"
)

const (
	maxTitleLength           = 255
	maxMetaTitleLength       = 255
	maxMetaDescriptionLength = 500
	maxTemperature           = 2.0
	maxScrapeLimit           = 500
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Errors is a list of validation errors usable as an error value
type Errors []ValidationError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, ve := range e {
		parts = append(parts, ve.Field+": "+ve.Message)
	}
	return strings.Join(parts, "; ")
}

// Err returns nil for an empty list
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Validator provides validation methods. It remembers source URLs seen in the
// current import batch to reject duplicates.
type Validator struct {
	sourceURLCache   map[string]bool
	categoryIDCache  map[string]bool
	categoriesLoaded bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		sourceURLCache:  make(map[string]bool),
		categoryIDCache: make(map[string]bool),
	}
}

// SetCategoryIDCache sets the known category IDs for FK validation. Once set,
// any id outside the cache is rejected, including when the cache is empty.
func (v *Validator) SetCategoryIDCache(ids []string) {
	v.categoriesLoaded = true
	for _, id := range ids {
		v.categoryIDCache[id] = true
	}
}

// AddSourceURL adds a source URL to the batch uniqueness cache
func (v *Validator) AddSourceURL(u string) {
	if u != "" {
		v.sourceURLCache[u] = true
	}
}

// ValidateRawArticle validates one NDJSON import record
func (v *Validator) ValidateRawArticle(article *models.RawArticleNDJSON) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(article.Title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if len(article.Title) > maxTitleLength {
		errors = append(errors, ValidationError{Field: "title", Message: fmt.Sprintf("title exceeds %d characters", maxTitleLength)})
	}

	if strings.TrimSpace(article.Body) == "" {
		errors = append(errors, ValidationError{Field: "body", Message: "body is required"})
	}

	if article.SourceURL != "" {
		if !isHTTPURL(article.SourceURL) {
			errors = append(errors, ValidationError{Field: "source_url", Message: "source_url must be an http(s) URL", Value: article.SourceURL})
		} else if v.sourceURLCache[article.SourceURL] {
			errors = append(errors, ValidationError{Field: "source_url", Message: "duplicate source_url", Value: article.SourceURL})
		}
	}

	if article.ImageURL != "" && !isHTTPURL(article.ImageURL) {
		errors = append(errors, ValidationError{Field: "image_url", Message: "image_url must be an http(s) URL", Value: article.ImageURL})
	}

	return errors
}

// ValidateDraftInput validates editable draft fields. requireContent is set
// when creating a standalone draft.
func (v *Validator) ValidateDraftInput(in *models.DraftInput, requireContent bool) []ValidationError {
	var errors []ValidationError

	if requireContent {
		if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
			errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
		}
		if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
			errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
		}
	}

	if in.Title != nil {
		if !requireContent && strings.TrimSpace(*in.Title) == "" {
			errors = append(errors, ValidationError{Field: "title", Message: "title cannot be empty"})
		}
		if len(*in.Title) > maxTitleLength {
			errors = append(errors, ValidationError{Field: "title", Message: fmt.Sprintf("title exceeds %d characters", maxTitleLength)})
		}
	}

	if in.MetaTitle != nil && len(*in.MetaTitle) > maxMetaTitleLength {
		errors = append(errors, ValidationError{Field: "meta_title", Message: fmt.Sprintf("meta_title exceeds %d characters", maxMetaTitleLength)})
	}

	if in.MetaDescription != nil && len(*in.MetaDescription) > maxMetaDescriptionLength {
		errors = append(errors, ValidationError{Field: "meta_description", Message: fmt.Sprintf("meta_description exceeds %d characters", maxMetaDescriptionLength)})
	}

	errors = append(errors, v.validateCategoryRef("category_id", in.CategoryID)...)

	if in.SubcategoryID != nil && *in.SubcategoryID != "" && !isValidUUID(*in.SubcategoryID) {
		errors = append(errors, ValidationError{Field: "subcategory_id", Message: "invalid UUID format", Value: *in.SubcategoryID})
	}

	return errors
}

// ValidateApprovedInput validates editable fields of an approved article
func (v *Validator) ValidateApprovedInput(in *models.ApprovedInput) []ValidationError {
	errors := v.ValidateDraftInput(&in.DraftInput, false)

	if in.Slug != nil && !slugRegex.MatchString(*in.Slug) {
		errors = append(errors, ValidationError{Field: "slug", Message: "slug must be kebab-case (lowercase letters, numbers, hyphens)", Value: *in.Slug})
	}

	return errors
}

func (v *Validator) validateCategoryRef(field string, id *string) []ValidationError {
	if id == nil || *id == "" {
		return nil
	}
	if !isValidUUID(*id) {
		return []ValidationError{{Field: field, Message: "invalid UUID format", Value: *id}}
	}
	if v.categoriesLoaded && !v.categoryIDCache[*id] {
		return []ValidationError{{Field: field, Message: "referenced category does not exist", Value: *id}}
	}
	return nil
}

// ValidateAISetting validates the AI settings form
func (v *Validator) ValidateAISetting(s *models.AISetting) []ValidationError {
	var errors []ValidationError

	if s.Provider == "" {
		errors = append(errors, ValidationError{Field: "provider", Message: "provider is required"})
	} else if !models.ValidAIProviders[s.Provider] {
		errors = append(errors, ValidationError{
			Field:   "provider",
			Message: "invalid provider, must be one of: openai, anthropic, mistral, ollama, custom",
			Value:   s.Provider,
		})
	}

	if s.APIURL != "" && !isHTTPURL(s.APIURL) {
		errors = append(errors, ValidationError{Field: "api_url", Message: "api_url must be an http(s) URL", Value: s.APIURL})
	}
	if s.Provider == models.AIProviderCustom && s.APIURL == "" {
		errors = append(errors, ValidationError{Field: "api_url", Message: "api_url is required for the custom provider"})
	}

	if strings.TrimSpace(s.ModelName) == "" && s.Provider != models.AIProviderCustom {
		errors = append(errors, ValidationError{Field: "model_name", Message: "model_name is required"})
	}

	if s.Temperature < 0 || s.Temperature > maxTemperature {
		errors = append(errors, ValidationError{Field: "temperature", Message: "temperature must be between 0 and 2", Value: s.Temperature})
	}

	if s.MaxTokens <= 0 {
		errors = append(errors, ValidationError{Field: "max_tokens", Message: "max_tokens must be positive", Value: s.MaxTokens})
	}

	if s.MaxDailyRewrites < 0 {
		errors = append(errors, ValidationError{Field: "max_daily_rewrites", Message: "max_daily_rewrites cannot be negative", Value: s.MaxDailyRewrites})
	}

	return errors
}

// ValidateScrapeRequest validates a scrape job request
func (v *Validator) ValidateScrapeRequest(req *models.ScrapeRequest) []ValidationError {
	var errors []ValidationError

	if req.URL == "" {
		errors = append(errors, ValidationError{Field: "url", Message: "url is required"})
	} else if !isHTTPURL(req.URL) {
		errors = append(errors, ValidationError{Field: "url", Message: "url must be an http(s) URL", Value: req.URL})
	}

	if req.Limit < 0 || req.Limit > maxScrapeLimit {
		errors = append(errors, ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 0 and %d", maxScrapeLimit), Value: req.Limit})
	}

	if req.ChromeProfile != "" && !req.UseProfile {
		errors = append(errors, ValidationError{Field: "chrome_profile", Message: "chrome_profile requires use_profile"})
	}

	return errors
}

// ValidateKeywordRewrite requires exactly one of keyword or content
func (v *Validator) ValidateKeywordRewrite(req *models.KeywordRewriteRequest) []ValidationError {
	hasKeyword := strings.TrimSpace(req.Keyword) != ""
	hasContent := strings.TrimSpace(req.Content) != ""

	switch {
	case !hasKeyword && !hasContent:
		return []ValidationError{{Field: "keyword", Message: "keyword or content is required"}}
	case hasKeyword && hasContent:
		return []ValidationError{{Field: "keyword", Message: "keyword and content are mutually exclusive"}}
	}
	return nil
}

// ValidateCallback validates an inbound keyword rewrite result
func (v *Validator) ValidateCallback(cb *models.KeywordRewriteCallback) []ValidationError {
	var errors []ValidationError

	if cb.RewriteID == "" {
		errors = append(errors, ValidationError{Field: "rewrite_id", Message: "rewrite_id is required"})
	}

	switch cb.Status {
	case models.JobStatusCompleted:
		if strings.TrimSpace(cb.Content) == "" {
			errors = append(errors, ValidationError{Field: "content", Message: "content is required for a completed rewrite"})
		}
	case models.JobStatusFailed:
	default:
		errors = append(errors, ValidationError{Field: "status", Message: "status must be completed or failed", Value: cb.Status})
	}

	return errors
}

// ValidateCategory validates a category and its subcategories
func (v *Validator) ValidateCategory(c *models.Category) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Name) == "" {
		errors = append(errors, ValidationError{Field: "name", Message: "name is required"})
	}

	seen := make(map[string]bool)
	for i, sub := range c.Subcategories {
		name := strings.TrimSpace(sub.Name)
		field := fmt.Sprintf("subcategories[%d].name", i)
		if name == "" {
			errors = append(errors, ValidationError{Field: field, Message: "name is required"})
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			errors = append(errors, ValidationError{Field: field, Message: "duplicate subcategory", Value: sub.Name})
		}
		seen[key] = true
	}

	return errors
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isValidUUID checks if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
