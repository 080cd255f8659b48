package models

import (
	"time"
)

// JobStatus represents the status of a dispatched keyword rewrite job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// KeywordRewrite is a keyword or content driven article generation job
// executed by the external keyword rewrite service.
type KeywordRewrite struct {
	ID            string     `json:"id" db:"id"`
	Keyword       string     `json:"keyword,omitempty" db:"keyword"`
	Content       string     `json:"content,omitempty" db:"content"`
	UserID        string     `json:"user_id" db:"user_id"`
	Status        JobStatus  `json:"status" db:"status"`
	ResultTitle   string     `json:"result_title,omitempty" db:"result_title"`
	ResultContent string     `json:"result_content,omitempty" db:"result_content"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`
	Attempts      int        `json:"attempts" db:"attempts"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// KeywordRewriteRequest creates a keyword rewrite job. Exactly one of Keyword
// or Content is expected.
type KeywordRewriteRequest struct {
	Keyword string `json:"keyword"`
	Content string `json:"content"`
	UserID  string `json:"-"`
}

// KeywordRewriteCallback is the payload the keyword service posts back
type KeywordRewriteCallback struct {
	RewriteID string    `json:"rewrite_id"`
	Status    JobStatus `json:"status"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Error     string    `json:"error"`
}

// ScrapeRequest starts a social-media scrape on the scraper service
type ScrapeRequest struct {
	URL           string `json:"url"`
	UseProfile    bool   `json:"use_profile"`
	ChromeProfile string `json:"chrome_profile"`
	Limit         int    `json:"limit"`
}

// ScrapeResult reports how a scrape was started
type ScrapeResult struct {
	Started bool   `json:"started"`
	JobID   string `json:"job_id,omitempty"`
	Via     string `json:"via"`
	Message string `json:"message"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ImportResult summarizes a raw article NDJSON import
type ImportResult struct {
	TotalRecords    int               `json:"total_records"`
	SuccessfulCount int               `json:"successful"`
	FailedCount     int               `json:"failed"`
	DurationMs      int64             `json:"duration_ms"`
	Errors          []ValidationError `json:"errors,omitempty"`
}
