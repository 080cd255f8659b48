package models

import (
	"time"
)

// DraftStatus is the review state of a RewrittenArticle
type DraftStatus string

const (
	DraftStatusPending  DraftStatus = "pending"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusRejected DraftStatus = "rejected"
)

// PublishStatus is the visibility state of an ApprovedArticle
type PublishStatus string

const (
	PublishStatusPublished   PublishStatus = "published"
	PublishStatusUnpublished PublishStatus = "unpublished"
)

// ValidDraftStatuses defines allowed draft statuses
var ValidDraftStatuses = map[DraftStatus]bool{
	DraftStatusPending:  true,
	DraftStatusApproved: true,
	DraftStatusRejected: true,
}

// ValidPublishStatuses defines allowed approved article statuses
var ValidPublishStatuses = map[PublishStatus]bool{
	PublishStatusPublished:   true,
	PublishStatusUnpublished: true,
}

// RawArticle is a scraped or imported source document
type RawArticle struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Body            string    `json:"body" db:"body"`
	MetaTitle       string    `json:"meta_title" db:"meta_title"`
	MetaDescription string    `json:"meta_description" db:"meta_description"`
	ImageURL        string    `json:"image_url" db:"image_url"`
	SourceURL       string    `json:"source_url" db:"source_url"`
	SourceName      string    `json:"source_name" db:"source_name"`
	RewrittenID     *string   `json:"rewritten_id,omitempty" db:"rewritten_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// RawArticleNDJSON represents a raw article record from an NDJSON import
type RawArticleNDJSON struct {
	Title           string `json:"title"`
	Body            string `json:"body"`
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	ImageURL        string `json:"image_url"`
	SourceURL       string `json:"source_url"`
	SourceName      string `json:"source_name"`
}

// RewrittenArticle is a draft pending human review
type RewrittenArticle struct {
	ID                string      `json:"id" db:"id"`
	Title             string      `json:"title" db:"title"`
	Slug              string      `json:"slug" db:"slug"`
	Content           string      `json:"content" db:"content"`
	MetaTitle         string      `json:"meta_title" db:"meta_title"`
	MetaDescription   string      `json:"meta_description" db:"meta_description"`
	FeaturedImage     string      `json:"featured_image" db:"featured_image"`
	CategoryID        *string     `json:"category_id,omitempty" db:"category_id"`
	SubcategoryID     *string     `json:"subcategory_id,omitempty" db:"subcategory_id"`
	UserID            string      `json:"user_id" db:"user_id"`
	AIGenerated       bool        `json:"ai_generated" db:"ai_generated"`
	Status            DraftStatus `json:"status" db:"status"`
	OriginalArticleID *string     `json:"original_article_id,omitempty" db:"original_article_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// ApprovedArticle is the publishable entity read by the public site
type ApprovedArticle struct {
	ID                string        `json:"id" db:"id"`
	Title             string        `json:"title" db:"title"`
	Slug              string        `json:"slug" db:"slug"`
	Content           string        `json:"content" db:"content"`
	MetaTitle         string        `json:"meta_title" db:"meta_title"`
	MetaDescription   string        `json:"meta_description" db:"meta_description"`
	FeaturedImage     string        `json:"featured_image" db:"featured_image"`
	CategoryID        *string       `json:"category_id,omitempty" db:"category_id"`
	SubcategoryID     *string       `json:"subcategory_id,omitempty" db:"subcategory_id"`
	UserID            string        `json:"user_id" db:"user_id"`
	AIGenerated       bool          `json:"ai_generated" db:"ai_generated"`
	OriginalArticleID *string       `json:"original_article_id,omitempty" db:"original_article_id"`
	Status            PublishStatus `json:"status" db:"status"`
	PublishedAt       *time.Time    `json:"published_at,omitempty" db:"published_at"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// DraftInput carries editable draft fields. Nil pointers leave the field unchanged.
type DraftInput struct {
	Title           *string `json:"title"`
	Content         *string `json:"content"`
	MetaTitle       *string `json:"meta_title"`
	MetaDescription *string `json:"meta_description"`
	FeaturedImage   *string `json:"featured_image"`
	CategoryID      *string `json:"category_id"`
	SubcategoryID   *string `json:"subcategory_id"`
}

// ApprovedInput carries editable fields of an approved article. Nil pointers
// leave the field unchanged.
type ApprovedInput struct {
	DraftInput
	Slug *string `json:"slug"`
}

// DraftFilter narrows draft listings
type DraftFilter struct {
	Status      DraftStatus
	CategoryID  string
	AIGenerated *bool
	Search      string
	Limit       int
	Offset      int
}

// ApprovedFilter narrows approved article listings
type ApprovedFilter struct {
	Status     PublishStatus
	CategoryID string
	Search     string
	Limit      int
	Offset     int
}

// RawFilter narrows raw article listings
type RawFilter struct {
	SourceName string
	Search     string
	Limit      int
	Offset     int
}
