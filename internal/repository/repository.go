package repository

import (
	"context"
	"time"

	"github.com/magazine-cms/internal/database"
	"github.com/magazine-cms/internal/models"
)

// TxManager runs a function inside a single database transaction. Repository
// calls made with the context handed to fn participate in that transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RawArticleRepository defines the interface for scraped/imported source articles
type RawArticleRepository interface {
	Create(ctx context.Context, article *models.RawArticle) error
	BatchInsert(ctx context.Context, articles []*models.RawArticle) (int, error)
	GetByID(ctx context.Context, id string) (*models.RawArticle, error)
	List(ctx context.Context, filter models.RawFilter) ([]*models.RawArticle, error)
	SetRewrittenID(ctx context.Context, id, rewrittenID string) error
	Count(ctx context.Context) (int, error)
}

// RewrittenArticleRepository defines the interface for drafts pending review
type RewrittenArticleRepository interface {
	Create(ctx context.Context, article *models.RewrittenArticle) error
	Update(ctx context.Context, article *models.RewrittenArticle) error
	GetByID(ctx context.Context, id string) (*models.RewrittenArticle, error)
	GetForUpdate(ctx context.Context, id string) (*models.RewrittenArticle, error)
	List(ctx context.Context, filter models.DraftFilter) ([]*models.RewrittenArticle, error)
	TransitionStatus(ctx context.Context, id string, from, to models.DraftStatus) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	CountAIGeneratedSince(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// ApprovedArticleRepository defines the interface for publishable articles
type ApprovedArticleRepository interface {
	InsertIfSlugFree(ctx context.Context, article *models.ApprovedArticle) (bool, error)
	Update(ctx context.Context, article *models.ApprovedArticle) error
	GetByID(ctx context.Context, id string) (*models.ApprovedArticle, error)
	GetBySlug(ctx context.Context, slug string) (*models.ApprovedArticle, error)
	GetByOriginalArticleID(ctx context.Context, originalID string) (*models.ApprovedArticle, error)
	List(ctx context.Context, filter models.ApprovedFilter) ([]*models.ApprovedArticle, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetPublication(ctx context.Context, id string, status models.PublishStatus, publishedAt *time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	StreamPublished(ctx context.Context, callback func(*models.ApprovedArticle) error) error
}

// AISettingRepository defines the interface for the singleton AI settings row
type AISettingRepository interface {
	Get(ctx context.Context) (*models.AISetting, error)
	Save(ctx context.Context, setting *models.AISetting) error
}

// KeywordRewriteRepository defines the interface for keyword rewrite jobs
type KeywordRewriteRepository interface {
	Create(ctx context.Context, job *models.KeywordRewrite) error
	Update(ctx context.Context, job *models.KeywordRewrite) error
	GetByID(ctx context.Context, id string) (*models.KeywordRewrite, error)
	List(ctx context.Context, status models.JobStatus, limit int) ([]*models.KeywordRewrite, error)
	GetPendingJobs(ctx context.Context) ([]*models.KeywordRewrite, error)
	MarkAsProcessing(ctx context.Context, id string, from models.JobStatus) (bool, error)
	Count(ctx context.Context) (int, error)
}

// CategoryRepository defines the interface for categories and subcategories
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	CreateSubcategory(ctx context.Context, sub *models.Subcategory) error
	List(ctx context.Context) ([]*models.Category, error)
	GetAllIDs(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Tx        TxManager
	Raw       RawArticleRepository
	Rewritten RewrittenArticleRepository
	Approved  ApprovedArticleRepository
	AISetting AISettingRepository
	Keyword   KeywordRewriteRepository
	Category  CategoryRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Tx:        db,
		Raw:       NewRawArticleRepo(db),
		Rewritten: NewRewrittenArticleRepo(db),
		Approved:  NewApprovedArticleRepo(db),
		AISetting: NewAISettingRepo(db),
		Keyword:   NewKeywordRewriteRepo(db),
		Category:  NewCategoryRepo(db),
	}
}
