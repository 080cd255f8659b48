package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/dispatcher"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/slug"
	"github.com/magazine-cms/internal/storage"
	"github.com/rs/zerolog"
)

// AIGateway rewrites content with the configured AI provider
type AIGateway interface {
	TestConnection(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult
	Rewrite(ctx context.Context, content string, settings models.AISetting) (string, error)
}

// JobDispatcher starts work on the external scraper and keyword services
type JobDispatcher interface {
	StartScrapeJob(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error)
	EnsureServiceRunning(ctx context.Context, baseURL string) bool
	DispatchProcessingJob(ctx context.Context, endpoint string, payload any) (*dispatcher.Result, error)
	KeywordServiceURL() string
	KeywordProcessEndpoint() string
	CallbackURL() string
}

// ArticleService defines the article lifecycle: drafts, AI rewrites, review,
// promotion and publication
type ArticleService interface {
	CreateDraft(ctx context.Context, userID string, in *models.DraftInput) (*models.RewrittenArticle, error)
	CreateDraftFromSource(ctx context.Context, userID, sourceID string, overrides *models.DraftInput) (*models.RewrittenArticle, error)
	UpdateDraft(ctx context.Context, id string, in *models.DraftInput) (*models.RewrittenArticle, error)
	GetDraft(ctx context.Context, id string) (*models.RewrittenArticle, error)
	ListDrafts(ctx context.Context, filter models.DraftFilter) ([]*models.RewrittenArticle, error)
	RequestAIRewrite(ctx context.Context, userID, id string, categoryID *string) (*models.RewrittenArticle, error)
	Approve(ctx context.Context, id string, overrides *models.DraftInput) (*models.ApprovedArticle, error)
	Reject(ctx context.Context, id string) (*models.RewrittenArticle, error)
	DestroyDraft(ctx context.Context, id string) error

	GetApproved(ctx context.Context, id string) (*models.ApprovedArticle, error)
	ListApproved(ctx context.Context, filter models.ApprovedFilter) ([]*models.ApprovedArticle, error)
	UpdateApproved(ctx context.Context, id string, in *models.ApprovedInput) (*models.ApprovedArticle, error)
	Publish(ctx context.Context, id string) (*models.ApprovedArticle, error)
	Unpublish(ctx context.Context, id string) (*models.ApprovedArticle, error)
	DestroyApproved(ctx context.Context, id string) error
	ReconcileOrphans(ctx context.Context) (int64, error)
}

// SettingsService defines the interface for the AI settings store
type SettingsService interface {
	Get(ctx context.Context) (*models.AISetting, error)
	Save(ctx context.Context, setting *models.AISetting) (*models.AISetting, error)
	Invalidate()
	TestConnection(ctx context.Context, req models.ConnectionTestRequest) models.ConnectionTestResult
}

// KeywordRewriteService defines the interface for keyword rewrite jobs
type KeywordRewriteService interface {
	Create(ctx context.Context, req *models.KeywordRewriteRequest) (*models.KeywordRewrite, error)
	Queue(ctx context.Context, reqs []models.KeywordRewriteRequest) ([]*models.KeywordRewrite, error)
	Retry(ctx context.Context, id string) (*models.KeywordRewrite, error)
	HandleCallback(ctx context.Context, cb *models.KeywordRewriteCallback) (*models.KeywordRewrite, error)
	Get(ctx context.Context, id string) (*models.KeywordRewrite, error)
	List(ctx context.Context, status models.JobStatus, limit int) ([]*models.KeywordRewrite, error)
	StartProcessor(ctx context.Context)
	StopProcessor()
}

// ScrapeService defines the interface for scraper jobs and service health
type ScrapeService interface {
	StartScrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
	KeywordServiceHealth(ctx context.Context) bool
}

// ImportService defines the interface for raw article ingestion
type ImportService interface {
	CreateRawArticle(ctx context.Context, in *models.RawArticleNDJSON) (*models.RawArticle, error)
	ImportRawArticles(ctx context.Context, r io.Reader) (*models.ImportResult, error)
	ListRawArticles(ctx context.Context, filter models.RawFilter) ([]*models.RawArticle, error)
}

// PublicService defines the read side used by the public site
type PublicService interface {
	StreamPublished(ctx context.Context, w http.ResponseWriter, format string) error
	GetPublishedBySlug(ctx context.Context, slug string) (*models.ApprovedArticle, error)
	GetCounts(ctx context.Context) (map[string]int, error)
}

// CategoryService defines the interface for categories
type CategoryService interface {
	Create(ctx context.Context, category *models.Category) (*models.Category, error)
	AddSubcategories(ctx context.Context, categoryID string, subs []models.Subcategory) ([]models.Subcategory, error)
	List(ctx context.Context) ([]*models.Category, error)
}

// MediaService stores uploaded featured images
type MediaService interface {
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Deps are the collaborators services use outside the database
type Deps struct {
	Gateway    AIGateway
	Dispatcher JobDispatcher
	Images     storage.ImageStore
	Slugs      *slug.Generator
	Now        func() time.Time
}

// Services holds all service interfaces
type Services struct {
	Articles   ArticleService
	Settings   SettingsService
	Keyword    KeywordRewriteService
	Scrape     ScrapeService
	Import     ImportService
	Public     PublicService
	Categories CategoryService
	Media      MediaService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, deps Deps, cfg *config.Config, log zerolog.Logger) *Services {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Slugs == nil {
		deps.Slugs = slug.NewGenerator()
	}

	settingsSvc := newSettingsService(repos.AISetting, deps.Gateway, log)

	return &Services{
		Articles:   newArticleService(repos, settingsSvc, deps, cfg.Quota.Location(), log),
		Settings:   settingsSvc,
		Keyword:    newKeywordRewriteService(repos, deps, cfg.Jobs, log),
		Scrape:     newScrapeService(deps.Dispatcher, log),
		Import:     newImportService(repos, deps.Now, log),
		Public:     newPublicService(repos, log),
		Categories: newCategoryService(repos, deps.Now, log),
		Media:      newMediaService(deps.Images, log),
	}
}
