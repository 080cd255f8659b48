package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/repository"
	"github.com/magazine-cms/internal/slug"
	"github.com/magazine-cms/internal/storage"
	"github.com/magazine-cms/internal/validation"
	"github.com/rs/zerolog"
)

// articleService is the concrete implementation of ArticleService
type articleService struct {
	repos    *repository.Repositories
	settings SettingsService
	gateway  AIGateway
	images   storage.ImageStore
	slugs    *slug.Generator
	now      func() time.Time
	quotaLoc *time.Location
	log      zerolog.Logger
}

// newArticleService creates a new ArticleService
func newArticleService(repos *repository.Repositories, settings SettingsService, deps Deps, quotaLoc *time.Location, log zerolog.Logger) *articleService {
	if quotaLoc == nil {
		quotaLoc = time.UTC
	}
	return &articleService{
		repos:    repos,
		settings: settings,
		gateway:  deps.Gateway,
		images:   deps.Images,
		slugs:    deps.Slugs,
		now:      deps.Now,
		quotaLoc: quotaLoc,
		log:      log.With().Str("service", "article").Logger(),
	}
}

// CreateDraft creates a standalone pending draft
func (s *articleService) CreateDraft(ctx context.Context, userID string, in *models.DraftInput) (*models.RewrittenArticle, error) {
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := validationError(v.ValidateDraftInput(in, true)); err != nil {
		return nil, err
	}

	now := s.now()
	draft := &models.RewrittenArticle{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    models.DraftStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyDraftInput(draft, in)
	draft.Slug = slug.Make(draft.Title)

	if err := s.repos.Rewritten.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	s.log.Info().Str("draft_id", draft.ID).Str("user_id", userID).Msg("Draft created")
	return draft, nil
}

// CreateDraftFromSource copies a raw article into a new pending draft
func (s *articleService) CreateDraftFromSource(ctx context.Context, userID, sourceID string, overrides *models.DraftInput) (*models.RewrittenArticle, error) {
	if err := checkID("raw article", sourceID); err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = &models.DraftInput{}
	}
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := validationError(v.ValidateDraftInput(overrides, false)); err != nil {
		return nil, err
	}

	source, err := s.repos.Raw.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get raw article: %w", err)
	}
	if source == nil {
		return nil, notFound("raw article", sourceID)
	}

	now := s.now()
	metaTitle := source.MetaTitle
	if metaTitle == "" {
		metaTitle = source.Title
	}
	originalID := source.ID

	draft := &models.RewrittenArticle{
		ID:                uuid.New().String(),
		Title:             source.Title,
		Content:           source.Body,
		MetaTitle:         metaTitle,
		MetaDescription:   source.MetaDescription,
		FeaturedImage:     source.ImageURL,
		UserID:            userID,
		AIGenerated:       false,
		Status:            models.DraftStatusPending,
		OriginalArticleID: &originalID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyDraftInput(draft, overrides)
	draft.Slug = slug.Make(draft.Title)

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Rewritten.Create(ctx, draft); err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		return s.repos.Raw.SetRewrittenID(ctx, source.ID, draft.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("draft_id", draft.ID).
		Str("source_id", source.ID).
		Str("user_id", userID).
		Msg("Draft created from source")

	return draft, nil
}

// UpdateDraft applies a human edit to a pending draft
func (s *articleService) UpdateDraft(ctx context.Context, id string, in *models.DraftInput) (*models.RewrittenArticle, error) {
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := validationError(v.ValidateDraftInput(in, false)); err != nil {
		return nil, err
	}

	draft, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Status != models.DraftStatusPending {
		return nil, fmt.Errorf("draft %s is %s: %w", id, draft.Status, ErrInvalidTransition)
	}

	if applyDraftInput(draft, in) {
		draft.Slug = slug.Make(draft.Title)
	}
	draft.UpdatedAt = s.now()

	if err := s.repos.Rewritten.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return draft, nil
}

// GetDraft retrieves a draft by ID
func (s *articleService) GetDraft(ctx context.Context, id string) (*models.RewrittenArticle, error) {
	if err := checkID("draft", id); err != nil {
		return nil, err
	}
	draft, err := s.repos.Rewritten.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if draft == nil {
		return nil, notFound("draft", id)
	}
	return draft, nil
}

// ListDrafts lists drafts matching the filter
func (s *articleService) ListDrafts(ctx context.Context, filter models.DraftFilter) ([]*models.RewrittenArticle, error) {
	return s.repos.Rewritten.List(ctx, filter)
}

// RequestAIRewrite replaces the draft content with an AI rewrite. Settings,
// credentials and the daily quota are checked before any network call, and a
// provider failure leaves the draft untouched.
func (s *articleService) RequestAIRewrite(ctx context.Context, userID, id string, categoryID *string) (*models.RewrittenArticle, error) {
	draft, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = draft.UserID
	}

	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := validationError(v.ValidateDraftInput(&models.DraftInput{CategoryID: categoryID}, false)); err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, ErrCredentialsMissing
	}

	if err := s.checkQuota(ctx, userID, settings.MaxDailyRewrites); err != nil {
		return nil, err
	}

	start := s.now()
	text, err := s.gateway.Rewrite(ctx, draft.Content, *settings)
	if err != nil {
		s.log.Error().Err(err).
			Str("draft_id", id).
			Str("provider", string(settings.Provider)).
			Msg("AI rewrite failed")
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	draft.Content = text
	draft.AIGenerated = true
	if categoryID != nil {
		draft.CategoryID = optionalID(*categoryID)
	}
	draft.UpdatedAt = s.now()

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Rewritten.Update(ctx, draft); err != nil {
			return fmt.Errorf("update draft: %w", err)
		}
		return s.syncApprovedCopyIfAutoApproved(ctx, draft, settings)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("draft_id", id).
		Str("user_id", userID).
		Str("provider", string(settings.Provider)).
		Dur("duration", s.now().Sub(start)).
		Msg("AI rewrite applied")

	return draft, nil
}

// checkQuota counts the user's AI generated drafts created since local midnight.
// A zero limit disables the quota.
func (s *articleService) checkQuota(ctx context.Context, userID string, limit int) error {
	if limit <= 0 {
		return nil
	}

	now := s.now().In(s.quotaLoc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.quotaLoc)

	count, err := s.repos.Rewritten.CountAIGeneratedSince(ctx, userID, midnight)
	if err != nil {
		return fmt.Errorf("count AI rewrites: %w", err)
	}
	if count >= limit {
		s.log.Warn().Str("user_id", userID).Int("count", count).Int("limit", limit).Msg("Daily AI rewrite quota reached")
		return fmt.Errorf("%w: %d of %d used today", ErrQuotaExceeded, count, limit)
	}
	return nil
}

// validator returns a validator that knows the current category ids
func (s *articleService) validator(ctx context.Context) (*validation.Validator, error) {
	ids, err := s.repos.Category.GetAllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load category ids: %w", err)
	}
	v := validation.NewValidator()
	v.SetCategoryIDCache(ids)
	return v, nil
}

// syncApprovedCopyIfAutoApproved pushes rewritten content to the approved
// article promoted from the same source when auto approval is enabled.
// Approval deletes the draft, so the candidate is a later draft of an already
// promoted source; rejected drafts never sync. It is the only path that changes
// published content outside Approve and UpdateApproved.
func (s *articleService) syncApprovedCopyIfAutoApproved(ctx context.Context, draft *models.RewrittenArticle, settings *models.AISetting) error {
	if !settings.AutoApprove || draft.OriginalArticleID == nil || draft.Status == models.DraftStatusRejected {
		return nil
	}

	approved, err := s.repos.Approved.GetByOriginalArticleID(ctx, *draft.OriginalArticleID)
	if err != nil {
		return fmt.Errorf("get approved copy: %w", err)
	}
	if approved == nil {
		return nil
	}

	approved.Content = draft.Content
	approved.AIGenerated = true
	approved.CategoryID = draft.CategoryID
	approved.UpdatedAt = s.now()

	if err := s.repos.Approved.Update(ctx, approved); err != nil {
		return fmt.Errorf("sync approved copy: %w", err)
	}

	s.log.Info().
		Str("draft_id", draft.ID).
		Str("approved_id", approved.ID).
		Msg("Auto-approve synced rewrite to approved article")
	return nil
}

// Approve promotes a pending draft: it inserts a published ApprovedArticle
// under a fresh unique slug and hard-deletes the draft, all in one
// transaction. A second approval of the same draft finds it gone.
func (s *articleService) Approve(ctx context.Context, id string, overrides *models.DraftInput) (*models.ApprovedArticle, error) {
	if err := checkID("draft", id); err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = &models.DraftInput{}
	}
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := validationError(v.ValidateDraftInput(overrides, false)); err != nil {
		return nil, err
	}

	var approved *models.ApprovedArticle

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		draft, err := s.repos.Rewritten.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock draft: %w", err)
		}
		if draft == nil {
			return notFound("draft", id)
		}
		if draft.Status != models.DraftStatusPending {
			return fmt.Errorf("draft %s is %s: %w", id, draft.Status, ErrInvalidTransition)
		}
		applyDraftInput(draft, overrides)

		now := s.now()
		approved = &models.ApprovedArticle{
			ID:                uuid.New().String(),
			Title:             draft.Title,
			Content:           draft.Content,
			MetaTitle:         draft.MetaTitle,
			MetaDescription:   draft.MetaDescription,
			FeaturedImage:     draft.FeaturedImage,
			CategoryID:        draft.CategoryID,
			SubcategoryID:     draft.SubcategoryID,
			UserID:            draft.UserID,
			AIGenerated:       draft.AIGenerated,
			OriginalArticleID: draft.OriginalArticleID,
			Status:            models.PublishStatusPublished,
			PublishedAt:       &now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if err := s.insertWithUniqueSlug(ctx, approved, draft.Title); err != nil {
			return err
		}

		deleted, err := s.repos.Rewritten.Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		if !deleted {
			return notFound("draft", id)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error().Err(err).Str("draft_id", id).Msg("Approve failed")
		}
		return nil, err
	}

	s.log.Info().
		Str("draft_id", id).
		Str("approved_id", approved.ID).
		Str("slug", approved.Slug).
		Msg("Draft approved and published")

	return approved, nil
}

func (s *articleService) insertWithUniqueSlug(ctx context.Context, a *models.ApprovedArticle, title string) error {
	for attempt := 0; attempt < slug.MaxAttempts; attempt++ {
		a.Slug = s.slugs.Candidate(title, attempt)

		inserted, err := s.repos.Approved.InsertIfSlugFree(ctx, a)
		if err != nil {
			return fmt.Errorf("insert approved article: %w", err)
		}
		if inserted {
			return nil
		}
		s.log.Warn().Str("slug", a.Slug).Int("attempt", attempt+1).Msg("Slug collision")
	}
	return fmt.Errorf("%w: no unique slug for %q after %d attempts", ErrPersistenceConflict, title, slug.MaxAttempts)
}

// Reject moves a pending draft to rejected
func (s *articleService) Reject(ctx context.Context, id string) (*models.RewrittenArticle, error) {
	if err := checkID("draft", id); err != nil {
		return nil, err
	}
	moved, err := s.repos.Rewritten.TransitionStatus(ctx, id, models.DraftStatusPending, models.DraftStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("reject draft: %w", err)
	}

	draft, err := s.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("draft %s is %s: %w", id, draft.Status, ErrInvalidTransition)
	}

	s.log.Info().Str("draft_id", id).Msg("Draft rejected")
	return draft, nil
}

// DestroyDraft hard-deletes a draft
func (s *articleService) DestroyDraft(ctx context.Context, id string) error {
	if err := checkID("draft", id); err != nil {
		return err
	}
	deleted, err := s.repos.Rewritten.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if !deleted {
		return notFound("draft", id)
	}

	if err := s.verifyGone(ctx, "draft", id, s.repos.Rewritten.Exists); err != nil {
		return err
	}

	s.log.Info().Str("draft_id", id).Msg("Draft deleted")
	return nil
}

// GetApproved retrieves an approved article by ID
func (s *articleService) GetApproved(ctx context.Context, id string) (*models.ApprovedArticle, error) {
	if err := checkID("approved article", id); err != nil {
		return nil, err
	}
	a, err := s.repos.Approved.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get approved article: %w", err)
	}
	if a == nil {
		return nil, notFound("approved article", id)
	}
	return a, nil
}

// ListApproved reconciles orphaned drafts, then lists approved articles.
// Reconciliation failures are logged and do not fail the listing.
func (s *articleService) ListApproved(ctx context.Context, filter models.ApprovedFilter) ([]*models.ApprovedArticle, error) {
	if _, err := s.ReconcileOrphans(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Orphan reconciliation failed")
	}
	return s.repos.Approved.List(ctx, filter)
}

// UpdateApproved edits an approved article. The slug changes only when one
// is supplied, and it must be free.
func (s *articleService) UpdateApproved(ctx context.Context, id string, in *models.ApprovedInput) (*models.ApprovedArticle, error) {
	v, err := s.validator(ctx)
	if err != nil {
		return nil, err
	}
	if err := validationError(v.ValidateApprovedInput(in)); err != nil {
		return nil, err
	}

	a, err := s.GetApproved(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Slug != nil && *in.Slug != a.Slug {
		taken, err := s.repos.Approved.SlugExists(ctx, *in.Slug)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: slug %q is already used", ErrPersistenceConflict, *in.Slug)
		}
		a.Slug = *in.Slug
	}

	applyApprovedInput(a, &in.DraftInput)
	a.UpdatedAt = s.now()

	if err := s.repos.Approved.Update(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, fmt.Errorf("%w: slug %q is already used", ErrPersistenceConflict, a.Slug)
		}
		return nil, fmt.Errorf("update approved article: %w", err)
	}
	return a, nil
}

// Publish marks an article published with a fresh timestamp. Publishing a
// published article changes nothing.
func (s *articleService) Publish(ctx context.Context, id string) (*models.ApprovedArticle, error) {
	a, err := s.GetApproved(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.PublishStatusPublished {
		return a, nil
	}

	now := s.now()
	if err := s.setPublication(ctx, id, models.PublishStatusPublished, &now); err != nil {
		return nil, err
	}
	a.Status = models.PublishStatusPublished
	a.PublishedAt = &now

	s.log.Info().Str("approved_id", id).Msg("Article published")
	return a, nil
}

// Unpublish hides an article and clears its publication timestamp
func (s *articleService) Unpublish(ctx context.Context, id string) (*models.ApprovedArticle, error) {
	a, err := s.GetApproved(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.PublishStatusUnpublished {
		return a, nil
	}

	if err := s.setPublication(ctx, id, models.PublishStatusUnpublished, nil); err != nil {
		return nil, err
	}
	a.Status = models.PublishStatusUnpublished
	a.PublishedAt = nil

	s.log.Info().Str("approved_id", id).Msg("Article unpublished")
	return a, nil
}

func (s *articleService) setPublication(ctx context.Context, id string, status models.PublishStatus, at *time.Time) error {
	updated, err := s.repos.Approved.SetPublication(ctx, id, status, at)
	if err != nil {
		return fmt.Errorf("set publication: %w", err)
	}
	if !updated {
		return notFound("approved article", id)
	}
	return nil
}

// DestroyApproved deletes the stored featured image, then the row. A missing
// image file is only logged.
func (s *articleService) DestroyApproved(ctx context.Context, id string) error {
	a, err := s.GetApproved(ctx, id)
	if err != nil {
		return err
	}

	s.deleteImage(a)

	deleted, err := s.repos.Approved.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete approved article: %w", err)
	}
	if !deleted {
		return notFound("approved article", id)
	}

	if err := s.verifyGone(ctx, "approved article", id, s.repos.Approved.Exists); err != nil {
		return err
	}

	s.log.Info().Str("approved_id", id).Str("slug", a.Slug).Msg("Approved article deleted")
	return nil
}

func (s *articleService) deleteImage(a *models.ApprovedArticle) {
	if s.images == nil || !isStoredImage(a.FeaturedImage) {
		return
	}

	err := s.images.Delete(a.FeaturedImage)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		s.log.Warn().Str("approved_id", a.ID).Str("image", a.FeaturedImage).Msg("Featured image already missing from storage")
	default:
		s.log.Warn().Err(err).Str("approved_id", a.ID).Str("image", a.FeaturedImage).Msg("Failed to delete featured image")
	}
}

// verifyGone checks once that a deleted row is really gone.
func (s *articleService) verifyGone(ctx context.Context, kind, id string, exists func(context.Context, string) (bool, error)) error {
	still, err := exists(ctx, id)
	if err != nil {
		return fmt.Errorf("verify %s deletion: %w", kind, err)
	}
	if still {
		s.log.Error().Str("id", id).Str("kind", kind).Msg("Row still present after delete")
		return fmt.Errorf("%s %s is still present after delete: %w", kind, id, ErrPersistenceConflict)
	}
	return nil
}

// ReconcileOrphans deletes drafts whose source has already been promoted
func (s *articleService) ReconcileOrphans(ctx context.Context) (int64, error) {
	removed, err := s.repos.Rewritten.DeleteOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete orphan drafts: %w", err)
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("Orphan drafts removed")
	}
	return removed, nil
}

// applyDraftInput copies the non-nil fields and reports whether the title changed.
func applyDraftInput(d *models.RewrittenArticle, in *models.DraftInput) bool {
	if in == nil {
		return false
	}
	titleChanged := false
	if in.Title != nil && strings.TrimSpace(*in.Title) != d.Title {
		d.Title = strings.TrimSpace(*in.Title)
		titleChanged = true
	}
	if in.Content != nil {
		d.Content = *in.Content
	}
	if in.MetaTitle != nil {
		d.MetaTitle = *in.MetaTitle
	}
	if in.MetaDescription != nil {
		d.MetaDescription = *in.MetaDescription
	}
	if in.FeaturedImage != nil {
		d.FeaturedImage = *in.FeaturedImage
	}
	if in.CategoryID != nil {
		d.CategoryID = optionalID(*in.CategoryID)
	}
	if in.SubcategoryID != nil {
		d.SubcategoryID = optionalID(*in.SubcategoryID)
	}
	return titleChanged
}

func applyApprovedInput(a *models.ApprovedArticle, in *models.DraftInput) {
	if in.Title != nil {
		a.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		a.Content = *in.Content
	}
	if in.MetaTitle != nil {
		a.MetaTitle = *in.MetaTitle
	}
	if in.MetaDescription != nil {
		a.MetaDescription = *in.MetaDescription
	}
	if in.FeaturedImage != nil {
		a.FeaturedImage = *in.FeaturedImage
	}
	if in.CategoryID != nil {
		a.CategoryID = optionalID(*in.CategoryID)
	}
	if in.SubcategoryID != nil {
		a.SubcategoryID = optionalID(*in.SubcategoryID)
	}
}

// optionalID maps "" to nil so an empty value clears a reference
func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// isStoredImage reports whether a featured image lives in local storage
// rather than at a remote URL.
func isStoredImage(ref string) bool {
	if ref == "" {
		return false
	}
	return !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://")
}
