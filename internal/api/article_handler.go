package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// ArticleHandler handles draft and approved article endpoints
type ArticleHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services: services,
		log:      log.With().Str("handler", "article").Logger(),
	}
}

// bindOptional binds a JSON body when one was sent
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// CreateDraft handles POST /v1/drafts
func (h *ArticleHandler) CreateDraft(c *gin.Context) {
	var in models.DraftInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	draft, err := h.services.Articles.CreateDraft(c.Request.Context(), userID(c), &in)
	if err != nil {
		respondError(c, h.log, err, "failed to create draft")
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// CreateDraftFromSource handles POST /v1/drafts/from-source/:source_id
func (h *ArticleHandler) CreateDraftFromSource(c *gin.Context) {
	var overrides models.DraftInput
	if !bindOptional(c, &overrides) {
		return
	}

	draft, err := h.services.Articles.CreateDraftFromSource(c.Request.Context(), userID(c), c.Param("source_id"), &overrides)
	if err != nil {
		respondError(c, h.log, err, "failed to create draft")
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// ListDrafts handles GET /v1/drafts?status=&category_id=&ai_generated=&q=
func (h *ArticleHandler) ListDrafts(c *gin.Context) {
	status := models.DraftStatus(c.Query("status"))
	if status != "" && !models.ValidDraftStatuses[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: pending, approved, rejected"})
		return
	}

	limit, offset := paging(c)
	filter := models.DraftFilter{
		Status:     status,
		CategoryID: c.Query("category_id"),
		Search:     c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	}
	if v := c.Query("ai_generated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ai_generated must be true or false"})
			return
		}
		filter.AIGenerated = &b
	}

	drafts, err := h.services.Articles.ListDrafts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err, "failed to list drafts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": drafts, "count": len(drafts)})
}

// GetDraft handles GET /v1/drafts/:id
func (h *ArticleHandler) GetDraft(c *gin.Context) {
	draft, err := h.services.Articles.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get draft")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// UpdateDraft handles PUT /v1/drafts/:id
func (h *ArticleHandler) UpdateDraft(c *gin.Context) {
	var in models.DraftInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	draft, err := h.services.Articles.UpdateDraft(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		respondError(c, h.log, err, "failed to update draft")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// RequestAIRewrite handles POST /v1/drafts/:id/ai-rewrite
func (h *ArticleHandler) RequestAIRewrite(c *gin.Context) {
	var req struct {
		CategoryID *string `json:"category_id"`
	}
	if !bindOptional(c, &req) {
		return
	}

	draft, err := h.services.Articles.RequestAIRewrite(c.Request.Context(), userID(c), c.Param("id"), req.CategoryID)
	if err != nil {
		respondError(c, h.log, err, "failed to rewrite draft")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// Approve handles POST /v1/drafts/:id/approve
func (h *ArticleHandler) Approve(c *gin.Context) {
	var overrides models.DraftInput
	if !bindOptional(c, &overrides) {
		return
	}

	approved, err := h.services.Articles.Approve(c.Request.Context(), c.Param("id"), &overrides)
	if err != nil {
		respondError(c, h.log, err, "failed to approve draft")
		return
	}
	c.JSON(http.StatusCreated, approved)
}

// Reject handles POST /v1/drafts/:id/reject
func (h *ArticleHandler) Reject(c *gin.Context) {
	draft, err := h.services.Articles.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to reject draft")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// DestroyDraft handles DELETE /v1/drafts/:id
func (h *ArticleHandler) DestroyDraft(c *gin.Context) {
	if err := h.services.Articles.DestroyDraft(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err, "failed to delete draft")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListApproved handles GET /v1/approved?status=&category_id=&q=
func (h *ArticleHandler) ListApproved(c *gin.Context) {
	status := models.PublishStatus(c.Query("status"))
	if status != "" && !models.ValidPublishStatuses[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: published, unpublished"})
		return
	}

	limit, offset := paging(c)
	articles, err := h.services.Articles.ListApproved(c.Request.Context(), models.ApprovedFilter{
		Status:     status,
		CategoryID: c.Query("category_id"),
		Search:     c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, h.log, err, "failed to list approved articles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": articles, "count": len(articles)})
}

// GetApproved handles GET /v1/approved/:id
func (h *ArticleHandler) GetApproved(c *gin.Context) {
	a, err := h.services.Articles.GetApproved(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get approved article")
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateApproved handles PUT /v1/approved/:id
func (h *ArticleHandler) UpdateApproved(c *gin.Context) {
	var in models.ApprovedInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	a, err := h.services.Articles.UpdateApproved(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		respondError(c, h.log, err, "failed to update approved article")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Publish handles POST /v1/approved/:id/publish
func (h *ArticleHandler) Publish(c *gin.Context) {
	a, err := h.services.Articles.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to publish article")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Unpublish handles POST /v1/approved/:id/unpublish
func (h *ArticleHandler) Unpublish(c *gin.Context) {
	a, err := h.services.Articles.Unpublish(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to unpublish article")
		return
	}
	c.JSON(http.StatusOK, a)
}

// DestroyApproved handles DELETE /v1/approved/:id
func (h *ArticleHandler) DestroyApproved(c *gin.Context) {
	if err := h.services.Articles.DestroyApproved(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err, "failed to delete approved article")
		return
	}
	c.Status(http.StatusNoContent)
}
