package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// JobHandler handles scrape and keyword rewrite endpoints backed by the
// external job services
type JobHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(services *service.Services, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		services: services,
		log:      log.With().Str("handler", "job").Logger(),
	}
}

// StartScrape handles POST /v1/scrape
func (h *JobHandler) StartScrape(c *gin.Context) {
	var req models.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	result, err := h.services.Scrape.StartScrape(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err, "failed to start scrape")
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// KeywordServiceHealth handles GET /v1/services/keyword/health
func (h *JobHandler) KeywordServiceHealth(c *gin.Context) {
	if !h.services.Scrape.KeywordServiceHealth(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

// CreateRewrite handles POST /v1/keyword-rewrites
func (h *JobHandler) CreateRewrite(c *gin.Context) {
	var req models.KeywordRewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	req.UserID = userID(c)

	job, err := h.services.Keyword.Create(c.Request.Context(), &req)
	if err != nil {
		if job != nil {
			// the job exists and records the failure
			status := statusFor(err)
			c.JSON(status, gin.H{"error": errorMessage(c, h.log, err, status, "failed to dispatch keyword rewrite"), "job": job})
			return
		}
		respondError(c, h.log, err, "failed to create keyword rewrite")
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// QueueRewrites handles POST /v1/keyword-rewrites/batch
func (h *JobHandler) QueueRewrites(c *gin.Context) {
	var req struct {
		Items []models.KeywordRewriteRequest `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	for i := range req.Items {
		req.Items[i].UserID = userID(c)
	}

	jobs, err := h.services.Keyword.Queue(c.Request.Context(), req.Items)
	if err != nil {
		respondError(c, h.log, err, "failed to queue keyword rewrites")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": jobs, "count": len(jobs)})
}

// ListRewrites handles GET /v1/keyword-rewrites?status=&limit=
func (h *JobHandler) ListRewrites(c *gin.Context) {
	status := models.JobStatus(c.Query("status"))
	switch status {
	case "", models.JobStatusPending, models.JobStatusProcessing, models.JobStatusCompleted, models.JobStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: pending, processing, completed, failed"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.services.Keyword.List(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, h.log, err, "failed to list keyword rewrites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": jobs, "count": len(jobs)})
}

// GetRewrite handles GET /v1/keyword-rewrites/:id
func (h *JobHandler) GetRewrite(c *gin.Context) {
	job, err := h.services.Keyword.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to get keyword rewrite")
		return
	}
	c.JSON(http.StatusOK, job)
}

// RetryRewrite handles POST /v1/keyword-rewrites/:id/retry
func (h *JobHandler) RetryRewrite(c *gin.Context) {
	job, err := h.services.Keyword.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "failed to retry keyword rewrite")
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// Callback handles POST /v1/callbacks/keyword-rewrite from the keyword service
func (h *JobHandler) Callback(c *gin.Context) {
	var cb models.KeywordRewriteCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	job, err := h.services.Keyword.HandleCallback(c.Request.Context(), &cb)
	if err != nil {
		respondError(c, h.log, err, "failed to apply keyword rewrite result")
		return
	}
	c.JSON(http.StatusOK, job)
}
