package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// PublicHandler serves the read side of the public site
type PublicHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewPublicHandler creates a new PublicHandler
func NewPublicHandler(services *service.Services, log zerolog.Logger) *PublicHandler {
	return &PublicHandler{
		services: services,
		log:      log.With().Str("handler", "public").Logger(),
	}
}

// StreamArticles handles GET /public/articles?format=json|ndjson
// Streams every published article directly to the response
func (h *PublicHandler) StreamArticles(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "ndjson" && format != "json" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: ndjson, json"})
		return
	}

	if err := h.services.Public.StreamPublished(c.Request.Context(), c.Writer, format); err != nil {
		h.log.Error().Err(err).Str("format", format).Msg("Published feed failed")
		// Can't return error JSON after streaming has started
		return
	}
}

// GetArticle handles GET /public/articles/:slug
func (h *PublicHandler) GetArticle(c *gin.Context) {
	a, err := h.services.Public.GetPublishedBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err, "failed to get article")
		return
	}
	c.JSON(http.StatusOK, a)
}
