package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/config"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// RawArticleHandler handles scraped source article endpoints
type RawArticleHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewRawArticleHandler creates a new RawArticleHandler
func NewRawArticleHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *RawArticleHandler {
	return &RawArticleHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "raw_article").Logger(),
	}
}

// Create handles POST /v1/raw-articles
func (h *RawArticleHandler) Create(c *gin.Context) {
	var in models.RawArticleNDJSON
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	article, err := h.services.Import.CreateRawArticle(c.Request.Context(), &in)
	if err != nil {
		respondError(c, h.log, err, "failed to create raw article")
		return
	}
	c.JSON(http.StatusCreated, article)
}

// Import handles POST /v1/raw-articles/import
// Accepts a multipart "file" upload or an application/x-ndjson body
func (h *RawArticleHandler) Import(c *gin.Context) {
	// oversized bodies surface as a read error and a 400
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Server.MaxImportSize)

	var body io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".ndjson" && ext != ".jsonl" && ext != ".json" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "raw article import requires an NDJSON file"})
			return
		}
		h.log.Info().Str("file", header.Filename).Int64("size_bytes", header.Size).Msg("Raw article import upload")
		body = file
	} else {
		body = c.Request.Body
	}

	result, err := h.services.Import.ImportRawArticles(c.Request.Context(), body)
	if err != nil {
		respondError(c, h.log, err, "failed to import raw articles")
		return
	}
	c.JSON(http.StatusOK, result)
}

// List handles GET /v1/raw-articles?source_name=&q=
func (h *RawArticleHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	articles, err := h.services.Import.ListRawArticles(c.Request.Context(), models.RawFilter{
		SourceName: c.Query("source_name"),
		Search:     c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, h.log, err, "failed to list raw articles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": articles, "count": len(articles)})
}
