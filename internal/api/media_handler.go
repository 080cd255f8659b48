package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

const maxImageSize = 10 * 1024 * 1024

// MediaHandler handles image uploads
type MediaHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(services *service.Services, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		services: services,
		log:      log.With().Str("handler", "media").Logger(),
	}
}

// Upload handles POST /v1/images (multipart "file")
func (h *MediaHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	defer file.Close()

	if header.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large, max size is 10 MB"})
		return
	}

	ref, err := h.services.Media.UploadImage(c.Request.Context(), header.Filename, file)
	if err != nil {
		respondError(c, h.log, err, "failed to store image")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"featured_image": ref})
}
