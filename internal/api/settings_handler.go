package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// SettingsHandler handles AI settings endpoints
type SettingsHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(services *service.Services, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		services: services,
		log:      log.With().Str("handler", "settings").Logger(),
	}
}

// Get handles GET /v1/settings/ai. The API key is masked.
func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.services.Settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "failed to load AI settings")
		return
	}
	c.JSON(http.StatusOK, s.Redacted())
}

// Save handles PUT /v1/settings/ai
func (h *SettingsHandler) Save(c *gin.Context) {
	var in models.AISetting
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	s, err := h.services.Settings.Save(c.Request.Context(), &in)
	if err != nil {
		respondError(c, h.log, err, "failed to save AI settings")
		return
	}
	c.JSON(http.StatusOK, s.Redacted())
}

// TestConnection handles POST /v1/settings/ai/test
// Always answers 200; the outcome is in the body
func (h *SettingsHandler) TestConnection(c *gin.Context) {
	var req models.ConnectionTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if !models.ValidAIProviders[req.Provider] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be one of: openai, anthropic, mistral, ollama, custom"})
		return
	}

	c.JSON(http.StatusOK, h.services.Settings.TestConnection(c.Request.Context(), req))
}
