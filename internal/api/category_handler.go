package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/magazine-cms/internal/models"
	"github.com/magazine-cms/internal/service"
	"github.com/rs/zerolog"
)

// CategoryHandler handles category endpoints
type CategoryHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(services *service.Services, log zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		services: services,
		log:      log.With().Str("handler", "category").Logger(),
	}
}

// Create handles POST /v1/categories
func (h *CategoryHandler) Create(c *gin.Context) {
	var in models.Category
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	category, err := h.services.Categories.Create(c.Request.Context(), &in)
	if err != nil {
		respondError(c, h.log, err, "failed to create category")
		return
	}
	c.JSON(http.StatusCreated, category)
}

// AddSubcategories handles POST /v1/categories/:id/subcategories
func (h *CategoryHandler) AddSubcategories(c *gin.Context) {
	var req struct {
		Subcategories []models.Subcategory `json:"subcategories"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	subs, err := h.services.Categories.AddSubcategories(c.Request.Context(), c.Param("id"), req.Subcategories)
	if err != nil {
		respondError(c, h.log, err, "failed to add subcategories")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": subs})
}

// List handles GET /v1/categories
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.services.Categories.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "failed to list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}
