package api

import (
	"net/http"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/domain"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the static exercise catalog.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// CatalogResponse is the whole sheet, ready to render as a form.
type CatalogResponse struct {
	Categories       []domain.ExerciseCategory   `json:"categories"`
	FreeTextCategory domain.ExerciseCategory     `json:"freeTextCategory"`
	Exercises        []domain.ExerciseDefinition `json:"exercises"`
}

// ListCatalog godoc
// @Summary List prescribable exercises
// @Tags Catalog
// @Produce json
// @Success 200 {object} CatalogResponse
// @Router /catalog [get]
func (h *CatalogHandler) ListCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, CatalogResponse{
		Categories:       catalog.DisplayCategories(),
		FreeTextCategory: domain.CategoryFreeText,
		Exercises:        h.catalog.List(),
	})
}

// GetExercise godoc
// @Summary Get one exercise definition
// @Tags Catalog
// @Produce json
// @Param exerciseId path string true "Exercise ID"
// @Success 200 {object} domain.ExerciseDefinition
// @Failure 404 {object} gin.H "Unknown exercise"
// @Router /catalog/exercises/{exerciseId} [get]
func (h *CatalogHandler) GetExercise(c *gin.Context) {
	def, ok := h.catalog.FindByID(c.Param("exerciseId"))
	if !ok {
		abortWithError(c, http.StatusNotFound, CodeNotFound, "Exercise not found")
		return
	}
	c.JSON(http.StatusOK, def)
}
