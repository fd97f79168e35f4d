package api

import (
	"net/http"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes registers the /api/v1 surface used by the scanner UI.
func SetupRoutes(
	router *gin.Engine,
	log *zap.Logger,
	cat *catalog.Catalog,
	coord *service.Coordinator,
	prescriptionService service.PrescriptionService,
	sheetService service.SheetService,
) {
	catalogHandler := NewCatalogHandler(cat)
	patientHandler := NewPatientHandler(coord, prescriptionService, sheetService)

	router.Use(RequestID(), RequestLogger(log.Named("http")))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})

		// --- Catalog Routes ---
		catalogGroup := apiV1.Group("/catalog")
		{
			catalogGroup.GET("", catalogHandler.ListCatalog)
			catalogGroup.GET("/exercises/:exerciseId", catalogHandler.GetExercise)
		}

		apiV1.GET("/sync/status", patientHandler.SyncStatus)

		// --- Patient Routes ---
		// :id is the raw scanned barcode; it is trimmed before use.
		patientGroup := apiV1.Group("/patients/:id")
		{
			patientGroup.GET("", patientHandler.GetPatient)
			patientGroup.PUT("", patientHandler.SavePatient)
			patientGroup.GET("/view", patientHandler.GetPatientView)
			patientGroup.GET("/form", patientHandler.GetPatientForm)
			patientGroup.POST("/sheet", patientHandler.ExportSheet)
		}
	}
}
