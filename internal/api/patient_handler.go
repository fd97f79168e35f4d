package api

import (
	"net/http"

	"alcyxob/physiotrack/internal/domain"
	"alcyxob/physiotrack/internal/prescription"
	"alcyxob/physiotrack/internal/service"

	"github.com/gin-gonic/gin"
)

// PatientHandler serves prescription lookup, authoring and export.
type PatientHandler struct {
	coord           *service.Coordinator
	prescriptionSvc service.PrescriptionService
	sheetSvc        service.SheetService
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(coord *service.Coordinator, prescriptionSvc service.PrescriptionService, sheetSvc service.SheetService) *PatientHandler {
	return &PatientHandler{coord: coord, prescriptionSvc: prescriptionSvc, sheetSvc: sheetSvc}
}

// --- DTOs for API (Data Transfer Objects) ---

// FreeTextRowRequest is one typed-in exercise line.
type FreeTextRowRequest struct {
	ID   string `json:"id" binding:"max=64"`
	Text string `json:"text" binding:"max=500"`
}

// SavePrescriptionRequest defines the expected JSON for saving a prescription.
// Name and therapist name are checked by the session so the response can list
// every missing field at once.
type SavePrescriptionRequest struct {
	Name          string                        `json:"name" binding:"max=200"`
	TherapistName string                        `json:"therapistName" binding:"max=200"`
	Class         string                        `json:"class" binding:"max=50"`
	HR            string                        `json:"hr" binding:"max=50"`
	Selections    map[string]domain.FieldValues `json:"selections"`
	FreeText      []FreeTextRowRequest          `json:"freeText" binding:"omitempty,max=50,dive"`
}

func (r SavePrescriptionRequest) toInput() service.PrescriptionInput {
	rows := make([]prescription.FreeTextRow, len(r.FreeText))
	for i, row := range r.FreeText {
		rows[i] = prescription.FreeTextRow{ID: row.ID, Text: row.Text}
	}
	return service.PrescriptionInput{
		Details: prescription.Details{
			Name:          r.Name,
			TherapistName: r.TherapistName,
			Class:         r.Class,
			HR:            r.HR,
		},
		Selections: r.Selections,
		FreeText:   rows,
	}
}

// --- Handler Methods ---

// GetPatient godoc
// @Summary Resolve a patient's prescription record
// @Tags Patients
// @Produce json
// @Param id path string true "Scanned patient barcode"
// @Success 200 {object} domain.PatientData
// @Failure 404 {object} gin.H "No prescription for this patient"
// @Failure 503 {object} gin.H "Record store unreachable"
// @Router /patients/{id} [get]
func (h *PatientHandler) GetPatient(c *gin.Context) {
	rec, err := h.prescriptionSvc.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetPatientView godoc
// @Summary Read-only prescription grouped by category
// @Tags Patients
// @Produce json
// @Param id path string true "Scanned patient barcode"
// @Success 200 {object} prescription.PatientView
// @Router /patients/{id}/view [get]
func (h *PatientHandler) GetPatientView(c *gin.Context) {
	view, err := h.prescriptionSvc.GetView(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetPatientForm godoc
// @Summary Authoring form state, empty for a new patient
// @Tags Patients
// @Produce json
// @Param id path string true "Scanned patient barcode"
// @Success 200 {object} prescription.Form
// @Router /patients/{id}/form [get]
func (h *PatientHandler) GetPatientForm(c *gin.Context) {
	form, err := h.prescriptionSvc.GetForm(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// SavePatient godoc
// @Summary Save (overwrite) a patient's prescription
// @Tags Patients
// @Accept json
// @Produce json
// @Param id path string true "Scanned patient barcode"
// @Param prescription body SavePrescriptionRequest true "Form contents"
// @Success 200 {object} domain.PatientData "Saved record, lastUpdated stamped"
// @Failure 400 {object} gin.H "Malformed body or invalid field value"
// @Failure 422 {object} gin.H "Missing patient or therapist name"
// @Failure 503 {object} gin.H "Record store unreachable"
// @Router /patients/{id} [put]
func (h *PatientHandler) SavePatient(c *gin.Context) {
	var req SavePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidInput, "Validation error: "+err.Error())
		return
	}

	saved, err := h.prescriptionSvc.SaveForm(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// ExportSheet godoc
// @Summary Upload the printable sheet and return a download link
// @Tags Patients
// @Produce json
// @Param id path string true "Scanned patient barcode"
// @Success 201 {object} service.SheetExport
// @Failure 501 {object} gin.H "Object storage not configured"
// @Router /patients/{id}/sheet [post]
func (h *PatientHandler) ExportSheet(c *gin.Context) {
	out, err := h.sheetSvc.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// SyncStatus godoc
// @Summary State of the background mirror
// @Tags Sync
// @Produce json
// @Success 200 {object} service.SyncStatus
// @Router /sync/status [get]
func (h *PatientHandler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Status())
}
