package api

import (
	"errors"
	"net/http"
	"time"

	"alcyxob/physiotrack/internal/prescription"
	"alcyxob/physiotrack/internal/repository"
	"alcyxob/physiotrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Constants for context keys
const (
	ContextRequestIDKey = "requestID"
	RequestIDHeader     = "X-Request-ID"
)

// Error codes returned in the "code" member of error bodies.
const (
	CodeNotFound        = "not_found"
	CodeConnectivity    = "connectivity_error"
	CodeValidation      = "validation_error"
	CodeInvalidInput    = "invalid_input"
	CodeStorageDisabled = "storage_disabled"
	CodeInternal        = "internal_error"
	CodeEmptyPatientID  = "empty_patient_id"
)

// RequestID tags each request with an id, reusing one sent by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger creates a gin middleware for logging requests using zap.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(ContextRequestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Debug("Request processed", fields...)
		}
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, errCode, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message, "code": errCode})
}

// respondServiceError maps a service or store error onto a status code.
func respondServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	var vErr *prescription.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":         vErr.Error(),
			"code":          CodeValidation,
			"missingFields": vErr.Missing,
		})
	case errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, CodeNotFound, "No prescription found for this patient")
	case errors.Is(err, service.ErrConnectivity):
		abortWithError(c, http.StatusServiceUnavailable, CodeConnectivity, "Cannot reach the record store, please retry")
	case errors.Is(err, service.ErrEmptyPatientID):
		abortWithError(c, http.StatusBadRequest, CodeEmptyPatientID, "Patient ID is empty")
	case errors.Is(err, prescription.ErrInvalidField),
		errors.Is(err, prescription.ErrUnknownExercise),
		errors.Is(err, repository.ErrInvalidRecord):
		abortWithError(c, http.StatusBadRequest, CodeInvalidInput, err.Error())
	case errors.Is(err, service.ErrStorageDisabled):
		abortWithError(c, http.StatusNotImplemented, CodeStorageDisabled, "Sheet export is not configured")
	default:
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
