package handler

import (
	"errors"
	"net/http"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/ingestion"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/middleware"
	appErrors "facility-uptime-monitor/pkg/errors"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "Internal Server Error"

// respondError maps service errors to status codes. Anything unrecognised is a
// 500 whose details only reach the log.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *ingestion.ValidationError
		appErr        *appErrors.AppError
	)

	switch {
	case errors.As(err, &validationErr):
		utils.ErrorResponse(c, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, appErrors.ErrMissingAPIKey):
		utils.ErrorResponse(c, http.StatusBadRequest, "Missing api_key")
	case errors.Is(err, appErrors.ErrInvalidAPIKey):
		utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid API key")
	case errors.Is(err, domainDevice.ErrDeviceNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found")
	case errors.Is(err, domainDevice.ErrInvalidKey):
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR":
		utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
	case errors.Is(err, appErrors.ErrShuttingDown):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Service is shutting down")
	default:
		_ = c.Error(err)
		logger.WithRequestID(middleware.GetRequestID(c)).Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, internalErrorMessage)
	}
}
