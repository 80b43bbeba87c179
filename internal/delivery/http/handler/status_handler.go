package handler

import (
	"errors"
	"io"
	"net/http"

	"facility-uptime-monitor/internal/ingestion"
	"facility-uptime-monitor/internal/middleware"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	service *ingestion.Service
}

func NewStatusHandler(service *ingestion.Service) *StatusHandler {
	return &StatusHandler{service: service}
}

func (h *StatusHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/status", h.ReportStatus)
}

// RegisterLegacyRoutes mounts the path older firmware posts to.
func (h *StatusHandler) RegisterLegacyRoutes(router gin.IRouter) {
	router.POST("/uptime", h.ReportStatus)
}

func (h *StatusHandler) ReportStatus(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.service.HandlePayload(c.Request.Context(), ingestion.SourceHTTP, payload, c.GetHeader(middleware.APIKeyHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device status updated successfully", outcome)
}
