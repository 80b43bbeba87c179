package handler

import (
	"net/http"

	"facility-uptime-monitor/internal/ingestion"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

type UptimeHandler struct {
	trigger ingestion.AggregationTrigger
}

func NewUptimeHandler(trigger ingestion.AggregationTrigger) *UptimeHandler {
	return &UptimeHandler{trigger: trigger}
}

func (h *UptimeHandler) RegisterAdminRoutes(router gin.IRouter) {
	router.POST("/uptime/calculate", h.Calculate)
}

// Calculate starts a run and returns without waiting for it.
func (h *UptimeHandler) Calculate(c *gin.Context) {
	h.trigger.Trigger(ingestion.SourceHTTP)
	utils.SuccessResponse(c, http.StatusAccepted, "Uptime calculation started", nil)
}
