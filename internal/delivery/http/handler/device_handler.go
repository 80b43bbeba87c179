package handler

import (
	"net/http"

	usecase "facility-uptime-monitor/internal/usecase/device"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	service *usecase.Service
}

func NewDeviceHandler(service *usecase.Service) *DeviceHandler {
	return &DeviceHandler{service: service}
}

func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.GET("/:type/:id", h.GetDevice)
		devices.GET("/:type/:id/outages", h.ListOutages)
		devices.GET("/:type/:id/uptime", h.GetUptimeHistory)
	}
}

func (h *DeviceHandler) RegisterAdminRoutes(router gin.IRouter) {
	router.PUT("/devices/:type/:id/monitored", h.SetMonitored)
	router.GET("/recipients/:campus", h.ListRecipients)
	router.POST("/recipients", h.AddRecipient)
}

func (h *DeviceHandler) ListDevices(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", overview)
}

func (h *DeviceHandler) GetDevice(c *gin.Context) {
	key, err := usecase.ParseKey(c.Param("type"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	device, err := h.service.GetDevice(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device retrieved successfully", device)
}

func (h *DeviceHandler) ListOutages(c *gin.Context) {
	key, err := usecase.ParseKey(c.Param("type"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var query usecase.OutageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	outages, err := h.service.RecentOutages(c.Request.Context(), key, query.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Outages retrieved successfully", outages)
}

func (h *DeviceHandler) GetUptimeHistory(c *gin.Context) {
	key, err := usecase.ParseKey(c.Param("type"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.service.UptimeHistory(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Uptime history retrieved successfully", history)
}

func (h *DeviceHandler) SetMonitored(c *gin.Context) {
	key, err := usecase.ParseKey(c.Param("type"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req usecase.SetMonitoredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	device, err := h.service.SetMonitored(c.Request.Context(), key, *req.Monitored)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device updated successfully", device)
}

func (h *DeviceHandler) ListRecipients(c *gin.Context) {
	addresses, err := h.service.ListRecipients(c.Request.Context(), c.Param("campus"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Recipients retrieved successfully", addresses)
}

func (h *DeviceHandler) AddRecipient(c *gin.Context) {
	var req usecase.AddRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.AddRecipient(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Recipient added successfully", nil)
}
