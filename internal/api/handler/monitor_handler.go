package handler

import (
	"errors"
	"net/http"
	"strconv"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
	"parking_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// MonitorHandler phục vụ badge trạng thái kết nối detector và lệnh
// điều khiển camera.
type MonitorHandler struct {
	registry       *service.MonitorRegistry
	commandService *service.CameraCommandService
}

func NewMonitorHandler(registry *service.MonitorRegistry, commandService *service.CameraCommandService) *MonitorHandler {
	return &MonitorHandler{
		registry:       registry,
		commandService: commandService,
	}
}

// GET /monitors
func (h *MonitorHandler) GetMonitorStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"monitors": h.registry.Statuses()})
}

// POST /parking-lots/:id/cameras/command
func (h *MonitorHandler) SendCameraCommand(c *gin.Context) {
	lotID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID bãi đỗ không hợp lệ"})
		return
	}

	var dto domain.SendCameraCommandDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID, err := h.commandService.SendCameraCommand(c.Request.Context(), lotID, dto.Role, dto.Command)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bãi đỗ xe"})
			return
		}
		if errors.Is(err, service.ErrIoTNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể gửi lệnh camera", "details": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": requestID, "status": "sent"})
}
