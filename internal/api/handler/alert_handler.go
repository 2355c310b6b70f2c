package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
	"parking_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	facilityService *service.FacilityService
}

func NewAlertHandler(fs *service.FacilityService) *AlertHandler {
	return &AlertHandler{facilityService: fs}
}

// GET /alerts?lotId=&type=&status=
func (h *AlertHandler) FindAlerts(c *gin.Context) {
	var filter domain.AlertFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tham số filter không hợp lệ", "details": err.Error()})
		return
	}

	alerts, err := h.facilityService.FindAlerts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi truy vấn alert", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GET /alerts/:id
func (h *AlertHandler) GetAlertByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID alert không hợp lệ"})
		return
	}

	a, err := h.facilityService.GetAlertByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy alert"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy alert"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// POST /alerts/:id/acknowledge
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	h.transition(c, h.facilityService.AcknowledgeAlert)
}

// POST /alerts/:id/resolve
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	h.transition(c, h.facilityService.ResolveAlert)
}

func (h *AlertHandler) transition(c *gin.Context, fn func(ctx context.Context, id int, operator string) (*domain.Alert, error)) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID alert không hợp lệ"})
		return
	}

	var dto domain.AlertStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := fn(c.Request.Context(), id, dto.Operator)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy alert"})
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật trạng thái alert", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}
