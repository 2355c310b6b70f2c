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

type ViolationHandler struct {
	facilityService *service.FacilityService
}

func NewViolationHandler(fs *service.FacilityService) *ViolationHandler {
	return &ViolationHandler{facilityService: fs}
}

// GET /violations?lotId=&contractorId=&status=
func (h *ViolationHandler) FindViolations(c *gin.Context) {
	var filter domain.ViolationFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tham số filter không hợp lệ", "details": err.Error()})
		return
	}

	violations, err := h.facilityService.FindViolations(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi truy vấn violation", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, violations)
}

// GET /violations/:id
func (h *ViolationHandler) GetViolationByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID violation không hợp lệ"})
		return
	}

	v, err := h.facilityService.GetViolationByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy violation"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy violation"})
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /violations/:id/acknowledge
func (h *ViolationHandler) AcknowledgeViolation(c *gin.Context) {
	h.transition(c, h.facilityService.AcknowledgeViolation)
}

// POST /violations/:id/resolve
func (h *ViolationHandler) ResolveViolation(c *gin.Context) {
	h.transition(c, h.facilityService.ResolveViolation)
}

func (h *ViolationHandler) transition(c *gin.Context, fn func(ctx context.Context, id int, operator string) (*domain.Violation, error)) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID violation không hợp lệ"})
		return
	}

	var dto domain.ViolationStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := fn(c.Request.Context(), id, dto.Operator)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy violation"})
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật trạng thái violation", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}
