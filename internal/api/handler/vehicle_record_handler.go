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

type VehicleRecordHandler struct {
	facilityService *service.FacilityService
}

func NewVehicleRecordHandler(fs *service.FacilityService) *VehicleRecordHandler {
	return &VehicleRecordHandler{facilityService: fs}
}

// GET /vehicle-records?lotId=&status=&plate=
func (h *VehicleRecordHandler) FindVehicleRecords(c *gin.Context) {
	var filter domain.VehicleRecordFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tham số filter không hợp lệ", "details": err.Error()})
		return
	}

	records, err := h.facilityService.FindVehicleRecords(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi tìm kiếm lịch sử xe", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GET /vehicle-records/:id
func (h *VehicleRecordHandler) GetVehicleRecordByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID bản ghi không hợp lệ"})
		return
	}

	record, err := h.facilityService.GetVehicleRecordByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy bản ghi xe"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy bản ghi xe"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GET /capacity-logs?lotId=&limit=
func (h *VehicleRecordHandler) FindCapacityLogs(c *gin.Context) {
	var filter domain.CapacityLogFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tham số filter không hợp lệ", "details": err.Error()})
		return
	}

	logs, err := h.facilityService.FindCapacityLogs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi truy vấn capacity log", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}
