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

type ContractorHandler struct {
	facilityService *service.FacilityService
}

func NewContractorHandler(fs *service.FacilityService) *ContractorHandler {
	return &ContractorHandler{facilityService: fs}
}

// POST /contractors
func (h *ContractorHandler) CreateContractor(c *gin.Context) {
	var dto domain.ContractorDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractor, err := h.facilityService.CreateContractor(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo contractor", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, contractor)
}

// GET /contractors/:id
func (h *ContractorHandler) GetContractorByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID contractor không hợp lệ"})
		return
	}

	contractor, err := h.facilityService.GetContractorByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy contractor"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy thông tin contractor"})
		return
	}
	c.JSON(http.StatusOK, contractor)
}

// GET /contractors?lotId=
func (h *ContractorHandler) GetContractors(c *gin.Context) {
	if lotIDStr := c.Query("lotId"); lotIDStr != "" {
		lotID, err := strconv.Atoi(lotIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lotId không hợp lệ"})
			return
		}
		contractors, err := h.facilityService.GetContractorsByLotID(c.Request.Context(), lotID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy danh sách contractor"})
			return
		}
		c.JSON(http.StatusOK, contractors)
		return
	}

	contractors, err := h.facilityService.GetAllContractors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi khi lấy danh sách contractor"})
		return
	}
	c.JSON(http.StatusOK, contractors)
}

// PUT /contractors/:id
func (h *ContractorHandler) UpdateContractor(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID contractor không hợp lệ"})
		return
	}

	var dto domain.ContractorDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractor, err := h.facilityService.UpdateContractor(c.Request.Context(), id, dto)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy contractor để cập nhật"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể cập nhật contractor", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, contractor)
}

// DELETE /contractors/:id
func (h *ContractorHandler) DeleteContractor(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID contractor không hợp lệ"})
		return
	}

	if err := h.facilityService.DeleteContractor(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Không tìm thấy contractor để xóa"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xóa contractor", "details": err.Error()})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
