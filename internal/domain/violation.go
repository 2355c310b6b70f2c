package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type ViolationType string

const (
	ViolationCapacityBreach ViolationType = "capacity_breach"
)

type ViolationStatus string

const (
	ViolationPending      ViolationStatus = "pending"
	ViolationAcknowledged ViolationStatus = "acknowledged"
	ViolationResolved     ViolationStatus = "resolved"
)

// Violation - vi phạm hạn mức của contractor tại một bãi.
// Invariant: tối đa một violation status=pending cho mỗi cặp
// (contractor_id, lot_id); breach mới kéo dài violation đang pending
// thay vì tạo bản ghi trùng. Occupancy giảm xuống dưới hạn mức KHÔNG
// tự resolve — chờ thao tác acknowledge thủ công.
type Violation struct {
	ID                int             `json:"id"`
	ContractorID      int             `json:"contractor_id"`
	LotID             int             `json:"lot_id"`
	ViolationType     ViolationType   `json:"violation_type"`
	AllocatedCapacity int             `json:"allocated_capacity"`
	ActualOccupancy   int             `json:"actual_occupancy"`
	ExcessVehicles    int             `json:"excess_vehicles"`
	DurationMinutes   int             `json:"duration_minutes"` // từ thời điểm breach đầu tiên, cập nhật đơn điệu tăng
	Penalty           float64         `json:"penalty"`
	Status            ViolationStatus `json:"status"`
	FirstDetectedAt   time.Time       `json:"first_detected_at"`
	LastObservedAt    time.Time       `json:"last_observed_at"`
	AcknowledgedBy    null.String     `json:"acknowledged_by"`
	ResolvedAt        null.Time       `json:"resolved_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type ViolationFilterDTO struct {
	LotID        *int    `form:"lotId"`
	ContractorID *int    `form:"contractorId"`
	Status       *string `form:"status"`
}

type ViolationStatusDTO struct {
	Operator string `json:"operator,omitempty"`
}
