package domain

import "time"

// Contractor - đơn vị thuê chỗ trong bãi, có hạn mức chỗ đỗ được cấp.
// Vượt hạn mức (occupied > AllocatedCapacity) sẽ sinh Violation.
type Contractor struct {
	ID                int       `json:"id"`
	Name              string    `json:"name" binding:"required"`
	LotID             int       `json:"lot_id"`
	AllocatedCapacity int       `json:"allocated_capacity"`
	ViolationPenalty  float64   `json:"violation_penalty"` // phí phạt cấu hình sẵn cho mỗi violation
	ContactEmail      string    `json:"contact_email,omitempty"`
	ContactPhone      string    `json:"contact_phone,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ContractorDTO struct {
	Name              string  `json:"name" binding:"required"`
	LotID             int     `json:"lot_id" binding:"required"`
	AllocatedCapacity int     `json:"allocated_capacity" binding:"required"`
	ViolationPenalty  float64 `json:"violation_penalty"`
	ContactEmail      string  `json:"contact_email"`
	ContactPhone      string  `json:"contact_phone"`
}
