package domain

import "time"

type SlotStatus string

const (
	SlotOccupied SlotStatus = "occupied"
	SlotEmpty    SlotStatus = "empty"
)

// BBox - hình chữ nhật trong toạ độ của detector.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Slot - một ô đỗ vật lý trong bãi. Được tạo lazy khi capacity update
// đầu tiên báo về slot_id chưa biết; sau đó chỉ mutate, không bao giờ xóa.
type Slot struct {
	ID          int        `json:"id"`
	LotID       int        `json:"lot_id"`
	SlotID      int        `json:"slot_id"` // định danh ổn định theo ô vật lý, do detector cấp
	BBox        BBox       `json:"bbox"`
	Status      SlotStatus `json:"status"`
	Confidence  float64    `json:"confidence,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
	CreatedAt   time.Time  `json:"created_at"`
}
