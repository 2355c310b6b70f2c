package domain

import "time"

type LotStatus string

const (
	LotActive   LotStatus = "active"
	LotInactive LotStatus = "inactive"
)

type CameraStatus string

const (
	CameraOnline  CameraStatus = "online"
	CameraOffline CameraStatus = "offline"
	CameraUnknown CameraStatus = "unknown"
)

type CameraRole string

const (
	CameraRoleGate CameraRole = "gate"
	CameraRoleLot  CameraRole = "lot"
)

// CameraInfo - trạng thái của một camera gắn với bãi đỗ.
// LastSeen chỉ được phép tiến về phía trước (xem repo UpdateCameraSeen).
type CameraInfo struct {
	Status   CameraStatus `json:"status"`
	LastSeen *time.Time   `json:"last_seen,omitempty"`
}

type ParkingLot struct {
	ID         int        `json:"id"`
	Name       string     `json:"name" binding:"required"`
	Address    string     `json:"address,omitempty"`
	Latitude   float64    `json:"latitude,omitempty"`
	Longitude  float64    `json:"longitude,omitempty"`
	TotalSlots int        `json:"total_slots,omitempty"`
	Status     LotStatus  `json:"status"`
	GateCamera CameraInfo `json:"gate_camera"`
	LotCamera  CameraInfo `json:"lot_camera"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Slots []Slot `json:"slots,omitempty"` // Không map trực tiếp vào bảng parking_lots
}

type ParkingLotDTO struct {
	Name       string  `json:"name" binding:"required"`
	Address    string  `json:"address"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TotalSlots int     `json:"total_slots"`
	Status     string  `json:"status,omitempty"`
}
