package domain

import "time"

// Các event chuẩn hoá đẩy xuống dashboard client qua WebSocket.
// Delivery là best-effort: không replay, không chờ acknowledgment;
// client kết nối sau khi event đã publish thì không thấy event đó.

type DashboardEventType string

const (
	EventCapacityUpdate   DashboardEventType = "capacity_update"
	EventVehicleEntry     DashboardEventType = "vehicle_entry"
	EventVehicleExit      DashboardEventType = "vehicle_exit"
	EventViolation        DashboardEventType = "violation"
	EventAlert            DashboardEventType = "alert"
	EventConnectionStatus DashboardEventType = "connection_status"
	EventAnnotatedFrame   DashboardEventType = "annotated_frame"
)

// DashboardEvent - envelope chung. Thêm field mới phải giữ tính additive
// (không có versioning scheme).
type DashboardEvent struct {
	EventID   string             `json:"event_id"`
	Type      DashboardEventType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Data      interface{}        `json:"data"`
}

// CapacityUpdateNotification - trạng thái sức chứa của một bãi sau mỗi frame.
type CapacityUpdateNotification struct {
	LotID         int       `json:"lot_id"`
	TotalSlots    int       `json:"total_slots"`
	Occupied      int       `json:"occupied"`
	Empty         int       `json:"empty"`
	OccupancyRate float64   `json:"occupancy_rate"`
	Timestamp     time.Time `json:"timestamp"`
}

// VehicleEventNotification - xe vào/ra cổng.
type VehicleEventNotification struct {
	LotID           int       `json:"lot_id"`
	PlateNumber     string    `json:"plate_number"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes *int64    `json:"duration_minutes,omitempty"` // chỉ có khi xe ra
}

// ConnectionStatusNotification - badge trạng thái kết nối detector trên
// dashboard. Client không bao giờ thấy raw transport error, chỉ thấy state
// + attempt + countdown tới lần retry tiếp theo.
type ConnectionStatusNotification struct {
	Role            string  `json:"role"` // "gate-monitor", "lot-monitor", "annotated-frames"
	State           string  `json:"state"`
	Attempt         int     `json:"attempt,omitempty"`
	NextRetryInSecs float64 `json:"next_retry_in_seconds,omitempty"`
	FramesPerSecond float64 `json:"frames_per_second,omitempty"`
	LatencyMs       float64 `json:"latency_ms,omitempty"`
}
