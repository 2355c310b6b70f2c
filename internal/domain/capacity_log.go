package domain

import (
	"encoding/json"
	"time"
)

// CapacityLog - snapshot bất biến cho mỗi capacity update đã xử lý.
// Append-only, không bao giờ mutate sau khi tạo (audit trail).
type CapacityLog struct {
	ID               int             `json:"id"`
	LotID            int             `json:"lot_id"`
	EventTimestamp   time.Time       `json:"event_timestamp"` // timestamp của detector
	FrameNumber      int64           `json:"frame_number"`
	TotalSlots       int             `json:"total_slots"`
	Occupied         int             `json:"occupied"`
	Empty            int             `json:"empty"`
	OccupancyRate    float64         `json:"occupancy_rate"`
	ProcessingTimeMs float64         `json:"processing_time_ms"` // thời gian xử lý phía detector
	SlotStatuses     json.RawMessage `json:"slot_statuses,omitempty"`
	IngestLatencyMs  float64         `json:"ingest_latency_ms"` // thời gian từ lúc nhận frame đến lúc ghi xong
	CreatedAt        time.Time       `json:"created_at"`
}

type CapacityLogFilterDTO struct {
	LotID *int `form:"lotId"`
	Limit *int `form:"limit"`
}
