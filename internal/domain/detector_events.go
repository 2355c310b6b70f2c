package domain

import "encoding/json"

// Các message schema từ detector service (JSON trên một stream hai chiều).
// Detector là collaborator bên ngoài: nó sở hữu thuật toán CV/OCR,
// backend chỉ consume kết quả.

const (
	MessageTypePlateDetection = "plate_detection"
	MessageTypeCapacityUpdate = "capacity_update"
)

// GenericDetectorEvent dùng để parse bước đầu, lấy type và các trường chung
// rồi mới decode sang struct cụ thể (two-phase decode).
type GenericDetectorEvent struct {
	Type        string          `json:"type"`
	Timestamp   float64         `json:"timestamp"` // unix seconds, capture time phía detector
	FrameNumber int64           `json:"frame_number"`
	RawPayload  json.RawMessage `json:"-"` // payload gốc, lưu để audit
}

// PlateObservation - một biển số trong frame. Detector tự dedupe xe đứng yên:
// is_new=false nghĩa là biển này đã được báo trước đó và phải bị bỏ qua.
type PlateObservation struct {
	PlateNumber         string  `json:"plate_number"`
	RawText             string  `json:"raw_text"`
	Confidence          float64 `json:"confidence"`
	DetectionConfidence float64 `json:"detection_confidence"`
	BBox                BBox    `json:"bbox"`
	IsNew               bool    `json:"is_new"`
}

type PlateDetectionEvent struct {
	GenericDetectorEvent
	PlatesDetected   int                `json:"plates_detected"`
	NewPlates        int                `json:"new_plates"`
	ProcessingTimeMs float64            `json:"processing_time_ms"`
	Plates           []PlateObservation `json:"plates"`
}

type SlotObservation struct {
	SlotID     int        `json:"slot_id"`
	Status     SlotStatus `json:"status"` // "occupied" hoặc "empty"
	Confidence float64    `json:"confidence"`
	BBox       BBox       `json:"bbox"`
}

type CapacityUpdateEvent struct {
	GenericDetectorEvent
	TotalSlots       int               `json:"total_slots"`
	Occupied         int               `json:"occupied"`
	Empty            int               `json:"empty"`
	OccupancyRate    float64           `json:"occupancy_rate"` // float trong [0,1]
	ProcessingTimeMs float64           `json:"processing_time_ms"`
	Slots            []SlotObservation `json:"slots"` // frame có thể chỉ báo một subset
}

// AnnotatedFrame - frame đã vẽ annotation từ detector, dùng cho stream
// consumer phía dashboard. SentAt nhúng trong payload để đo latency.
type AnnotatedFrame struct {
	Type        string  `json:"type"`
	FrameNumber int64   `json:"frame_number"`
	SentAt      float64 `json:"sent_at"` // unix seconds phía detector
	ImageBase64 string  `json:"image_base64,omitempty"`
}
