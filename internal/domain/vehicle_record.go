package domain

import (
	"encoding/json"
	"time"

	"gopkg.in/guregu/null.v4"
)

type VehicleRecordStatus string

const (
	VehicleInside VehicleRecordStatus = "inside"
	VehicleExited VehicleRecordStatus = "exited"
)

// VehicleRecord - một lượt vào/ra của xe theo biển số.
// Invariant: tại mọi thời điểm chỉ có tối đa một record status=inside
// cho mỗi cặp (plate_number, lot_id). Reconciler chịu trách nhiệm giữ invariant này.
type VehicleRecord struct {
	ID           int                 `json:"id"`
	PlateNumber  string              `json:"plate_number"`
	LotID        int                 `json:"lot_id"`
	ContractorID null.Int            `json:"contractor_id"`
	Status       VehicleRecordStatus `json:"status"`

	EntryTime       time.Time       `json:"entry_time"` // capture time của detector, không phải thời điểm message đến
	EntryGateID     string          `json:"entry_gate_id,omitempty"`
	EntryConfidence float64         `json:"entry_confidence,omitempty"`
	EntryPayload    json.RawMessage `json:"entry_payload,omitempty"` // raw detection, lưu để audit

	ExitTime        null.Time       `json:"exit_time"`
	ExitGateID      null.String     `json:"exit_gate_id"`
	ExitConfidence  null.Float      `json:"exit_confidence"`
	ExitPayload     json.RawMessage `json:"exit_payload,omitempty"`
	DurationMinutes null.Int        `json:"duration_minutes"` // floor((exit-entry)/1 phút), chỉ set khi exit

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VehicleRecordFilterDTO struct {
	LotID  *int    `form:"lotId"`
	Status *string `form:"status"`
	Plate  *string `form:"plate"`
}
