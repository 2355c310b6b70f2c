package domain

import (
	"encoding/json"
	"time"

	"gopkg.in/guregu/null.v4"
)

type AlertType string

const (
	AlertCapacityWarning   AlertType = "capacity_warning"
	AlertCapacityBreach    AlertType = "capacity_breach"
	AlertCameraOffline     AlertType = "camera_offline"
	AlertViolationDetected AlertType = "violation_detected"
)

type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert - cảnh báo cho dashboard. Invariant: tối đa một alert status=active
// cho mỗi cặp (lot_id, type); điều kiện lặp lại trong khi alert còn active
// sẽ bị bỏ qua thay vì spam.
type Alert struct {
	ID             int             `json:"id"`
	Type           AlertType       `json:"type"`
	Severity       AlertSeverity   `json:"severity"`
	LotID          int             `json:"lot_id"`
	ContractorID   null.Int        `json:"contractor_id"`
	Message        string          `json:"message,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"` // payload tự do theo từng loại alert
	Status         AlertStatus     `json:"status"`
	AcknowledgedBy null.String     `json:"acknowledged_by"`
	ResolvedAt     null.Time       `json:"resolved_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type AlertFilterDTO struct {
	LotID  *int    `form:"lotId"`
	Type   *string `form:"type"`
	Status *string `form:"status"`
}

type AlertStatusDTO struct {
	Operator string `json:"operator,omitempty"`
}
