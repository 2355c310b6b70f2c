package domain

// CameraCommand là lệnh điều khiển gửi xuống detector node qua MQTT.
type CameraCommand string

const (
	CameraCommandRestart  CameraCommand = "restart"
	CameraCommandSnapshot CameraCommand = "snapshot"
)

// CameraControlCommandPayload là payload publish lên topic lệnh camera.
type CameraControlCommandPayload struct {
	Command   CameraCommand `json:"command"`
	RequestID string        `json:"request_id"`
}

type SendCameraCommandDTO struct {
	Role    CameraRole    `json:"role" binding:"required,oneof=gate lot"`
	Command CameraCommand `json:"command" binding:"required,oneof=restart snapshot"`
}
