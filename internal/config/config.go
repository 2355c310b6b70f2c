package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	// Dịch vụ detector (camera-side plate/occupancy detection)
	DetectorBaseURL      string        // ví dụ: ws://detector:8765
	GateMonitorPath      string        // endpoint cho gate camera stream
	LotMonitorPath       string        // endpoint cho lot camera stream
	AnnotatedFramePath   string        // endpoint cho annotated video frames
	ReconnectInitial     time.Duration // delay cho lần reconnect đầu tiên
	ReconnectMultiplier  float64
	ReconnectMaxAttempts int
	ReconnectMaxDelay    time.Duration // trần của exponential backoff

	// Bãi mà instance này giám sát. Mỗi instance dashboard phục vụ một
	// facility, các bãi khác chỉ đọc qua REST.
	MonitorLotID int
	GateID       string

	// Ngưỡng nghiệp vụ
	CapacityWarnThreshold float64       // occupancy rate > threshold => cảnh báo gần đầy
	CameraOfflineAfter    time.Duration // không có frame trong khoảng này => camera offline
	WatchdogInterval      time.Duration

	AWSRegion        string
	SQSEventQueueURL string // ingestion dự phòng qua AWS IoT rule -> SQS
	IoTMQTTEndpoint  string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Cảnh báo: Không thể tải file .env: %v", err)
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	reconnectInitialMs, _ := strconv.Atoi(getEnv("RECONNECT_INITIAL_DELAY_MS", "1000"))
	reconnectMultiplier, _ := strconv.ParseFloat(getEnv("RECONNECT_MULTIPLIER", "1.5"), 64)
	reconnectMaxAttempts, _ := strconv.Atoi(getEnv("RECONNECT_MAX_ATTEMPTS", "10"))
	reconnectMaxDelayMs, _ := strconv.Atoi(getEnv("RECONNECT_MAX_DELAY_MS", "30000"))

	monitorLotID, _ := strconv.Atoi(getEnv("MONITOR_LOT_ID", "1"))

	warnThreshold, _ := strconv.ParseFloat(getEnv("CAPACITY_WARN_THRESHOLD", "0.9"), 64)
	cameraOfflineSec, _ := strconv.Atoi(getEnv("CAMERA_OFFLINE_AFTER_SECONDS", "120"))
	watchdogIntervalSec, _ := strconv.Atoi(getEnv("WATCHDOG_INTERVAL_SECONDS", "30"))

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "youruser"),
		DBPassword: getEnv("DB_PASSWORD", "yourpassword"),
		DBName:     getEnv("DB_NAME", "parking_dashboard"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		DetectorBaseURL:      getEnv("DETECTOR_BASE_URL", "ws://localhost:8765"),
		GateMonitorPath:      getEnv("DETECTOR_GATE_PATH", "/gate-monitor"),
		LotMonitorPath:       getEnv("DETECTOR_LOT_PATH", "/lot-monitor"),
		AnnotatedFramePath:   getEnv("DETECTOR_FRAME_PATH", "/annotated-frames"),
		ReconnectInitial:     time.Duration(reconnectInitialMs) * time.Millisecond,
		ReconnectMultiplier:  reconnectMultiplier,
		ReconnectMaxAttempts: reconnectMaxAttempts,
		ReconnectMaxDelay:    time.Duration(reconnectMaxDelayMs) * time.Millisecond,

		MonitorLotID: monitorLotID,
		GateID:       getEnv("GATE_ID", "gate-1"),

		CapacityWarnThreshold: warnThreshold,
		CameraOfflineAfter:    time.Duration(cameraOfflineSec) * time.Second,
		WatchdogInterval:      time.Duration(watchdogIntervalSec) * time.Second,

		AWSRegion:        getEnv("AWS_REGION", "ap-southeast-1"),
		SQSEventQueueURL: getEnv("SQS_EVENT_QUEUE_URL", ""), // để trống nếu không dùng ingestion qua SQS
		IoTMQTTEndpoint:  getEnv("IOT_MQTT_ENDPOINT", ""),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Biến môi trường '%s' không được đặt, sử dụng giá trị mặc định: '%s'", key, fallback)
	return fallback
}
