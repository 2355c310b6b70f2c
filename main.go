package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"parking_dashboard/internal/api"
	"parking_dashboard/internal/api/handler"
	"parking_dashboard/internal/config"
	"parking_dashboard/internal/detector"
	"parking_dashboard/internal/iot"
	"parking_dashboard/internal/repository/postgresql"
	"parking_dashboard/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config" // Alias để tránh trùng tên
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	log.Println("Cấu hình đã được tải.")

	// 2. Setup Database Connection
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Không thể kết nối database: %v", err)
	}
	defer db.Close()
	log.Println("Đã kết nối database thành công!")

	// 3. Khởi tạo AWS Clients (tùy chọn: chỉ khi có queue hoặc MQTT endpoint)
	var sqsClient *sqs.Client
	var iotDataPlaneClient *iotdataplane.Client
	if cfg.SQSEventQueueURL != "" || cfg.IoTMQTTEndpoint != "" {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("Không thể tải AWS SDK config: %v", err)
		}
		log.Println("Đã tải AWS SDK config thành công cho region:", cfg.AWSRegion)

		sqsClient = sqs.NewFromConfig(awsSDKCfg)
		iotDataPlaneClient = iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
			if cfg.IoTMQTTEndpoint != "" {
				endpointWithSchema := cfg.IoTMQTTEndpoint
				if !strings.HasPrefix(endpointWithSchema, "https://") && !strings.HasPrefix(endpointWithSchema, "http://") {
					endpointWithSchema = "https://" + endpointWithSchema
				}
				o.BaseEndpoint = aws.String(endpointWithSchema)
			}
		})
		log.Println("Đã khởi tạo SQS client và IoT Data Plane client.")
	}

	// 4. Initialize Repositories
	parkingLotRepo := postgresql.NewPgParkingLotRepository(db)
	slotRepo := postgresql.NewPgSlotRepository(db)
	contractorRepo := postgresql.NewPgContractorRepository(db)
	vehicleRecordRepo := postgresql.NewPgVehicleRecordRepository(db)
	capacityLogRepo := postgresql.NewPgCapacityLogRepository(db)
	violationRepo := postgresql.NewPgViolationRepository(db)
	alertRepo := postgresql.NewPgAlertRepository(db)

	// init websocket manager
	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start()
	log.Println("WebSocket Manager đã được khởi động.")

	// 5. Initialize Services
	facilityService := service.NewFacilityService(parkingLotRepo, slotRepo, contractorRepo,
		vehicleRecordRepo, capacityLogRepo, violationRepo, alertRepo, webSocketManager)
	gateMonitor := service.NewGateMonitorService(cfg.MonitorLotID, cfg.GateID,
		vehicleRecordRepo, parkingLotRepo, webSocketManager)
	lotMonitor := service.NewLotMonitorService(cfg.MonitorLotID, cfg.CapacityWarnThreshold,
		capacityLogRepo, slotRepo, parkingLotRepo, contractorRepo, violationRepo, alertRepo, webSocketManager)
	cameraCommandService := service.NewCameraCommandService(iotDataPlaneClient, parkingLotRepo)

	// 6. Detector connection managers
	policy := detector.ReconnectPolicy{
		InitialDelay: cfg.ReconnectInitial,
		Multiplier:   cfg.ReconnectMultiplier,
		MaxAttempts:  cfg.ReconnectMaxAttempts,
		MaxDelay:     cfg.ReconnectMaxDelay,
	}
	registry := service.NewMonitorRegistry()

	onFatal := func(role string, err error) {
		log.Printf("Kết nối detector '%s' đã hết số lần retry: %v. Cần can thiệp thủ công (restart process hoặc lệnh restart camera).", role, err)
	}
	onStateChange := func(st detector.Status) {
		webSocketManager.BroadcastConnectionStatus(service.StatusNotification(st))
	}

	gateManager := detector.NewManager("gate-monitor", cfg.DetectorBaseURL+cfg.GateMonitorPath, policy, gateMonitor)
	gateManager.OnFatal = onFatal
	gateManager.OnStateChange = onStateChange
	registry.RegisterManager(gateManager)

	lotManager := detector.NewManager("lot-monitor", cfg.DetectorBaseURL+cfg.LotMonitorPath, policy, lotMonitor)
	lotManager.OnFatal = onFatal
	lotManager.OnStateChange = onStateChange
	registry.RegisterManager(lotManager)

	streamConsumer := detector.NewStreamConsumer(cfg.DetectorBaseURL+cfg.AnnotatedFramePath, policy, webSocketManager)
	streamConsumer.Manager().OnFatal = onFatal
	streamConsumer.Manager().OnStateChange = onStateChange
	registry.RegisterStream(streamConsumer)

	rootCtx, cancelRoot := context.WithCancel(context.Background())

	if err := gateManager.Connect(rootCtx); err != nil {
		log.Printf("Kết nối gate-monitor thất bại (sẽ tự retry): %v", err)
	}
	if err := lotManager.Connect(rootCtx); err != nil {
		log.Printf("Kết nối lot-monitor thất bại (sẽ tự retry): %v", err)
	}
	if err := streamConsumer.Start(rootCtx); err != nil {
		log.Printf("Kết nối annotated-frames thất bại (sẽ tự retry): %v", err)
	}

	// 7. Camera watchdog
	watchdog := service.NewCameraWatchdog(parkingLotRepo, alertRepo, webSocketManager,
		cfg.CameraOfflineAfter, cfg.WatchdogInterval)
	go watchdog.Run(rootCtx)

	// 8. Khởi tạo và Chạy SQS Consumer (ingestion dự phòng)
	var wg sync.WaitGroup
	if cfg.SQSEventQueueURL == "" {
		log.Println("CẢNH BÁO: SQS_EVENT_QUEUE_URL chưa được cấu hình. SQS Consumer sẽ không chạy.")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqsClient, cfg, gateMonitor, lotMonitor)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(rootCtx)
			log.Println("SQS Consumer đã dừng.")
		}()
	}

	// 9. Setup HTTP Router
	router := api.SetupRouter(facilityService, registry, cameraCommandService, webSocketManager)

	// 10. Start HTTP Server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server đang chạy trên port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Lỗi ListenAndServe(): %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Đang tắt server...")

	gateManager.Disconnect()
	lotManager.Disconnect()
	streamConsumer.Stop()
	cancelRoot()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server buộc phải tắt: %v", err)
	}

	if cfg.SQSEventQueueURL != "" {
		log.Println("Đang chờ SQS consumer dừng (tối đa 5 giây)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("SQS consumer đã dừng hoàn toàn.")
		case <-time.After(5 * time.Second):
			log.Println("SQS consumer không dừng trong thời gian chờ.")
		}
	}

	log.Println("Server đã tắt.")
}
