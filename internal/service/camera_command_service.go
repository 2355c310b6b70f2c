package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/google/uuid"
)

var ErrIoTNotConfigured = errors.New("IoT Data Plane chưa được cấu hình")

// CameraCommandService publish lệnh điều khiển (restart, snapshot) tới
// detector node của một bãi qua AWS IoT Data Plane.
type CameraCommandService struct {
	iotDataClient *iotdataplane.Client
	lotRepo       repository.ParkingLotRepository
}

func NewCameraCommandService(iotDataClient *iotdataplane.Client, lotRepo repository.ParkingLotRepository) *CameraCommandService {
	return &CameraCommandService{
		iotDataClient: iotDataClient,
		lotRepo:       lotRepo,
	}
}

// SendCameraCommand publish lệnh với QoS 1 lên topic của camera. Trả về
// request ID để client đối chiếu ack (nếu firmware có gửi).
func (s *CameraCommandService) SendCameraCommand(ctx context.Context, lotID int, role domain.CameraRole, command domain.CameraCommand) (string, error) {
	if s.iotDataClient == nil {
		return "", ErrIoTNotConfigured
	}

	// Xác nhận bãi tồn tại trước khi publish.
	if _, err := s.lotRepo.FindByID(ctx, lotID); err != nil {
		return "", err
	}

	requestID := uuid.NewString()
	topic := fmt.Sprintf("parking_dashboard/command/cameras/%d/%s", lotID, role)

	payload := domain.CameraControlCommandPayload{
		Command:   command,
		RequestID: requestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("lỗi marshal payload lệnh camera: %w", err)
	}

	log.Printf("CameraCommandService: Đang publish lệnh '%s' (ReqID: %s) tới topic %s", command, requestID, topic)
	_, err = s.iotDataClient.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payloadBytes,
	})
	if err != nil {
		return "", fmt.Errorf("lỗi publish lệnh MQTT: %w", err)
	}

	log.Printf("Đã gửi lệnh '%s' (ReqID: %s) thành công tới camera %s của bãi %d", command, requestID, role, lotID)
	return requestID, nil
}
