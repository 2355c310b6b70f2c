package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

// GateMonitorService - Entry/Exit Reconciler. Consume plate_detection events
// từ stream "gate-monitor" của một bãi, quyết định xe vào hay ra, tính thời
// gian đỗ và lưu VehicleRecord.
//
// Invariant: tối đa một bản ghi status=inside cho mỗi (plate, lot). Đảm bảo
// bằng xử lý tuần tự theo thứ tự đến trên một connection (detector đã
// serialize) + partial unique index ở tầng store làm lưới an toàn.
type GateMonitorService struct {
	lotID       int
	gateID      string
	vehicleRepo repository.VehicleRecordRepository
	lotRepo     repository.ParkingLotRepository
	broadcaster Broadcaster
}

func NewGateMonitorService(
	lotID int,
	gateID string,
	vehicleRepo repository.VehicleRecordRepository,
	lotRepo repository.ParkingLotRepository,
	broadcaster Broadcaster,
) *GateMonitorService {
	return &GateMonitorService{
		lotID:       lotID,
		gateID:      gateID,
		vehicleRepo: vehicleRepo,
		lotRepo:     lotRepo,
		broadcaster: broadcaster,
	}
}

// HandleDetectorMessage implement detector.MessageHandler. Two-phase decode:
// lấy type trước, decode struct cụ thể sau.
func (s *GateMonitorService) HandleDetectorMessage(ctx context.Context, payload []byte) error {
	var generic domain.GenericDetectorEvent
	if err := json.Unmarshal(payload, &generic); err != nil {
		return fmt.Errorf("lỗi unmarshal generic detector event: %w", err)
	}

	switch generic.Type {
	case domain.MessageTypePlateDetection:
		var event domain.PlateDetectionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("lỗi unmarshal plate_detection event: %w", err)
		}
		event.RawPayload = payload
		return s.ProcessPlateDetection(ctx, event)
	default:
		log.Printf("GateMonitor (lot %d): loại message không được xử lý: '%s'", s.lotID, generic.Type)
		return nil
	}
}

// ProcessPlateDetection xử lý từng observation theo thứ tự xuất hiện trong
// frame. Observation có is_new=false đã được detector dedupe (xe đứng yên
// trước camera) và bị bỏ qua hoàn toàn.
func (s *GateMonitorService) ProcessPlateDetection(ctx context.Context, event domain.PlateDetectionEvent) error {
	// entry/exit timestamp lấy từ capture time của detector, không phải
	// thời điểm message đến backend.
	captureTime := unixFloatToTime(event.Timestamp)

	for _, obs := range event.Plates {
		if !obs.IsNew {
			continue
		}
		if err := s.reconcileObservation(ctx, obs, captureTime); err != nil {
			// Lỗi persistence: log và đi tiếp, không tear down connection,
			// không retry — telemetry best-effort.
			log.Printf("GateMonitor (lot %d): lỗi xử lý biển số '%s': %v", s.lotID, obs.PlateNumber, err)
		}
	}

	// Có frame từ gate camera nghĩa là camera đang sống.
	if err := s.lotRepo.UpdateCameraSeen(ctx, s.lotID, domain.CameraRoleGate, captureTime); err != nil {
		log.Printf("GateMonitor (lot %d): lỗi cập nhật gate camera last_seen: %v", s.lotID, err)
	}

	return nil
}

func (s *GateMonitorService) reconcileObservation(ctx context.Context, obs domain.PlateObservation, captureTime time.Time) error {
	open, err := s.vehicleRepo.FindInsideByPlateAndLot(ctx, s.lotID, obs.PlateNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenRecord) {
			// Không có bản ghi mở => xe VÀO. Exit không khớp entry nào cũng
			// rơi vào nhánh này: mặc định phòng thủ là coi như lượt vào mới,
			// không phải lỗi.
			return s.recordEntry(ctx, obs, captureTime)
		}
		return fmt.Errorf("lỗi tìm bản ghi đang mở: %w", err)
	}
	return s.recordExit(ctx, open, obs, captureTime)
}

func (s *GateMonitorService) recordEntry(ctx context.Context, obs domain.PlateObservation, captureTime time.Time) error {
	rawObs, _ := json.Marshal(obs)
	rec := &domain.VehicleRecord{
		PlateNumber:     obs.PlateNumber,
		LotID:           s.lotID,
		Status:          domain.VehicleInside,
		EntryTime:       captureTime,
		EntryGateID:     s.gateID,
		EntryConfidence: obs.Confidence,
		EntryPayload:    rawObs, // raw detection, lưu để audit
	}

	created, err := s.vehicleRepo.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// Writer khác đã tạo bản ghi inside cho biển này (nhiều instance
			// chạy song song). Store đã giữ invariant, bỏ qua.
			log.Printf("GateMonitor (lot %d): biển '%s' đã inside, bỏ qua entry trùng", s.lotID, obs.PlateNumber)
			return nil
		}
		return fmt.Errorf("lỗi tạo bản ghi entry: %w", err)
	}

	log.Printf("GateMonitor (lot %d): xe '%s' VÀO lúc %s (confidence %.2f)",
		s.lotID, created.PlateNumber, created.EntryTime.Format(time.RFC3339), created.EntryConfidence)

	s.broadcaster.BroadcastVehicleEvent(domain.EventVehicleEntry, domain.VehicleEventNotification{
		LotID:       s.lotID,
		PlateNumber: created.PlateNumber,
		Confidence:  created.EntryConfidence,
		Timestamp:   created.EntryTime,
	})
	return nil
}

func (s *GateMonitorService) recordExit(ctx context.Context, open *domain.VehicleRecord, obs domain.PlateObservation, captureTime time.Time) error {
	rawObs, _ := json.Marshal(obs)

	duration := DurationMinutes(open.EntryTime, captureTime)

	open.ExitTime.SetValid(captureTime)
	open.ExitGateID.SetValid(s.gateID)
	open.ExitConfidence.SetValid(obs.Confidence)
	open.ExitPayload = rawObs
	open.DurationMinutes.SetValid(duration)

	updated, err := s.vehicleRepo.CompleteExit(ctx, open)
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenRecord) {
			log.Printf("GateMonitor (lot %d): bản ghi của '%s' đã bị đóng bởi writer khác, bỏ qua exit trùng", s.lotID, obs.PlateNumber)
			return nil
		}
		return fmt.Errorf("lỗi hoàn tất exit: %w", err)
	}

	log.Printf("GateMonitor (lot %d): xe '%s' RA sau %d phút", s.lotID, updated.PlateNumber, duration)

	s.broadcaster.BroadcastVehicleEvent(domain.EventVehicleExit, domain.VehicleEventNotification{
		LotID:           s.lotID,
		PlateNumber:     updated.PlateNumber,
		Confidence:      obs.Confidence,
		Timestamp:       captureTime,
		DurationMinutes: &duration,
	})
	return nil
}

// DurationMinutes = floor((exit - entry) / 1 phút), không bao giờ âm.
func DurationMinutes(entry, exit time.Time) int64 {
	if exit.Before(entry) {
		return 0
	}
	return int64(exit.Sub(entry) / time.Minute)
}

// unixFloatToTime đổi unix seconds (float, theo schema của detector) sang time.Time UTC.
func unixFloatToTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, int64(ts*float64(time.Second))).UTC()
}
