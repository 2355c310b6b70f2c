package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gopkg.in/guregu/null.v4"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

// LotMonitorService - Capacity & Violation Engine. Consume capacity_update
// events từ stream "lot-monitor" của một bãi: ghi CapacityLog bất biến,
// cập nhật trạng thái từng slot, đánh giá breach hạn mức contractor và
// cảnh báo gần đầy, rồi fan-out kết quả.
type LotMonitorService struct {
	lotID          int
	warnThreshold  float64 // occupancy rate phải LỚN HƠN ngưỡng này mới cảnh báo (so sánh strict)
	capacityRepo   repository.CapacityLogRepository
	slotRepo       repository.SlotRepository
	lotRepo        repository.ParkingLotRepository
	contractorRepo repository.ContractorRepository
	violationRepo  repository.ViolationRepository
	alertRepo      repository.AlertRepository
	broadcaster    Broadcaster
}

func NewLotMonitorService(
	lotID int,
	warnThreshold float64,
	capacityRepo repository.CapacityLogRepository,
	slotRepo repository.SlotRepository,
	lotRepo repository.ParkingLotRepository,
	contractorRepo repository.ContractorRepository,
	violationRepo repository.ViolationRepository,
	alertRepo repository.AlertRepository,
	broadcaster Broadcaster,
) *LotMonitorService {
	return &LotMonitorService{
		lotID:          lotID,
		warnThreshold:  warnThreshold,
		capacityRepo:   capacityRepo,
		slotRepo:       slotRepo,
		lotRepo:        lotRepo,
		contractorRepo: contractorRepo,
		violationRepo:  violationRepo,
		alertRepo:      alertRepo,
		broadcaster:    broadcaster,
	}
}

// HandleDetectorMessage implement detector.MessageHandler.
func (s *LotMonitorService) HandleDetectorMessage(ctx context.Context, payload []byte) error {
	receivedAt := time.Now()

	var generic domain.GenericDetectorEvent
	if err := json.Unmarshal(payload, &generic); err != nil {
		return fmt.Errorf("lỗi unmarshal generic detector event: %w", err)
	}

	switch generic.Type {
	case domain.MessageTypeCapacityUpdate:
		var event domain.CapacityUpdateEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("lỗi unmarshal capacity_update event: %w", err)
		}
		event.RawPayload = payload
		return s.ProcessCapacityUpdate(ctx, event, receivedAt)
	default:
		log.Printf("LotMonitor (lot %d): loại message không được xử lý: '%s'", s.lotID, generic.Type)
		return nil
	}
}

// ProcessCapacityUpdate chạy đủ các bước cho một frame, trong đó mọi lỗi
// persistence chỉ được log: frame kế tiếp có cơ hội khác, connection sống.
// Event capacity_update luôn được fan-out bất kể có violation/warning hay không.
func (s *LotMonitorService) ProcessCapacityUpdate(ctx context.Context, event domain.CapacityUpdateEvent, receivedAt time.Time) error {
	eventTime := unixFloatToTime(event.Timestamp)

	// 1. Snapshot bất biến cho audit trail.
	s.appendCapacityLog(ctx, event, eventTime, receivedAt)

	// 2. Khởi tạo lazy / cập nhật slot. Slot vắng mặt trong frame không bị đụng tới.
	for _, obs := range event.Slots {
		if err := s.slotRepo.Upsert(ctx, s.lotID, obs, eventTime); err != nil {
			log.Printf("LotMonitor (lot %d): lỗi upsert slot %d: %v", s.lotID, obs.SlotID, err)
		}
	}

	// 3. Kiểm tra breach hạn mức cho từng contractor của bãi.
	contractors, err := s.contractorRepo.FindByLotID(ctx, s.lotID)
	if err != nil {
		log.Printf("LotMonitor (lot %d): lỗi lấy danh sách contractor: %v", s.lotID, err)
	} else {
		for _, c := range contractors {
			if event.Occupied > c.AllocatedCapacity {
				s.handleCapacityBreach(ctx, c, event.Occupied, eventTime)
			}
			// Occupancy tụt xuống dưới hạn mức KHÔNG auto-resolve violation
			// đang pending — chờ acknowledge thủ công.
		}
	}

	// 4. Cảnh báo gần đầy: so sánh strict, đúng 90% thì chưa cảnh báo.
	if event.OccupancyRate > s.warnThreshold {
		s.raiseCapacityWarning(ctx, event)
	}

	// 5. Lot camera đang sống.
	if err := s.lotRepo.UpdateCameraSeen(ctx, s.lotID, domain.CameraRoleLot, eventTime); err != nil {
		log.Printf("LotMonitor (lot %d): lỗi cập nhật lot camera last_seen: %v", s.lotID, err)
	}

	// 6. Fan-out capacity update, vô điều kiện.
	s.broadcaster.BroadcastCapacityUpdate(domain.CapacityUpdateNotification{
		LotID:         s.lotID,
		TotalSlots:    event.TotalSlots,
		Occupied:      event.Occupied,
		Empty:         event.Empty,
		OccupancyRate: event.OccupancyRate,
		Timestamp:     eventTime,
	})
	return nil
}

func (s *LotMonitorService) appendCapacityLog(ctx context.Context, event domain.CapacityUpdateEvent, eventTime time.Time, receivedAt time.Time) {
	slotStatuses, _ := json.Marshal(event.Slots)
	entry := &domain.CapacityLog{
		LotID:            s.lotID,
		EventTimestamp:   eventTime,
		FrameNumber:      event.FrameNumber,
		TotalSlots:       event.TotalSlots,
		Occupied:         event.Occupied,
		Empty:            event.Empty,
		OccupancyRate:    event.OccupancyRate,
		ProcessingTimeMs: event.ProcessingTimeMs,
		SlotStatuses:     slotStatuses,
		IngestLatencyMs:  float64(time.Since(receivedAt).Microseconds()) / 1000.0,
	}
	if err := s.capacityRepo.Create(ctx, entry); err != nil {
		log.Printf("LotMonitor (lot %d): lỗi ghi capacity log: %v", s.lotID, err)
	}
}

// handleCapacityBreach giữ invariant "tối đa một violation pending cho
// (contractor, lot)": breach mới kéo dài violation hiện có thay vì tạo
// bản ghi trùng. Alert violation_detected chỉ raise một lần cho mỗi incident.
func (s *LotMonitorService) handleCapacityBreach(ctx context.Context, c domain.Contractor, occupied int, observedAt time.Time) {
	excess := occupied - c.AllocatedCapacity

	existing, err := s.violationRepo.FindPendingByContractorAndLot(ctx, c.ID, s.lotID)
	if err == nil {
		// Monotonic extension, không phải bản ghi mới.
		duration := int(observedAt.Sub(existing.FirstDetectedAt).Minutes())
		if duration < existing.DurationMinutes {
			duration = existing.DurationMinutes
		}
		if err := s.violationRepo.ExtendPending(ctx, existing.ID, occupied, excess, duration, observedAt); err != nil {
			log.Printf("LotMonitor (lot %d): lỗi extend violation %d: %v", s.lotID, existing.ID, err)
			return
		}
		// Chỉ fan-out khi mức vi phạm thực sự thay đổi, tránh spam mỗi frame.
		if existing.ActualOccupancy != occupied || existing.ExcessVehicles != excess {
			existing.ActualOccupancy = occupied
			existing.ExcessVehicles = excess
			existing.DurationMinutes = duration
			existing.LastObservedAt = observedAt
			s.broadcaster.BroadcastViolation(*existing)
		}
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Printf("LotMonitor (lot %d): lỗi tìm violation pending: %v", s.lotID, err)
		return
	}

	v := &domain.Violation{
		ContractorID:      c.ID,
		LotID:             s.lotID,
		ViolationType:     domain.ViolationCapacityBreach,
		AllocatedCapacity: c.AllocatedCapacity,
		ActualOccupancy:   occupied,
		ExcessVehicles:    excess,
		DurationMinutes:   0,
		Penalty:           c.ViolationPenalty, // phí phạt cấu hình sẵn của contractor
		FirstDetectedAt:   observedAt,
		LastObservedAt:    observedAt,
	}
	created, err := s.violationRepo.CreatePending(ctx, v)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// Instance khác vừa tạo xong — conditional insert đã giữ invariant.
			return
		}
		log.Printf("LotMonitor (lot %d): lỗi tạo violation: %v", s.lotID, err)
		return
	}

	log.Printf("LotMonitor (lot %d): contractor %d vượt hạn mức: %d/%d (thừa %d xe)",
		s.lotID, c.ID, occupied, c.AllocatedCapacity, excess)
	s.broadcaster.BroadcastViolation(*created)

	alertData, _ := json.Marshal(map[string]interface{}{
		"violation_id":       created.ID,
		"contractor_name":    c.Name,
		"allocated_capacity": c.AllocatedCapacity,
		"actual_occupancy":   occupied,
		"excess_vehicles":    excess,
	})
	alert := &domain.Alert{
		Type:         domain.AlertViolationDetected,
		Severity:     domain.SeverityHigh,
		LotID:        s.lotID,
		ContractorID: null.IntFrom(int64(c.ID)),
		Message:      fmt.Sprintf("Contractor '%s' vượt hạn mức chỗ đỗ: %d/%d", c.Name, occupied, c.AllocatedCapacity),
		Data:         alertData,
	}
	createdAlert, err := s.alertRepo.CreateActive(ctx, alert)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			log.Printf("LotMonitor (lot %d): lỗi tạo alert violation_detected: %v", s.lotID, err)
		}
		return
	}
	s.broadcaster.BroadcastAlert(*createdAlert)
}

// raiseCapacityWarning raise tối đa một alert capacity_warning active cho
// bãi; điều kiện lặp lại trong khi alert còn active bị bỏ qua.
func (s *LotMonitorService) raiseCapacityWarning(ctx context.Context, event domain.CapacityUpdateEvent) {
	alertData, _ := json.Marshal(map[string]interface{}{
		"occupancy_rate": event.OccupancyRate,
		"occupied":       event.Occupied,
		"total_slots":    event.TotalSlots,
	})
	alert := &domain.Alert{
		Type:     domain.AlertCapacityWarning,
		Severity: domain.SeverityMedium,
		LotID:    s.lotID,
		Message:  fmt.Sprintf("Bãi %d sắp đầy: %.0f%% chỗ đã có xe", s.lotID, event.OccupancyRate*100),
		Data:     alertData,
	}
	created, err := s.alertRepo.CreateActive(ctx, alert)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			log.Printf("LotMonitor (lot %d): lỗi tạo alert capacity_warning: %v", s.lotID, err)
		}
		return
	}
	log.Printf("LotMonitor (lot %d): cảnh báo gần đầy (%.2f)", s.lotID, event.OccupancyRate)
	s.broadcaster.BroadcastAlert(*created)
}
