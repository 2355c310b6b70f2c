package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"parking_dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capacityEvent(ts float64, totalSlots, occupied int, rate float64, slots ...domain.SlotObservation) []byte {
	event := domain.CapacityUpdateEvent{
		GenericDetectorEvent: domain.GenericDetectorEvent{
			Type:      domain.MessageTypeCapacityUpdate,
			Timestamp: ts,
		},
		TotalSlots:    totalSlots,
		Occupied:      occupied,
		Empty:         totalSlots - occupied,
		OccupancyRate: rate,
		Slots:         slots,
	}
	payload, _ := json.Marshal(event)
	return payload
}

func newLotMonitorFixture(contractors ...domain.Contractor) (*LotMonitorService, *fakeCapacityLogRepo, *fakeSlotRepo, *fakeViolationRepo, *fakeAlertRepo, *fakeBroadcaster) {
	capacityRepo := &fakeCapacityLogRepo{}
	slotRepo := newFakeSlotRepo()
	violationRepo := newFakeViolationRepo()
	alertRepo := newFakeAlertRepo()
	broadcaster := &fakeBroadcaster{}
	svc := NewLotMonitorService(1, 0.9, capacityRepo, slotRepo, newFakeParkingLotRepo(),
		newFakeContractorRepo(contractors...), violationRepo, alertRepo, broadcaster)
	return svc, capacityRepo, slotRepo, violationRepo, alertRepo, broadcaster
}

func TestLotMonitorBreachCreatesThenExtendsViolation(t *testing.T) {
	contractor := domain.Contractor{ID: 7, LotID: 1, Name: "ACME", AllocatedCapacity: 10, ViolationPenalty: 500}
	svc, _, _, violationRepo, alertRepo, broadcaster := newLotMonitorFixture(contractor)

	base := float64(1700000000)
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(base, 20, 12, 0.6)))

	v, err := violationRepo.FindPendingByContractorAndLot(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, v.ActualOccupancy)
	assert.Equal(t, 2, v.ExcessVehicles)
	assert.Equal(t, 10, v.AllocatedCapacity)
	assert.Equal(t, 500.0, v.Penalty)
	assert.Equal(t, 0, v.DurationMinutes)
	firstID := v.ID

	// Breach tiếp tục với occupancy cao hơn: cùng bản ghi, không tạo mới.
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(base+300, 20, 14, 0.7)))

	v, err = violationRepo.FindPendingByContractorAndLot(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, firstID, v.ID, "breach lặp lại phải kéo dài violation hiện có")
	assert.Equal(t, 14, v.ActualOccupancy)
	assert.Equal(t, 4, v.ExcessVehicles)
	assert.Equal(t, 5, v.DurationMinutes)

	pending := func() int {
		status := string(domain.ViolationPending)
		out, _ := violationRepo.Find(context.Background(), domain.ViolationFilterDTO{Status: &status})
		return len(out)
	}
	assert.Equal(t, 1, pending(), "tối đa một violation pending cho mỗi (contractor, lot)")

	// Alert violation_detected chỉ raise một lần cho cả incident.
	alerts, _ := alertRepo.Find(context.Background(), domain.AlertFilterDTO{})
	count := 0
	for _, a := range alerts {
		if a.Type == domain.AlertViolationDetected {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Fan-out: một lần khi tạo, một lần khi mức vi phạm thay đổi.
	assert.Len(t, broadcaster.violations, 2)

	// Frame thứ ba không đổi mức vi phạm: extend nhưng không fan-out thêm.
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(base+600, 20, 14, 0.7)))
	assert.Len(t, broadcaster.violations, 2)
}

func TestLotMonitorNoAutoResolve(t *testing.T) {
	contractor := domain.Contractor{ID: 7, LotID: 1, Name: "ACME", AllocatedCapacity: 10}
	svc, _, _, violationRepo, _, _ := newLotMonitorFixture(contractor)

	base := float64(1700000000)
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(base, 20, 12, 0.6)))

	// Occupancy tụt xuống dưới hạn mức: violation vẫn pending.
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(base+60, 20, 8, 0.4)))

	v, err := violationRepo.FindPendingByContractorAndLot(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ViolationPending, v.Status)
}

func TestLotMonitorWarningThresholdStrict(t *testing.T) {
	svc, _, _, _, alertRepo, _ := newLotMonitorFixture()

	warningCount := func() int {
		alerts, _ := alertRepo.Find(context.Background(), domain.AlertFilterDTO{})
		count := 0
		for _, a := range alerts {
			if a.Type == domain.AlertCapacityWarning {
				count++
			}
		}
		return count
	}

	// Đúng 90% chưa cảnh báo (so sánh strict).
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(1700000000, 20, 18, 0.9)))
	assert.Equal(t, 0, warningCount())

	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(1700000010, 20, 19, 0.95)))
	assert.Equal(t, 1, warningCount())

	// Điều kiện còn tiếp diễn khi alert đang active: không tạo bản thứ hai.
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(1700000020, 20, 19, 0.96)))
	assert.Equal(t, 1, warningCount())
}

func TestLotMonitorSlotUpsert(t *testing.T) {
	svc, _, slotRepo, _, _, broadcaster := newLotMonitorFixture()

	slots := []domain.SlotObservation{
		{SlotID: 1, Status: domain.SlotOccupied, Confidence: 0.9},
		{SlotID: 2, Status: domain.SlotEmpty, Confidence: 0.8},
	}
	require.NoError(t, svc.HandleDetectorMessage(context.Background(),
		capacityEvent(1700000000, 2, 1, 0.5, slots...)))

	stored, err := slotRepo.FindByLotID(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Frame kế tiếp chỉ báo slot 1: slot 2 giữ nguyên, không bị xóa.
	require.NoError(t, svc.HandleDetectorMessage(context.Background(),
		capacityEvent(1700000030, 2, 0, 0.0, domain.SlotObservation{SlotID: 1, Status: domain.SlotEmpty, Confidence: 0.95})))

	stored, err = slotRepo.FindByLotID(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	for _, s := range stored {
		if s.SlotID == 1 {
			assert.Equal(t, domain.SlotEmpty, s.Status)
			assert.Equal(t, 0.95, s.Confidence)
		}
	}

	// Capacity update fan-out vô điều kiện, mỗi frame một lần.
	assert.Len(t, broadcaster.capacityUpdates, 2)
}

func TestLotMonitorAppendsCapacityLog(t *testing.T) {
	svc, capacityRepo, _, _, _, _ := newLotMonitorFixture()

	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(1700000000, 20, 5, 0.25)))
	require.NoError(t, svc.HandleDetectorMessage(context.Background(), capacityEvent(1700000001, 20, 6, 0.3)))

	require.Len(t, capacityRepo.entries, 2)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), capacityRepo.entries[0].EventTimestamp)
	assert.Equal(t, 5, capacityRepo.entries[0].Occupied)
	assert.Equal(t, 6, capacityRepo.entries[1].Occupied)
}
