package service

import (
	"context"
	"testing"
	"time"

	"parking_dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFacilityFixture(t *testing.T) (*FacilityService, *fakeViolationRepo, *fakeAlertRepo, *fakeBroadcaster) {
	t.Helper()
	violationRepo := newFakeViolationRepo()
	alertRepo := newFakeAlertRepo()
	broadcaster := &fakeBroadcaster{}
	svc := NewFacilityService(newFakeParkingLotRepo(), newFakeSlotRepo(), newFakeContractorRepo(),
		newFakeVehicleRecordRepo(), &fakeCapacityLogRepo{}, violationRepo, alertRepo, broadcaster)
	return svc, violationRepo, alertRepo, broadcaster
}

func seedPendingViolation(t *testing.T, repo *fakeViolationRepo) *domain.Violation {
	t.Helper()
	now := time.Now().UTC()
	v, err := repo.CreatePending(context.Background(), &domain.Violation{
		ContractorID:      7,
		LotID:             1,
		ViolationType:     domain.ViolationCapacityBreach,
		AllocatedCapacity: 10,
		ActualOccupancy:   12,
		ExcessVehicles:    2,
		FirstDetectedAt:   now,
		LastObservedAt:    now,
	})
	require.NoError(t, err)
	return v
}

func TestViolationLifecycle(t *testing.T) {
	svc, violationRepo, _, broadcaster := newFacilityFixture(t)
	v := seedPendingViolation(t, violationRepo)

	acked, err := svc.AcknowledgeViolation(context.Background(), v.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ViolationAcknowledged, acked.Status)
	assert.Equal(t, "operator-1", acked.AcknowledgedBy.String)

	// Acknowledge lần hai không hợp lệ.
	_, err = svc.AcknowledgeViolation(context.Background(), v.ID, "operator-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	resolved, err := svc.ResolveViolation(context.Background(), v.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ViolationResolved, resolved.Status)
	assert.True(t, resolved.ResolvedAt.Valid)

	_, err = svc.ResolveViolation(context.Background(), v.ID, "operator-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Mỗi lần chuyển trạng thái thành công được fan-out.
	assert.Len(t, broadcaster.violations, 2)
}

func TestViolationResolveDirectlyFromPending(t *testing.T) {
	svc, violationRepo, _, _ := newFacilityFixture(t)
	v := seedPendingViolation(t, violationRepo)

	resolved, err := svc.ResolveViolation(context.Background(), v.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ViolationResolved, resolved.Status)
}

func TestAlertLifecycleReleasesSingleton(t *testing.T) {
	svc, _, alertRepo, broadcaster := newFacilityFixture(t)

	created, err := alertRepo.CreateActive(context.Background(), &domain.Alert{
		Type: domain.AlertCapacityWarning, Severity: domain.SeverityMedium, LotID: 1,
	})
	require.NoError(t, err)

	// Khi alert còn active, điều kiện lặp lại bị nuốt.
	_, err = alertRepo.CreateActive(context.Background(), &domain.Alert{
		Type: domain.AlertCapacityWarning, Severity: domain.SeverityMedium, LotID: 1,
	})
	assert.Error(t, err)

	acked, err := svc.AcknowledgeAlert(context.Background(), created.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertAcknowledged, acked.Status)

	// Rời active: alert cùng loại có thể được raise lại.
	_, err = alertRepo.CreateActive(context.Background(), &domain.Alert{
		Type: domain.AlertCapacityWarning, Severity: domain.SeverityMedium, LotID: 1,
	})
	assert.NoError(t, err)

	assert.Len(t, broadcaster.alerts, 1)
}

func TestDeleteParkingLotBlockedByContractors(t *testing.T) {
	lotRepo := newFakeParkingLotRepo()
	contractorRepo := newFakeContractorRepo()
	svc := NewFacilityService(lotRepo, newFakeSlotRepo(), contractorRepo,
		newFakeVehicleRecordRepo(), &fakeCapacityLogRepo{}, newFakeViolationRepo(), newFakeAlertRepo(), &fakeBroadcaster{})

	lot, err := svc.CreateParkingLot(context.Background(), domain.ParkingLotDTO{Name: "Bãi A", TotalSlots: 20})
	require.NoError(t, err)

	_, err = svc.CreateContractor(context.Background(), domain.ContractorDTO{
		Name: "ACME", LotID: lot.ID, AllocatedCapacity: 10,
	})
	require.NoError(t, err)

	err = svc.DeleteParkingLot(context.Background(), lot.ID)
	assert.Error(t, err, "không xóa bãi khi còn contractor liên kết")
}

func TestCreateContractorValidation(t *testing.T) {
	svc, _, _, _ := newFacilityFixture(t)

	_, err := svc.CreateContractor(context.Background(), domain.ContractorDTO{
		Name: "ACME", LotID: 99, AllocatedCapacity: 10,
	})
	assert.Error(t, err, "lot không tồn tại")
}
