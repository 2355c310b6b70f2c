package service

import (
	"context"
	"testing"
	"time"

	"parking_dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchdogMarksStaleCameraAndRaisesAlert(t *testing.T) {
	lotRepo := newFakeParkingLotRepo()
	alertRepo := newFakeAlertRepo()
	broadcaster := &fakeBroadcaster{}

	lot, err := lotRepo.Create(context.Background(), &domain.ParkingLot{Name: "Bãi A"})
	require.NoError(t, err)
	stale := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, lotRepo.UpdateCameraSeen(context.Background(), lot.ID, domain.CameraRoleGate, stale))

	w := NewCameraWatchdog(lotRepo, alertRepo, broadcaster, 2*time.Minute, time.Second)
	w.sweep(context.Background())

	updated, err := lotRepo.FindByID(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CameraOffline, updated.GateCamera.Status)

	offlineType := string(domain.AlertCameraOffline)
	alerts, err := alertRepo.Find(context.Background(), domain.AlertFilterDTO{Type: &offlineType})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)
	assert.Len(t, broadcaster.alerts, 1)

	// Sweep lặp lại: camera đã offline, không tạo alert trùng.
	w.sweep(context.Background())
	alerts, err = alertRepo.Find(context.Background(), domain.AlertFilterDTO{Type: &offlineType})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestWatchdogIgnoresFreshCamera(t *testing.T) {
	lotRepo := newFakeParkingLotRepo()
	alertRepo := newFakeAlertRepo()
	broadcaster := &fakeBroadcaster{}

	lot, err := lotRepo.Create(context.Background(), &domain.ParkingLot{Name: "Bãi B"})
	require.NoError(t, err)
	require.NoError(t, lotRepo.UpdateCameraSeen(context.Background(), lot.ID, domain.CameraRoleLot, time.Now().UTC()))

	w := NewCameraWatchdog(lotRepo, alertRepo, broadcaster, 2*time.Minute, time.Second)
	w.sweep(context.Background())

	updated, err := lotRepo.FindByID(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CameraOnline, updated.LotCamera.Status)
	assert.Empty(t, broadcaster.alerts)
}
