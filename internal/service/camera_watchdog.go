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

// CameraWatchdog đánh dấu camera offline khi last_seen quá cũ và raise
// alert camera_offline. Dedupe qua cùng cơ chế active-alert singleton
// như các loại alert khác.
type CameraWatchdog struct {
	lotRepo      repository.ParkingLotRepository
	alertRepo    repository.AlertRepository
	broadcaster  Broadcaster
	offlineAfter time.Duration
	interval     time.Duration
}

func NewCameraWatchdog(
	lotRepo repository.ParkingLotRepository,
	alertRepo repository.AlertRepository,
	broadcaster Broadcaster,
	offlineAfter time.Duration,
	interval time.Duration,
) *CameraWatchdog {
	return &CameraWatchdog{
		lotRepo:      lotRepo,
		alertRepo:    alertRepo,
		broadcaster:  broadcaster,
		offlineAfter: offlineAfter,
		interval:     interval,
	}
}

// Run chạy tới khi ctx bị huỷ. Gọi trong một goroutine riêng từ main.
func (w *CameraWatchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("CameraWatchdog: context cancelled, dừng.")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CameraWatchdog) sweep(ctx context.Context) {
	staleBefore := time.Now().UTC().Add(-w.offlineAfter)
	for _, role := range []domain.CameraRole{domain.CameraRoleGate, domain.CameraRoleLot} {
		lots, err := w.lotRepo.MarkCameraOffline(ctx, role, staleBefore)
		if err != nil {
			log.Printf("CameraWatchdog: lỗi quét camera %s: %v", role, err)
			continue
		}
		for _, lot := range lots {
			w.raiseOfflineAlert(ctx, lot, role)
		}
	}
}

func (w *CameraWatchdog) raiseOfflineAlert(ctx context.Context, lot domain.ParkingLot, role domain.CameraRole) {
	var lastSeen *time.Time
	if role == domain.CameraRoleGate {
		lastSeen = lot.GateCamera.LastSeen
	} else {
		lastSeen = lot.LotCamera.LastSeen
	}

	alertData, _ := json.Marshal(map[string]interface{}{
		"camera_role": role,
		"last_seen":   lastSeen,
	})
	alert := &domain.Alert{
		Type:     domain.AlertCameraOffline,
		Severity: domain.SeverityHigh,
		LotID:    lot.ID,
		Message:  fmt.Sprintf("Camera %s của bãi '%s' mất tín hiệu", role, lot.Name),
		Data:     alertData,
	}
	created, err := w.alertRepo.CreateActive(ctx, alert)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			log.Printf("CameraWatchdog: lỗi tạo alert camera_offline cho bãi %d: %v", lot.ID, err)
		}
		return
	}

	log.Printf("CameraWatchdog: camera %s của bãi %d offline (last_seen: %v)", role, lot.ID, lastSeen)
	w.broadcaster.BroadcastAlert(*created)
}
