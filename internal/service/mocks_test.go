package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

// Fake in-memory repositories cho unit test của các monitor service.
// Giữ đúng semantics của tầng store: partial unique trên bản ghi inside,
// violation pending singleton, alert active singleton.

type recordedVehicleEvent struct {
	Type domain.DashboardEventType
	N    domain.VehicleEventNotification
}

type fakeBroadcaster struct {
	mu              sync.Mutex
	capacityUpdates []domain.CapacityUpdateNotification
	vehicleEvents   []recordedVehicleEvent
	violations      []domain.Violation
	alerts          []domain.Alert
	statuses        []domain.ConnectionStatusNotification
}

func (b *fakeBroadcaster) BroadcastCapacityUpdate(n domain.CapacityUpdateNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capacityUpdates = append(b.capacityUpdates, n)
}

func (b *fakeBroadcaster) BroadcastVehicleEvent(eventType domain.DashboardEventType, n domain.VehicleEventNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vehicleEvents = append(b.vehicleEvents, recordedVehicleEvent{Type: eventType, N: n})
}

func (b *fakeBroadcaster) BroadcastViolation(v domain.Violation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.violations = append(b.violations, v)
}

func (b *fakeBroadcaster) BroadcastAlert(a domain.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = append(b.alerts, a)
}

func (b *fakeBroadcaster) BroadcastConnectionStatus(n domain.ConnectionStatusNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, n)
}

// --- VehicleRecordRepository ---

type fakeVehicleRecordRepo struct {
	nextID  int
	records map[int]*domain.VehicleRecord
}

func newFakeVehicleRecordRepo() *fakeVehicleRecordRepo {
	return &fakeVehicleRecordRepo{nextID: 1, records: make(map[int]*domain.VehicleRecord)}
}

func (r *fakeVehicleRecordRepo) Create(_ context.Context, rec *domain.VehicleRecord) (*domain.VehicleRecord, error) {
	for _, existing := range r.records {
		if existing.Status == domain.VehicleInside &&
			existing.PlateNumber == rec.PlateNumber && existing.LotID == rec.LotID {
			return nil, fmt.Errorf("%w: xe '%s' đã có bản ghi inside", repository.ErrDuplicateEntry, rec.PlateNumber)
		}
	}
	clone := *rec
	clone.ID = r.nextID
	r.nextID++
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	r.records[clone.ID] = &clone
	return &clone, nil
}

func (r *fakeVehicleRecordRepo) FindByID(_ context.Context, id int) (*domain.VehicleRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *fakeVehicleRecordRepo) FindInsideByPlateAndLot(_ context.Context, lotID int, plate string) (*domain.VehicleRecord, error) {
	for _, rec := range r.records {
		if rec.Status == domain.VehicleInside && rec.LotID == lotID && rec.PlateNumber == plate {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, repository.ErrNoOpenRecord
}

func (r *fakeVehicleRecordRepo) CompleteExit(_ context.Context, rec *domain.VehicleRecord) (*domain.VehicleRecord, error) {
	existing, ok := r.records[rec.ID]
	if !ok || existing.Status != domain.VehicleInside {
		return nil, repository.ErrNoOpenRecord
	}
	existing.Status = domain.VehicleExited
	existing.ExitTime = rec.ExitTime
	existing.ExitGateID = rec.ExitGateID
	existing.ExitConfidence = rec.ExitConfidence
	existing.ExitPayload = rec.ExitPayload
	existing.DurationMinutes = rec.DurationMinutes
	existing.UpdatedAt = time.Now().UTC()
	clone := *existing
	return &clone, nil
}

func (r *fakeVehicleRecordRepo) Find(_ context.Context, filter domain.VehicleRecordFilterDTO) ([]domain.VehicleRecord, error) {
	var out []domain.VehicleRecord
	for _, rec := range r.records {
		if filter.LotID != nil && rec.LotID != *filter.LotID {
			continue
		}
		if filter.Status != nil && string(rec.Status) != *filter.Status {
			continue
		}
		if filter.Plate != nil && rec.PlateNumber != *filter.Plate {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// --- ParkingLotRepository ---

type cameraSeenCall struct {
	Role   domain.CameraRole
	SeenAt time.Time
}

type fakeParkingLotRepo struct {
	lots        map[int]*domain.ParkingLot
	cameraSeen  []cameraSeenCall
	markedRoles []domain.CameraRole
}

func newFakeParkingLotRepo() *fakeParkingLotRepo {
	return &fakeParkingLotRepo{lots: make(map[int]*domain.ParkingLot)}
}

func (r *fakeParkingLotRepo) Create(_ context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	clone := *lot
	clone.ID = len(r.lots) + 1
	r.lots[clone.ID] = &clone
	return &clone, nil
}

func (r *fakeParkingLotRepo) FindByID(_ context.Context, id int) (*domain.ParkingLot, error) {
	lot, ok := r.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *lot
	return &clone, nil
}

func (r *fakeParkingLotRepo) FindAll(_ context.Context) ([]domain.ParkingLot, error) {
	var out []domain.ParkingLot
	for _, lot := range r.lots {
		out = append(out, *lot)
	}
	return out, nil
}

func (r *fakeParkingLotRepo) Update(_ context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	if _, ok := r.lots[lot.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	clone := *lot
	r.lots[lot.ID] = &clone
	return lot, nil
}

func (r *fakeParkingLotRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.lots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.lots, id)
	return nil
}

func (r *fakeParkingLotRepo) UpdateCameraSeen(_ context.Context, lotID int, role domain.CameraRole, seenAt time.Time) error {
	r.cameraSeen = append(r.cameraSeen, cameraSeenCall{Role: role, SeenAt: seenAt})
	if lot, ok := r.lots[lotID]; ok {
		if role == domain.CameraRoleGate {
			lot.GateCamera.Status = domain.CameraOnline
			lot.GateCamera.LastSeen = &seenAt
		} else {
			lot.LotCamera.Status = domain.CameraOnline
			lot.LotCamera.LastSeen = &seenAt
		}
	}
	return nil
}

func (r *fakeParkingLotRepo) MarkCameraOffline(_ context.Context, role domain.CameraRole, staleBefore time.Time) ([]domain.ParkingLot, error) {
	r.markedRoles = append(r.markedRoles, role)
	var affected []domain.ParkingLot
	for _, lot := range r.lots {
		cam := &lot.GateCamera
		if role == domain.CameraRoleLot {
			cam = &lot.LotCamera
		}
		if cam.Status == domain.CameraOnline && cam.LastSeen != nil && cam.LastSeen.Before(staleBefore) {
			cam.Status = domain.CameraOffline
			affected = append(affected, *lot)
		}
	}
	return affected, nil
}

// --- SlotRepository ---

type fakeSlotRepo struct {
	slots map[string]*domain.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[string]*domain.Slot)}
}

func slotKey(lotID, slotID int) string { return fmt.Sprintf("%d/%d", lotID, slotID) }

func (r *fakeSlotRepo) FindByLotID(_ context.Context, lotID int) ([]domain.Slot, error) {
	var out []domain.Slot
	for _, s := range r.slots {
		if s.LotID == lotID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) Upsert(_ context.Context, lotID int, obs domain.SlotObservation, seenAt time.Time) error {
	key := slotKey(lotID, obs.SlotID)
	if existing, ok := r.slots[key]; ok {
		existing.Status = obs.Status
		existing.Confidence = obs.Confidence
		existing.BBox = obs.BBox
		existing.LastUpdated = seenAt
		return nil
	}
	r.slots[key] = &domain.Slot{
		ID:          len(r.slots) + 1,
		LotID:       lotID,
		SlotID:      obs.SlotID,
		BBox:        obs.BBox,
		Status:      obs.Status,
		Confidence:  obs.Confidence,
		LastUpdated: seenAt,
		CreatedAt:   seenAt,
	}
	return nil
}

// --- ContractorRepository ---

type fakeContractorRepo struct {
	contractors map[int]*domain.Contractor
}

func newFakeContractorRepo(contractors ...domain.Contractor) *fakeContractorRepo {
	r := &fakeContractorRepo{contractors: make(map[int]*domain.Contractor)}
	for i := range contractors {
		c := contractors[i]
		r.contractors[c.ID] = &c
	}
	return r
}

func (r *fakeContractorRepo) Create(_ context.Context, c *domain.Contractor) (*domain.Contractor, error) {
	clone := *c
	clone.ID = len(r.contractors) + 1
	r.contractors[clone.ID] = &clone
	return &clone, nil
}

func (r *fakeContractorRepo) FindByID(_ context.Context, id int) (*domain.Contractor, error) {
	c, ok := r.contractors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *fakeContractorRepo) FindAll(_ context.Context) ([]domain.Contractor, error) {
	var out []domain.Contractor
	for _, c := range r.contractors {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeContractorRepo) FindByLotID(_ context.Context, lotID int) ([]domain.Contractor, error) {
	var out []domain.Contractor
	for _, c := range r.contractors {
		if c.LotID == lotID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeContractorRepo) Update(_ context.Context, c *domain.Contractor) (*domain.Contractor, error) {
	if _, ok := r.contractors[c.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	clone := *c
	r.contractors[c.ID] = &clone
	return c, nil
}

func (r *fakeContractorRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.contractors[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.contractors, id)
	return nil
}

// --- CapacityLogRepository ---

type fakeCapacityLogRepo struct {
	entries []domain.CapacityLog
}

func (r *fakeCapacityLogRepo) Create(_ context.Context, entry *domain.CapacityLog) error {
	entry.ID = len(r.entries) + 1
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeCapacityLogRepo) Find(_ context.Context, filter domain.CapacityLogFilterDTO) ([]domain.CapacityLog, error) {
	var out []domain.CapacityLog
	for _, e := range r.entries {
		if filter.LotID != nil && e.LotID != *filter.LotID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// --- ViolationRepository ---

type fakeViolationRepo struct {
	nextID     int
	violations map[int]*domain.Violation
}

func newFakeViolationRepo() *fakeViolationRepo {
	return &fakeViolationRepo{nextID: 1, violations: make(map[int]*domain.Violation)}
}

func (r *fakeViolationRepo) CreatePending(_ context.Context, v *domain.Violation) (*domain.Violation, error) {
	for _, existing := range r.violations {
		if existing.Status == domain.ViolationPending &&
			existing.ContractorID == v.ContractorID && existing.LotID == v.LotID {
			return nil, repository.ErrDuplicateEntry
		}
	}
	clone := *v
	clone.ID = r.nextID
	r.nextID++
	clone.Status = domain.ViolationPending
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	r.violations[clone.ID] = &clone
	copied := clone
	return &copied, nil
}

func (r *fakeViolationRepo) FindByID(_ context.Context, id int) (*domain.Violation, error) {
	v, ok := r.violations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (r *fakeViolationRepo) FindPendingByContractorAndLot(_ context.Context, contractorID int, lotID int) (*domain.Violation, error) {
	for _, v := range r.violations {
		if v.Status == domain.ViolationPending && v.ContractorID == contractorID && v.LotID == lotID {
			clone := *v
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeViolationRepo) ExtendPending(_ context.Context, id int, actualOccupancy int, excessVehicles int, durationMinutes int, observedAt time.Time) error {
	v, ok := r.violations[id]
	if !ok || v.Status != domain.ViolationPending {
		return repository.ErrNotFound
	}
	v.ActualOccupancy = actualOccupancy
	v.ExcessVehicles = excessVehicles
	if durationMinutes > v.DurationMinutes {
		v.DurationMinutes = durationMinutes
	}
	if observedAt.After(v.LastObservedAt) {
		v.LastObservedAt = observedAt
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeViolationRepo) UpdateStatus(_ context.Context, id int, status domain.ViolationStatus, operator string) error {
	v, ok := r.violations[id]
	if !ok {
		return repository.ErrNotFound
	}
	v.Status = status
	if operator != "" {
		v.AcknowledgedBy.SetValid(operator)
	}
	if status == domain.ViolationResolved {
		v.ResolvedAt.SetValid(time.Now().UTC())
	}
	return nil
}

func (r *fakeViolationRepo) Find(_ context.Context, filter domain.ViolationFilterDTO) ([]domain.Violation, error) {
	var out []domain.Violation
	for _, v := range r.violations {
		if filter.LotID != nil && v.LotID != *filter.LotID {
			continue
		}
		if filter.ContractorID != nil && v.ContractorID != *filter.ContractorID {
			continue
		}
		if filter.Status != nil && string(v.Status) != *filter.Status {
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

// --- AlertRepository ---

type fakeAlertRepo struct {
	nextID int
	alerts map[int]*domain.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{nextID: 1, alerts: make(map[int]*domain.Alert)}
}

func (r *fakeAlertRepo) CreateActive(_ context.Context, a *domain.Alert) (*domain.Alert, error) {
	for _, existing := range r.alerts {
		if existing.Status == domain.AlertActive && existing.LotID == a.LotID && existing.Type == a.Type {
			return nil, repository.ErrDuplicateEntry
		}
	}
	clone := *a
	clone.ID = r.nextID
	r.nextID++
	clone.Status = domain.AlertActive
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	r.alerts[clone.ID] = &clone
	copied := clone
	return &copied, nil
}

func (r *fakeAlertRepo) FindByID(_ context.Context, id int) (*domain.Alert, error) {
	a, ok := r.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *fakeAlertRepo) FindActiveByLotAndType(_ context.Context, lotID int, alertType domain.AlertType) (*domain.Alert, error) {
	for _, a := range r.alerts {
		if a.Status == domain.AlertActive && a.LotID == lotID && a.Type == alertType {
			clone := *a
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAlertRepo) UpdateStatus(_ context.Context, id int, status domain.AlertStatus, operator string) error {
	a, ok := r.alerts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	if operator != "" {
		a.AcknowledgedBy.SetValid(operator)
	}
	if status == domain.AlertResolved {
		a.ResolvedAt.SetValid(time.Now().UTC())
	}
	return nil
}

func (r *fakeAlertRepo) Find(_ context.Context, filter domain.AlertFilterDTO) ([]domain.Alert, error) {
	var out []domain.Alert
	for _, a := range r.alerts {
		if filter.LotID != nil && a.LotID != *filter.LotID {
			continue
		}
		if filter.Type != nil && string(a.Type) != *filter.Type {
			continue
		}
		if filter.Status != nil && string(a.Status) != *filter.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}
