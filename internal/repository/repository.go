package repository

import (
	"context"
	"errors"
	"time"

	"parking_dashboard/internal/domain"
)

var ErrNotFound = errors.New("không tìm thấy bản ghi")
var ErrDuplicateEntry = errors.New("bản ghi đã tồn tại")
var ErrNoOpenRecord = errors.New("không tìm thấy bản ghi xe đang trong bãi cho thông tin cung cấp")

type ParkingLotRepository interface {
	Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingLot, error)
	FindAll(ctx context.Context) ([]domain.ParkingLot, error)
	Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	Delete(ctx context.Context, id int) error
	// UpdateCameraSeen đẩy last_seen của camera tiến về phía trước và set
	// status. last_seen không bao giờ lùi: update có điều kiện ở tầng SQL.
	UpdateCameraSeen(ctx context.Context, lotID int, role domain.CameraRole, seenAt time.Time) error
	// MarkCameraOffline set status=offline nếu last_seen cũ hơn staleBefore.
	// Trả về danh sách lot bị đánh dấu (để watchdog raise alert).
	MarkCameraOffline(ctx context.Context, role domain.CameraRole, staleBefore time.Time) ([]domain.ParkingLot, error)
}

type SlotRepository interface {
	FindByLotID(ctx context.Context, lotID int) ([]domain.Slot, error)
	// Upsert tạo slot nếu (lot_id, slot_id) chưa tồn tại, ngược lại cập nhật
	// status/bbox/last_updated. Không bao giờ xóa slot vắng mặt trong frame.
	Upsert(ctx context.Context, lotID int, obs domain.SlotObservation, seenAt time.Time) error
}

type ContractorRepository interface {
	Create(ctx context.Context, c *domain.Contractor) (*domain.Contractor, error)
	FindByID(ctx context.Context, id int) (*domain.Contractor, error)
	FindAll(ctx context.Context) ([]domain.Contractor, error)
	FindByLotID(ctx context.Context, lotID int) ([]domain.Contractor, error)
	Update(ctx context.Context, c *domain.Contractor) (*domain.Contractor, error)
	Delete(ctx context.Context, id int) error
}

type VehicleRecordRepository interface {
	Create(ctx context.Context, rec *domain.VehicleRecord) (*domain.VehicleRecord, error)
	FindByID(ctx context.Context, id int) (*domain.VehicleRecord, error)
	// FindInsideByPlateAndLot trả về bản ghi status=inside duy nhất của
	// (plate, lot), hoặc ErrNoOpenRecord.
	FindInsideByPlateAndLot(ctx context.Context, lotID int, plate string) (*domain.VehicleRecord, error)
	// CompleteExit ghi exit_* / duration và chuyển status sang exited.
	CompleteExit(ctx context.Context, rec *domain.VehicleRecord) (*domain.VehicleRecord, error)
	Find(ctx context.Context, filter domain.VehicleRecordFilterDTO) ([]domain.VehicleRecord, error)
}

type CapacityLogRepository interface {
	Create(ctx context.Context, entry *domain.CapacityLog) error
	Find(ctx context.Context, filter domain.CapacityLogFilterDTO) ([]domain.CapacityLog, error)
}

type ViolationRepository interface {
	// CreatePending là conditional insert: partial unique index đảm bảo tối đa
	// một violation pending cho (contractor_id, lot_id). Nếu đã có pending,
	// trả về ErrDuplicateEntry để caller chuyển sang extend.
	CreatePending(ctx context.Context, v *domain.Violation) (*domain.Violation, error)
	FindByID(ctx context.Context, id int) (*domain.Violation, error)
	FindPendingByContractorAndLot(ctx context.Context, contractorID int, lotID int) (*domain.Violation, error)
	// ExtendPending cập nhật actual_occupancy/excess_vehicles/duration của
	// violation pending hiện có (monotonic extension, không tạo bản ghi mới).
	ExtendPending(ctx context.Context, id int, actualOccupancy int, excessVehicles int, durationMinutes int, observedAt time.Time) error
	UpdateStatus(ctx context.Context, id int, status domain.ViolationStatus, operator string) error
	Find(ctx context.Context, filter domain.ViolationFilterDTO) ([]domain.Violation, error)
}

type AlertRepository interface {
	// CreateActive là conditional insert: partial unique index đảm bảo tối đa
	// một alert active cho (lot_id, type). Nếu đã có, trả về ErrDuplicateEntry.
	CreateActive(ctx context.Context, a *domain.Alert) (*domain.Alert, error)
	FindByID(ctx context.Context, id int) (*domain.Alert, error)
	FindActiveByLotAndType(ctx context.Context, lotID int, alertType domain.AlertType) (*domain.Alert, error)
	UpdateStatus(ctx context.Context, id int, status domain.AlertStatus, operator string) error
	Find(ctx context.Context, filter domain.AlertFilterDTO) ([]domain.Alert, error)
}
