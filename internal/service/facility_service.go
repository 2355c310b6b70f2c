package service

import (
	"context"
	"errors"
	"fmt"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

// ErrInvalidTransition - thao tác acknowledge/resolve không hợp lệ cho
// trạng thái hiện tại của violation/alert.
var ErrInvalidTransition = errors.New("chuyển trạng thái không hợp lệ")

// FacilityService gom các thao tác quản trị: CRUD bãi đỗ và contractor,
// truy vấn lịch sử xe / capacity log, và workflow acknowledge/resolve
// cho violation và alert.
type FacilityService struct {
	lotRepo        repository.ParkingLotRepository
	slotRepo       repository.SlotRepository
	contractorRepo repository.ContractorRepository
	vehicleRepo    repository.VehicleRecordRepository
	capacityRepo   repository.CapacityLogRepository
	violationRepo  repository.ViolationRepository
	alertRepo      repository.AlertRepository
	broadcaster    Broadcaster
}

func NewFacilityService(
	lotRepo repository.ParkingLotRepository,
	slotRepo repository.SlotRepository,
	contractorRepo repository.ContractorRepository,
	vehicleRepo repository.VehicleRecordRepository,
	capacityRepo repository.CapacityLogRepository,
	violationRepo repository.ViolationRepository,
	alertRepo repository.AlertRepository,
	broadcaster Broadcaster,
) *FacilityService {
	return &FacilityService{
		lotRepo:        lotRepo,
		slotRepo:       slotRepo,
		contractorRepo: contractorRepo,
		vehicleRepo:    vehicleRepo,
		capacityRepo:   capacityRepo,
		violationRepo:  violationRepo,
		alertRepo:      alertRepo,
		broadcaster:    broadcaster,
	}
}

// --- ParkingLot ---

func (s *FacilityService) CreateParkingLot(ctx context.Context, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	status := domain.LotActive
	if dto.Status != "" {
		status = domain.LotStatus(dto.Status)
	}
	lot := &domain.ParkingLot{
		Name:       dto.Name,
		Address:    dto.Address,
		Latitude:   dto.Latitude,
		Longitude:  dto.Longitude,
		TotalSlots: dto.TotalSlots,
		Status:     status,
	}
	return s.lotRepo.Create(ctx, lot)
}

func (s *FacilityService) GetParkingLotByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return s.lotRepo.FindByID(ctx, id)
}

// GetLotWithSlots trả về bãi kèm danh sách slot hiện tại (trạng thái
// occupancy mới nhất từ lot monitor).
func (s *FacilityService) GetLotWithSlots(ctx context.Context, id int) (*domain.ParkingLot, error) {
	lot, err := s.lotRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slots, err := s.slotRepo.FindByLotID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lỗi khi lấy danh sách chỗ đỗ của bãi %d: %w", id, err)
	}
	lot.Slots = slots
	return lot, nil
}

func (s *FacilityService) GetAllParkingLots(ctx context.Context) ([]domain.ParkingLot, error) {
	return s.lotRepo.FindAll(ctx)
}

func (s *FacilityService) UpdateParkingLot(ctx context.Context, id int, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	lot, err := s.lotRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lot.Name = dto.Name
	lot.Address = dto.Address
	lot.Latitude = dto.Latitude
	lot.Longitude = dto.Longitude
	lot.TotalSlots = dto.TotalSlots
	if dto.Status != "" {
		lot.Status = domain.LotStatus(dto.Status)
	}
	return s.lotRepo.Update(ctx, lot)
}

func (s *FacilityService) DeleteParkingLot(ctx context.Context, id int) error {
	// Không xóa bãi khi vẫn còn contractor liên kết. Slot và log lịch sử
	// đi theo ON DELETE CASCADE ở tầng DB.
	contractors, err := s.contractorRepo.FindByLotID(ctx, id)
	if err != nil {
		return fmt.Errorf("lỗi khi kiểm tra contractor của bãi %d: %w", id, err)
	}
	if len(contractors) > 0 {
		return fmt.Errorf("không thể xóa bãi đỗ %d vì vẫn còn contractor liên kết", id)
	}
	return s.lotRepo.Delete(ctx, id)
}

// --- Contractor ---

func (s *FacilityService) CreateContractor(ctx context.Context, dto domain.ContractorDTO) (*domain.Contractor, error) {
	if _, err := s.lotRepo.FindByID(ctx, dto.LotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("bãi đỗ xe với ID %d không tồn tại", dto.LotID)
		}
		return nil, fmt.Errorf("lỗi khi kiểm tra bãi đỗ xe: %w", err)
	}
	if dto.AllocatedCapacity <= 0 {
		return nil, fmt.Errorf("hạn mức chỗ đỗ phải lớn hơn 0")
	}
	c := &domain.Contractor{
		Name:              dto.Name,
		LotID:             dto.LotID,
		AllocatedCapacity: dto.AllocatedCapacity,
		ViolationPenalty:  dto.ViolationPenalty,
		ContactEmail:      dto.ContactEmail,
		ContactPhone:      dto.ContactPhone,
	}
	return s.contractorRepo.Create(ctx, c)
}

func (s *FacilityService) GetContractorByID(ctx context.Context, id int) (*domain.Contractor, error) {
	return s.contractorRepo.FindByID(ctx, id)
}

func (s *FacilityService) GetAllContractors(ctx context.Context) ([]domain.Contractor, error) {
	return s.contractorRepo.FindAll(ctx)
}

func (s *FacilityService) GetContractorsByLotID(ctx context.Context, lotID int) ([]domain.Contractor, error) {
	return s.contractorRepo.FindByLotID(ctx, lotID)
}

func (s *FacilityService) UpdateContractor(ctx context.Context, id int, dto domain.ContractorDTO) (*domain.Contractor, error) {
	c, err := s.contractorRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dto.AllocatedCapacity <= 0 {
		return nil, fmt.Errorf("hạn mức chỗ đỗ phải lớn hơn 0")
	}
	c.Name = dto.Name
	c.AllocatedCapacity = dto.AllocatedCapacity
	c.ViolationPenalty = dto.ViolationPenalty
	c.ContactEmail = dto.ContactEmail
	c.ContactPhone = dto.ContactPhone
	return s.contractorRepo.Update(ctx, c)
}

func (s *FacilityService) DeleteContractor(ctx context.Context, id int) error {
	return s.contractorRepo.Delete(ctx, id)
}

// --- VehicleRecord / CapacityLog ---

func (s *FacilityService) GetVehicleRecordByID(ctx context.Context, id int) (*domain.VehicleRecord, error) {
	return s.vehicleRepo.FindByID(ctx, id)
}

func (s *FacilityService) FindVehicleRecords(ctx context.Context, filter domain.VehicleRecordFilterDTO) ([]domain.VehicleRecord, error) {
	return s.vehicleRepo.Find(ctx, filter)
}

func (s *FacilityService) FindCapacityLogs(ctx context.Context, filter domain.CapacityLogFilterDTO) ([]domain.CapacityLog, error) {
	return s.capacityRepo.Find(ctx, filter)
}

// --- Violation workflow ---

func (s *FacilityService) GetViolationByID(ctx context.Context, id int) (*domain.Violation, error) {
	return s.violationRepo.FindByID(ctx, id)
}

func (s *FacilityService) FindViolations(ctx context.Context, filter domain.ViolationFilterDTO) ([]domain.Violation, error) {
	return s.violationRepo.Find(ctx, filter)
}

// AcknowledgeViolation chuyển pending -> acknowledged. Đây là cách duy nhất
// kết thúc vòng đời pending: occupancy giảm không tự resolve violation.
func (s *FacilityService) AcknowledgeViolation(ctx context.Context, id int, operator string) (*domain.Violation, error) {
	return s.transitionViolation(ctx, id, domain.ViolationAcknowledged, operator)
}

func (s *FacilityService) ResolveViolation(ctx context.Context, id int, operator string) (*domain.Violation, error) {
	return s.transitionViolation(ctx, id, domain.ViolationResolved, operator)
}

func (s *FacilityService) transitionViolation(ctx context.Context, id int, target domain.ViolationStatus, operator string) (*domain.Violation, error) {
	v, err := s.violationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !violationTransitionAllowed(v.Status, target) {
		return nil, fmt.Errorf("%w: violation %d từ '%s' sang '%s'", ErrInvalidTransition, id, v.Status, target)
	}
	if err := s.violationRepo.UpdateStatus(ctx, id, target, operator); err != nil {
		return nil, err
	}
	updated, err := s.violationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastViolation(*updated)
	return updated, nil
}

func violationTransitionAllowed(from, to domain.ViolationStatus) bool {
	switch to {
	case domain.ViolationAcknowledged:
		return from == domain.ViolationPending
	case domain.ViolationResolved:
		return from == domain.ViolationPending || from == domain.ViolationAcknowledged
	default:
		return false
	}
}

// --- Alert workflow ---

func (s *FacilityService) GetAlertByID(ctx context.Context, id int) (*domain.Alert, error) {
	return s.alertRepo.FindByID(ctx, id)
}

func (s *FacilityService) FindAlerts(ctx context.Context, filter domain.AlertFilterDTO) ([]domain.Alert, error) {
	return s.alertRepo.Find(ctx, filter)
}

// AcknowledgeAlert / ResolveAlert: rời trạng thái active là điều kiện để
// alert cùng loại có thể được raise lại cho bãi đó.
func (s *FacilityService) AcknowledgeAlert(ctx context.Context, id int, operator string) (*domain.Alert, error) {
	return s.transitionAlert(ctx, id, domain.AlertAcknowledged, operator)
}

func (s *FacilityService) ResolveAlert(ctx context.Context, id int, operator string) (*domain.Alert, error) {
	return s.transitionAlert(ctx, id, domain.AlertResolved, operator)
}

func (s *FacilityService) transitionAlert(ctx context.Context, id int, target domain.AlertStatus, operator string) (*domain.Alert, error) {
	a, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alertTransitionAllowed(a.Status, target) {
		return nil, fmt.Errorf("%w: alert %d từ '%s' sang '%s'", ErrInvalidTransition, id, a.Status, target)
	}
	if err := s.alertRepo.UpdateStatus(ctx, id, target, operator); err != nil {
		return nil, err
	}
	updated, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastAlert(*updated)
	return updated, nil
}

func alertTransitionAllowed(from, to domain.AlertStatus) bool {
	switch to {
	case domain.AlertAcknowledged:
		return from == domain.AlertActive
	case domain.AlertResolved:
		return from == domain.AlertActive || from == domain.AlertAcknowledged
	default:
		return false
	}
}
