package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

type pgParkingLotRepository struct {
	db *sql.DB
}

func NewPgParkingLotRepository(db *sql.DB) repository.ParkingLotRepository {
	return &pgParkingLotRepository{db: db}
}

const parkingLotColumns = `id, name, address, latitude, longitude, total_slots, status,
	gate_camera_status, gate_camera_last_seen, lot_camera_status, lot_camera_last_seen,
	created_at, updated_at`

func scanParkingLot(scanner interface{ Scan(...interface{}) error }) (*domain.ParkingLot, error) {
	lot := &domain.ParkingLot{}
	var address sql.NullString
	var latitude, longitude sql.NullFloat64
	var gateSeen, lotSeen sql.NullTime

	err := scanner.Scan(
		&lot.ID, &lot.Name, &address, &latitude, &longitude, &lot.TotalSlots, &lot.Status,
		&lot.GateCamera.Status, &gateSeen, &lot.LotCamera.Status, &lotSeen,
		&lot.CreatedAt, &lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if address.Valid {
		lot.Address = address.String
	}
	if latitude.Valid {
		lot.Latitude = latitude.Float64
	}
	if longitude.Valid {
		lot.Longitude = longitude.Float64
	}
	if gateSeen.Valid {
		t := gateSeen.Time.In(time.UTC)
		lot.GateCamera.LastSeen = &t
	}
	if lotSeen.Valid {
		t := lotSeen.Time.In(time.UTC)
		lot.LotCamera.LastSeen = &t
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	if lot.Status == "" {
		lot.Status = domain.LotActive
	}
	lot.GateCamera.Status = domain.CameraUnknown
	lot.LotCamera.Status = domain.CameraUnknown

	query := `INSERT INTO parking_lots (name, address, latitude, longitude, total_slots, status,
		gate_camera_status, lot_camera_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		lot.Name,
		sql.NullString{String: lot.Address, Valid: lot.Address != ""},
		sql.NullFloat64{Float64: lot.Latitude, Valid: lot.Latitude != 0},
		sql.NullFloat64{Float64: lot.Longitude, Valid: lot.Longitude != 0},
		lot.TotalSlots, lot.Status, lot.GateCamera.Status, lot.LotCamera.Status,
	).Scan(&lot.ID, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.Create: %w", err)
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	query := `SELECT ` + parkingLotColumns + ` FROM parking_lots WHERE id = $1`
	lot, err := scanParkingLot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.FindByID: %w", err)
	}
	return lot, nil
}

func (r *pgParkingLotRepository) FindAll(ctx context.Context) ([]domain.ParkingLot, error) {
	query := `SELECT ` + parkingLotColumns + ` FROM parking_lots ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var lots []domain.ParkingLot
	for rows.Next() {
		lot, err := scanParkingLot(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingLotRepository.FindAll (scanning row): %w", err)
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.FindAll (rows error): %w", err)
	}
	return lots, nil
}

func (r *pgParkingLotRepository) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	query := `UPDATE parking_lots
		SET name = $1, address = $2, latitude = $3, longitude = $4, total_slots = $5, status = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $7
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		lot.Name,
		sql.NullString{String: lot.Address, Valid: lot.Address != ""},
		sql.NullFloat64{Float64: lot.Latitude, Valid: lot.Latitude != 0},
		sql.NullFloat64{Float64: lot.Longitude, Valid: lot.Longitude != 0},
		lot.TotalSlots, lot.Status, lot.ID,
	).Scan(&lot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.Update: %w", err)
	}
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ParkingLotRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ParkingLotRepository.Delete (checking rows): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgParkingLotRepository) UpdateCameraSeen(ctx context.Context, lotID int, role domain.CameraRole, seenAt time.Time) error {
	// last_seen chỉ tiến về phía trước: điều kiện COALESCE chặn event cũ
	// đến muộn kéo lùi mốc thời gian.
	var query string
	switch role {
	case domain.CameraRoleGate:
		query = `UPDATE parking_lots
			SET gate_camera_status = 'online', gate_camera_last_seen = $1, updated_at = CURRENT_TIMESTAMP
			WHERE id = $2 AND COALESCE(gate_camera_last_seen, 'epoch'::timestamptz) <= $1`
	case domain.CameraRoleLot:
		query = `UPDATE parking_lots
			SET lot_camera_status = 'online', lot_camera_last_seen = $1, updated_at = CURRENT_TIMESTAMP
			WHERE id = $2 AND COALESCE(lot_camera_last_seen, 'epoch'::timestamptz) <= $1`
	default:
		return fmt.Errorf("ParkingLotRepository.UpdateCameraSeen: camera role không hợp lệ: %s", role)
	}

	_, err := r.db.ExecContext(ctx, query, seenAt, lotID)
	if err != nil {
		return fmt.Errorf("ParkingLotRepository.UpdateCameraSeen: %w", err)
	}
	return nil
}

func (r *pgParkingLotRepository) MarkCameraOffline(ctx context.Context, role domain.CameraRole, staleBefore time.Time) ([]domain.ParkingLot, error) {
	var query string
	switch role {
	case domain.CameraRoleGate:
		query = `UPDATE parking_lots
			SET gate_camera_status = 'offline', updated_at = CURRENT_TIMESTAMP
			WHERE gate_camera_status = 'online' AND COALESCE(gate_camera_last_seen, 'epoch'::timestamptz) < $1
			RETURNING ` + parkingLotColumns
	case domain.CameraRoleLot:
		query = `UPDATE parking_lots
			SET lot_camera_status = 'offline', updated_at = CURRENT_TIMESTAMP
			WHERE lot_camera_status = 'online' AND COALESCE(lot_camera_last_seen, 'epoch'::timestamptz) < $1
			RETURNING ` + parkingLotColumns
	default:
		return nil, fmt.Errorf("ParkingLotRepository.MarkCameraOffline: camera role không hợp lệ: %s", role)
	}

	rows, err := r.db.QueryContext(ctx, query, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.MarkCameraOffline: %w", err)
	}
	defer rows.Close()

	var lots []domain.ParkingLot
	for rows.Next() {
		lot, err := scanParkingLot(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingLotRepository.MarkCameraOffline (scanning row): %w", err)
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.MarkCameraOffline (rows error): %w", err)
	}
	return lots, nil
}
