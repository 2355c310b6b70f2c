package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"

	"github.com/lib/pq"
)

type pgVehicleRecordRepository struct {
	db *sql.DB
}

func NewPgVehicleRecordRepository(db *sql.DB) repository.VehicleRecordRepository {
	return &pgVehicleRecordRepository{db: db}
}

const vehicleRecordColumns = `id, plate_number, lot_id, contractor_id, status,
	entry_time, entry_gate_id, entry_confidence, entry_payload,
	exit_time, exit_gate_id, exit_confidence, exit_payload, duration_minutes,
	created_at, updated_at`

func scanVehicleRecord(scanner interface{ Scan(...interface{}) error }) (*domain.VehicleRecord, error) {
	rec := &domain.VehicleRecord{}
	var entryGateID sql.NullString
	var entryConfidence sql.NullFloat64
	var entryPayload, exitPayload []byte

	err := scanner.Scan(
		&rec.ID, &rec.PlateNumber, &rec.LotID, &rec.ContractorID, &rec.Status,
		&rec.EntryTime, &entryGateID, &entryConfidence, &entryPayload,
		&rec.ExitTime, &rec.ExitGateID, &rec.ExitConfidence, &exitPayload, &rec.DurationMinutes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entryGateID.Valid {
		rec.EntryGateID = entryGateID.String
	}
	if entryConfidence.Valid {
		rec.EntryConfidence = entryConfidence.Float64
	}
	if len(entryPayload) > 0 {
		rec.EntryPayload = json.RawMessage(entryPayload)
	}
	if len(exitPayload) > 0 {
		rec.ExitPayload = json.RawMessage(exitPayload)
	}
	rec.EntryTime = rec.EntryTime.In(time.UTC)
	rec.CreatedAt = rec.CreatedAt.In(time.UTC)
	rec.UpdatedAt = rec.UpdatedAt.In(time.UTC)
	return rec, nil
}

func (r *pgVehicleRecordRepository) Create(ctx context.Context, rec *domain.VehicleRecord) (*domain.VehicleRecord, error) {
	query := `INSERT INTO vehicle_records
		(plate_number, lot_id, contractor_id, status, entry_time, entry_gate_id, entry_confidence, entry_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.PlateNumber, rec.LotID, rec.ContractorID, rec.Status, rec.EntryTime,
		sql.NullString{String: rec.EntryGateID, Valid: rec.EntryGateID != ""},
		rec.EntryConfidence, []byte(rec.EntryPayload),
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			// Partial unique index: một bản ghi inside duy nhất cho (plate, lot).
			// Đây là lưới an toàn ở tầng store cho reconciliation invariant,
			// phòng khi có nhiều instance engine chạy song song.
			if pqErr.Code.Name() == "unique_violation" {
				return nil, fmt.Errorf("%w: xe '%s' đã có bản ghi inside tại bãi %d", repository.ErrDuplicateEntry, rec.PlateNumber, rec.LotID)
			}
		}
		return nil, fmt.Errorf("VehicleRecordRepository.Create: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.In(time.UTC)
	rec.UpdatedAt = rec.UpdatedAt.In(time.UTC)
	return rec, nil
}

func (r *pgVehicleRecordRepository) FindByID(ctx context.Context, id int) (*domain.VehicleRecord, error) {
	query := `SELECT ` + vehicleRecordColumns + ` FROM vehicle_records WHERE id = $1`
	rec, err := scanVehicleRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("VehicleRecordRepository.FindByID: %w", err)
	}
	return rec, nil
}

func (r *pgVehicleRecordRepository) FindInsideByPlateAndLot(ctx context.Context, lotID int, plate string) (*domain.VehicleRecord, error) {
	query := `SELECT ` + vehicleRecordColumns + ` FROM vehicle_records
		WHERE lot_id = $1 AND plate_number = $2 AND status = 'inside'`
	rec, err := scanVehicleRecord(r.db.QueryRowContext(ctx, query, lotID, plate))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoOpenRecord
		}
		return nil, fmt.Errorf("VehicleRecordRepository.FindInsideByPlateAndLot: %w", err)
	}
	return rec, nil
}

func (r *pgVehicleRecordRepository) CompleteExit(ctx context.Context, rec *domain.VehicleRecord) (*domain.VehicleRecord, error) {
	query := `UPDATE vehicle_records
		SET status = 'exited', exit_time = $1, exit_gate_id = $2, exit_confidence = $3,
			exit_payload = $4, duration_minutes = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND status = 'inside'
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.ExitTime, rec.ExitGateID, rec.ExitConfidence,
		[]byte(rec.ExitPayload), rec.DurationMinutes, rec.ID,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Bản ghi đã bị đóng bởi writer khác (điều kiện status='inside' bảo vệ
			// khỏi double-exit khi chạy nhiều instance).
			return nil, repository.ErrNoOpenRecord
		}
		return nil, fmt.Errorf("VehicleRecordRepository.CompleteExit: %w", err)
	}
	rec.Status = domain.VehicleExited
	rec.UpdatedAt = rec.UpdatedAt.In(time.UTC)
	return rec, nil
}

func (r *pgVehicleRecordRepository) Find(ctx context.Context, filter domain.VehicleRecordFilterDTO) ([]domain.VehicleRecord, error) {
	query := `SELECT ` + vehicleRecordColumns + ` FROM vehicle_records WHERE 1=1`
	var args []interface{}
	argIdx := 1
	if filter.LotID != nil {
		query += fmt.Sprintf(" AND lot_id = $%d", argIdx)
		args = append(args, *filter.LotID)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Plate != nil {
		query += fmt.Sprintf(" AND plate_number = $%d", argIdx)
		args = append(args, *filter.Plate)
		argIdx++
	}
	query += " ORDER BY entry_time DESC LIMIT 500"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("VehicleRecordRepository.Find: %w", err)
	}
	defer rows.Close()

	var records []domain.VehicleRecord
	for rows.Next() {
		rec, err := scanVehicleRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("VehicleRecordRepository.Find (scanning row): %w", err)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("VehicleRecordRepository.Find (rows error): %w", err)
	}
	return records, nil
}
