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

type pgViolationRepository struct {
	db *sql.DB
}

func NewPgViolationRepository(db *sql.DB) repository.ViolationRepository {
	return &pgViolationRepository{db: db}
}

const violationColumns = `id, contractor_id, lot_id, violation_type, allocated_capacity,
	actual_occupancy, excess_vehicles, duration_minutes, penalty, status,
	first_detected_at, last_observed_at, acknowledged_by, resolved_at, created_at, updated_at`

func scanViolation(scanner interface{ Scan(...interface{}) error }) (*domain.Violation, error) {
	v := &domain.Violation{}
	err := scanner.Scan(
		&v.ID, &v.ContractorID, &v.LotID, &v.ViolationType, &v.AllocatedCapacity,
		&v.ActualOccupancy, &v.ExcessVehicles, &v.DurationMinutes, &v.Penalty, &v.Status,
		&v.FirstDetectedAt, &v.LastObservedAt, &v.AcknowledgedBy, &v.ResolvedAt,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.FirstDetectedAt = v.FirstDetectedAt.In(time.UTC)
	v.LastObservedAt = v.LastObservedAt.In(time.UTC)
	v.CreatedAt = v.CreatedAt.In(time.UTC)
	v.UpdatedAt = v.UpdatedAt.In(time.UTC)
	return v, nil
}

func (r *pgViolationRepository) CreatePending(ctx context.Context, v *domain.Violation) (*domain.Violation, error) {
	// Partial unique index uq_violations_pending (contractor_id, lot_id)
	// WHERE status = 'pending' biến thao tác "tạo nếu chưa có pending" thành
	// một câu lệnh atomic duy nhất: an toàn khi nhiều instance engine cùng
	// xử lý capacity update (không cần optimistic lock).
	query := `INSERT INTO violations
		(contractor_id, lot_id, violation_type, allocated_capacity, actual_occupancy,
		 excess_vehicles, duration_minutes, penalty, status, first_detected_at, last_observed_at,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $10, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (contractor_id, lot_id) WHERE status = 'pending' DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		v.ContractorID, v.LotID, v.ViolationType, v.AllocatedCapacity, v.ActualOccupancy,
		v.ExcessVehicles, v.DurationMinutes, v.Penalty, v.FirstDetectedAt, v.LastObservedAt,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// DO NOTHING không trả về row: đã có violation pending cho cặp này.
			return nil, repository.ErrDuplicateEntry
		}
		return nil, fmt.Errorf("ViolationRepository.CreatePending: %w", err)
	}
	v.Status = domain.ViolationPending
	v.CreatedAt = v.CreatedAt.In(time.UTC)
	v.UpdatedAt = v.UpdatedAt.In(time.UTC)
	return v, nil
}

func (r *pgViolationRepository) FindByID(ctx context.Context, id int) (*domain.Violation, error) {
	query := `SELECT ` + violationColumns + ` FROM violations WHERE id = $1`
	v, err := scanViolation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ViolationRepository.FindByID: %w", err)
	}
	return v, nil
}

func (r *pgViolationRepository) FindPendingByContractorAndLot(ctx context.Context, contractorID int, lotID int) (*domain.Violation, error) {
	query := `SELECT ` + violationColumns + ` FROM violations
		WHERE contractor_id = $1 AND lot_id = $2 AND status = 'pending'`
	v, err := scanViolation(r.db.QueryRowContext(ctx, query, contractorID, lotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ViolationRepository.FindPendingByContractorAndLot: %w", err)
	}
	return v, nil
}

func (r *pgViolationRepository) ExtendPending(ctx context.Context, id int, actualOccupancy int, excessVehicles int, durationMinutes int, observedAt time.Time) error {
	// Monotonic extension: duration chỉ tăng, GREATEST chặn update ngược do
	// frame đến muộn sau reconnect.
	query := `UPDATE violations
		SET actual_occupancy = $1, excess_vehicles = $2,
			duration_minutes = GREATEST(duration_minutes, $3),
			last_observed_at = GREATEST(last_observed_at, $4),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, actualOccupancy, excessVehicles, durationMinutes, observedAt, id)
	if err != nil {
		return fmt.Errorf("ViolationRepository.ExtendPending: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ViolationRepository.ExtendPending (checking rows): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgViolationRepository) UpdateStatus(ctx context.Context, id int, status domain.ViolationStatus, operator string) error {
	query := `UPDATE violations
		SET status = $1,
			acknowledged_by = CASE WHEN $2 <> '' THEN $2 ELSE acknowledged_by END,
			resolved_at = CASE WHEN $1 = 'resolved' THEN CURRENT_TIMESTAMP ELSE resolved_at END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, operator, id)
	if err != nil {
		return fmt.Errorf("ViolationRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ViolationRepository.UpdateStatus (checking rows): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgViolationRepository) Find(ctx context.Context, filter domain.ViolationFilterDTO) ([]domain.Violation, error) {
	query := `SELECT ` + violationColumns + ` FROM violations WHERE 1=1`
	var args []interface{}
	argIdx := 1
	if filter.LotID != nil {
		query += fmt.Sprintf(" AND lot_id = $%d", argIdx)
		args = append(args, *filter.LotID)
		argIdx++
	}
	if filter.ContractorID != nil {
		query += fmt.Sprintf(" AND contractor_id = $%d", argIdx)
		args = append(args, *filter.ContractorID)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	query += " ORDER BY first_detected_at DESC LIMIT 500"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ViolationRepository.Find: %w", err)
	}
	defer rows.Close()

	var violations []domain.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("ViolationRepository.Find (scanning row): %w", err)
		}
		violations = append(violations, *v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ViolationRepository.Find (rows error): %w", err)
	}
	return violations, nil
}
