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
)

type pgAlertRepository struct {
	db *sql.DB
}

func NewPgAlertRepository(db *sql.DB) repository.AlertRepository {
	return &pgAlertRepository{db: db}
}

const alertColumns = `id, type, severity, lot_id, contractor_id, message, data, status,
	acknowledged_by, resolved_at, created_at, updated_at`

func scanAlert(scanner interface{ Scan(...interface{}) error }) (*domain.Alert, error) {
	a := &domain.Alert{}
	var message sql.NullString
	var data []byte
	err := scanner.Scan(
		&a.ID, &a.Type, &a.Severity, &a.LotID, &a.ContractorID, &message, &data, &a.Status,
		&a.AcknowledgedBy, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if message.Valid {
		a.Message = message.String
	}
	if len(data) > 0 {
		a.Data = json.RawMessage(data)
	}
	a.CreatedAt = a.CreatedAt.In(time.UTC)
	a.UpdatedAt = a.UpdatedAt.In(time.UTC)
	return a, nil
}

func (r *pgAlertRepository) CreateActive(ctx context.Context, a *domain.Alert) (*domain.Alert, error) {
	// Partial unique index uq_alerts_active (lot_id, type) WHERE status='active':
	// điều kiện lặp lại khi alert còn active bị nuốt atomic ở tầng store,
	// không spam dashboard.
	query := `INSERT INTO alerts
		(type, severity, lot_id, contractor_id, message, data, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (lot_id, type) WHERE status = 'active' DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		a.Type, a.Severity, a.LotID, a.ContractorID,
		sql.NullString{String: a.Message, Valid: a.Message != ""},
		[]byte(a.Data),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrDuplicateEntry
		}
		return nil, fmt.Errorf("AlertRepository.CreateActive: %w", err)
	}
	a.Status = domain.AlertActive
	a.CreatedAt = a.CreatedAt.In(time.UTC)
	a.UpdatedAt = a.UpdatedAt.In(time.UTC)
	return a, nil
}

func (r *pgAlertRepository) FindByID(ctx context.Context, id int) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AlertRepository.FindByID: %w", err)
	}
	return a, nil
}

func (r *pgAlertRepository) FindActiveByLotAndType(ctx context.Context, lotID int, alertType domain.AlertType) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE lot_id = $1 AND type = $2 AND status = 'active'`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, lotID, alertType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("AlertRepository.FindActiveByLotAndType: %w", err)
	}
	return a, nil
}

func (r *pgAlertRepository) UpdateStatus(ctx context.Context, id int, status domain.AlertStatus, operator string) error {
	query := `UPDATE alerts
		SET status = $1,
			acknowledged_by = CASE WHEN $2 <> '' THEN $2 ELSE acknowledged_by END,
			resolved_at = CASE WHEN $1 = 'resolved' THEN CURRENT_TIMESTAMP ELSE resolved_at END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, operator, id)
	if err != nil {
		return fmt.Errorf("AlertRepository.UpdateStatus: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("AlertRepository.UpdateStatus (checking rows): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgAlertRepository) Find(ctx context.Context, filter domain.AlertFilterDTO) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []interface{}
	argIdx := 1
	if filter.LotID != nil {
		query += fmt.Sprintf(" AND lot_id = $%d", argIdx)
		args = append(args, *filter.LotID)
		argIdx++
	}
	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, *filter.Type)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	query += " ORDER BY created_at DESC LIMIT 500"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("AlertRepository.Find: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("AlertRepository.Find (scanning row): %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("AlertRepository.Find (rows error): %w", err)
	}
	return alerts, nil
}
