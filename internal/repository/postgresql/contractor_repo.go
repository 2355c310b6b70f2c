package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"

	"github.com/lib/pq"
)

type pgContractorRepository struct {
	db *sql.DB
}

func NewPgContractorRepository(db *sql.DB) repository.ContractorRepository {
	return &pgContractorRepository{db: db}
}

func (r *pgContractorRepository) Create(ctx context.Context, c *domain.Contractor) (*domain.Contractor, error) {
	query := `INSERT INTO contractors (name, lot_id, allocated_capacity, violation_penalty, contact_email, contact_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.Name, c.LotID, c.AllocatedCapacity, c.ViolationPenalty,
		sql.NullString{String: c.ContactEmail, Valid: c.ContactEmail != ""},
		sql.NullString{String: c.ContactPhone, Valid: c.ContactPhone != ""},
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code.Name() == "unique_violation" {
				return nil, fmt.Errorf("%w: contractor '%s' đã tồn tại trong bãi %d", repository.ErrDuplicateEntry, c.Name, c.LotID)
			}
		}
		return nil, fmt.Errorf("ContractorRepository.Create: %w", err)
	}
	c.CreatedAt = c.CreatedAt.In(time.UTC)
	c.UpdatedAt = c.UpdatedAt.In(time.UTC)
	return c, nil
}

func scanContractor(scanner interface{ Scan(...interface{}) error }) (*domain.Contractor, error) {
	c := &domain.Contractor{}
	var email, phone sql.NullString
	err := scanner.Scan(
		&c.ID, &c.Name, &c.LotID, &c.AllocatedCapacity, &c.ViolationPenalty,
		&email, &phone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		c.ContactEmail = email.String
	}
	if phone.Valid {
		c.ContactPhone = phone.String
	}
	c.CreatedAt = c.CreatedAt.In(time.UTC)
	c.UpdatedAt = c.UpdatedAt.In(time.UTC)
	return c, nil
}

const contractorColumns = `id, name, lot_id, allocated_capacity, violation_penalty, contact_email, contact_phone, created_at, updated_at`

func (r *pgContractorRepository) FindByID(ctx context.Context, id int) (*domain.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE id = $1`
	c, err := scanContractor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ContractorRepository.FindByID: %w", err)
	}
	return c, nil
}

func (r *pgContractorRepository) FindAll(ctx context.Context) ([]domain.Contractor, error) {
	return r.findMany(ctx, `SELECT `+contractorColumns+` FROM contractors ORDER BY id`)
}

func (r *pgContractorRepository) FindByLotID(ctx context.Context, lotID int) ([]domain.Contractor, error) {
	return r.findMany(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE lot_id = $1 ORDER BY id`, lotID)
}

func (r *pgContractorRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]domain.Contractor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ContractorRepository (query): %w", err)
	}
	defer rows.Close()

	var contractors []domain.Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, fmt.Errorf("ContractorRepository (scanning row): %w", err)
		}
		contractors = append(contractors, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ContractorRepository (rows error): %w", err)
	}
	return contractors, nil
}

func (r *pgContractorRepository) Update(ctx context.Context, c *domain.Contractor) (*domain.Contractor, error) {
	query := `UPDATE contractors
		SET name = $1, lot_id = $2, allocated_capacity = $3, violation_penalty = $4,
			contact_email = $5, contact_phone = $6, updated_at = CURRENT_TIMESTAMP
		WHERE id = $7
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.Name, c.LotID, c.AllocatedCapacity, c.ViolationPenalty,
		sql.NullString{String: c.ContactEmail, Valid: c.ContactEmail != ""},
		sql.NullString{String: c.ContactPhone, Valid: c.ContactPhone != ""},
		c.ID,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ContractorRepository.Update: %w", err)
	}
	c.UpdatedAt = c.UpdatedAt.In(time.UTC)
	return c, nil
}

func (r *pgContractorRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contractors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ContractorRepository.Delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ContractorRepository.Delete (checking rows): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
