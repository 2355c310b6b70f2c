package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

type pgCapacityLogRepository struct {
	db *sql.DB
}

func NewPgCapacityLogRepository(db *sql.DB) repository.CapacityLogRepository {
	return &pgCapacityLogRepository{db: db}
}

func (r *pgCapacityLogRepository) Create(ctx context.Context, entry *domain.CapacityLog) error {
	// Append-only: bảng này không có UPDATE path nào cả.
	query := `INSERT INTO capacity_logs
		(lot_id, event_timestamp, frame_number, total_slots, occupied, empty, occupancy_rate,
		 processing_time_ms, slot_statuses, ingest_latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		entry.LotID, entry.EventTimestamp, entry.FrameNumber,
		entry.TotalSlots, entry.Occupied, entry.Empty, entry.OccupancyRate,
		entry.ProcessingTimeMs, []byte(entry.SlotStatuses), entry.IngestLatencyMs,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("CapacityLogRepository.Create: %w", err)
	}
	entry.CreatedAt = entry.CreatedAt.In(time.UTC)
	return nil
}

func (r *pgCapacityLogRepository) Find(ctx context.Context, filter domain.CapacityLogFilterDTO) ([]domain.CapacityLog, error) {
	query := `SELECT id, lot_id, event_timestamp, frame_number, total_slots, occupied, empty,
		occupancy_rate, processing_time_ms, slot_statuses, ingest_latency_ms, created_at
		FROM capacity_logs WHERE 1=1`
	var args []interface{}
	argIdx := 1
	if filter.LotID != nil {
		query += fmt.Sprintf(" AND lot_id = $%d", argIdx)
		args = append(args, *filter.LotID)
		argIdx++
	}
	limit := 100
	if filter.Limit != nil && *filter.Limit > 0 && *filter.Limit <= 1000 {
		limit = *filter.Limit
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("CapacityLogRepository.Find: %w", err)
	}
	defer rows.Close()

	var entries []domain.CapacityLog
	for rows.Next() {
		var entry domain.CapacityLog
		var slotStatuses []byte
		if err := rows.Scan(
			&entry.ID, &entry.LotID, &entry.EventTimestamp, &entry.FrameNumber,
			&entry.TotalSlots, &entry.Occupied, &entry.Empty, &entry.OccupancyRate,
			&entry.ProcessingTimeMs, &slotStatuses, &entry.IngestLatencyMs, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("CapacityLogRepository.Find (scanning row): %w", err)
		}
		if len(slotStatuses) > 0 {
			entry.SlotStatuses = json.RawMessage(slotStatuses)
		}
		entry.EventTimestamp = entry.EventTimestamp.In(time.UTC)
		entry.CreatedAt = entry.CreatedAt.In(time.UTC)
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("CapacityLogRepository.Find (rows error): %w", err)
	}
	return entries, nil
}
