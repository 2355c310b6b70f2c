package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parking_dashboard/internal/domain"
	"parking_dashboard/internal/repository"
)

type pgSlotRepository struct {
	db *sql.DB
}

func NewPgSlotRepository(db *sql.DB) repository.SlotRepository {
	return &pgSlotRepository{db: db}
}

func (r *pgSlotRepository) FindByLotID(ctx context.Context, lotID int) ([]domain.Slot, error) {
	query := `SELECT id, lot_id, slot_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, status, confidence, last_updated, created_at
		FROM slots WHERE lot_id = $1 ORDER BY slot_id`
	rows, err := r.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.FindByLotID: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var slot domain.Slot
		var confidence sql.NullFloat64
		if err := rows.Scan(
			&slot.ID, &slot.LotID, &slot.SlotID,
			&slot.BBox.X1, &slot.BBox.Y1, &slot.BBox.X2, &slot.BBox.Y2,
			&slot.Status, &confidence, &slot.LastUpdated, &slot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("SlotRepository.FindByLotID (scanning row): %w", err)
		}
		if confidence.Valid {
			slot.Confidence = confidence.Float64
		}
		slot.LastUpdated = slot.LastUpdated.In(time.UTC)
		slot.CreatedAt = slot.CreatedAt.In(time.UTC)
		slots = append(slots, slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SlotRepository.FindByLotID (rows error): %w", err)
	}
	return slots, nil
}

func (r *pgSlotRepository) Upsert(ctx context.Context, lotID int, obs domain.SlotObservation, seenAt time.Time) error {
	// UNIQUE (lot_id, slot_id) là hiện thân quan hệ của invariant
	// "tối đa một entry cho mỗi slot_id". Slot vắng mặt trong frame hiện tại
	// không bị đụng tới (frame có thể chỉ báo một subset).
	query := `INSERT INTO slots (lot_id, slot_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, status, confidence, last_updated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
		ON CONFLICT (lot_id, slot_id) DO UPDATE
		SET bbox_x1 = EXCLUDED.bbox_x1, bbox_y1 = EXCLUDED.bbox_y1,
			bbox_x2 = EXCLUDED.bbox_x2, bbox_y2 = EXCLUDED.bbox_y2,
			status = EXCLUDED.status, confidence = EXCLUDED.confidence,
			last_updated = EXCLUDED.last_updated`
	_, err := r.db.ExecContext(ctx, query,
		lotID, obs.SlotID, obs.BBox.X1, obs.BBox.Y1, obs.BBox.X2, obs.BBox.Y2,
		obs.Status, obs.Confidence, seenAt,
	)
	if err != nil {
		return fmt.Errorf("SlotRepository.Upsert: %w", err)
	}
	return nil
}
