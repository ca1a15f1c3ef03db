package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// InsertUsage appends a usage record. Callers are responsible for suppressing zero-liter records.
func (s *Store) InsertUsage(ctx context.Context, rec models.WaterUsageRecord) (models.WaterUsageRecord, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO agroirrigate.uso_agua (parcela_id, parcela_nombre, litros, fecha)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.ParcelID, rec.ParcelName, rec.Liters, s.wall(rec.Timestamp)).Scan(&rec.ID)
	if err != nil {
		return models.WaterUsageRecord{}, fmt.Errorf("insert water usage: %w", err)
	}
	rec.Timestamp = rec.Timestamp.In(s.loc)
	return rec, nil
}

// ListUsage returns usage records ordered by timestamp, filtered by an inclusive day range.
func (s *Store) ListUsage(ctx context.Context, filter models.UsageFilter) ([]models.WaterUsageRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.From != "" {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("DATE(fecha) >= $%d::date", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("DATE(fecha) <= $%d::date", len(args)))
	}

	query := `SELECT id, parcela_id, parcela_nombre, litros, fecha FROM agroirrigate.uso_agua`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY fecha ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list water usage: %w", err)
	}
	defer rows.Close()

	records := []models.WaterUsageRecord{}
	for rows.Next() {
		var rec models.WaterUsageRecord
		if err := rows.Scan(&rec.ID, &rec.ParcelID, &rec.ParcelName, &rec.Liters, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan water usage: %w", err)
		}
		rec.Timestamp = s.local(rec.Timestamp)
		records = append(records, rec)
	}
	return records, rows.Err()
}
