package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// InsertReading stores a humidity sample.
func (s *Store) InsertReading(ctx context.Context, r models.HumidityReading) (models.HumidityReading, error) {
	var parcelID sql.NullInt64
	if r.ParcelID != nil {
		parcelID = sql.NullInt64{Int64: *r.ParcelID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO agroirrigate.lecturashumedad (lectura, fecha, ubicacion, parcela_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		r.Reading, s.wall(r.Date), r.Location, parcelID).Scan(&r.ID)
	if err != nil {
		return models.HumidityReading{}, fmt.Errorf("insert humidity reading: %w", err)
	}
	r.Date = r.Date.In(s.loc)
	return r, nil
}

// ListReadings returns the most recent readings first. A nil parcelID lists every parcel.
func (s *Store) ListReadings(ctx context.Context, parcelID *int64, limit int) ([]models.HumidityReading, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, lectura, fecha, ubicacion, parcela_id FROM agroirrigate.lecturashumedad`
	args := []any{limit}
	if parcelID != nil {
		query += ` WHERE parcela_id = $2`
		args = append(args, *parcelID)
	}
	query += ` ORDER BY fecha DESC, id DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list humidity readings: %w", err)
	}
	defer rows.Close()

	readings := []models.HumidityReading{}
	for rows.Next() {
		var (
			r   models.HumidityReading
			pid sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Reading, &r.Date, &r.Location, &pid); err != nil {
			return nil, fmt.Errorf("scan humidity reading: %w", err)
		}
		if pid.Valid {
			id := pid.Int64
			r.ParcelID = &id
		}
		r.Date = s.local(r.Date)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
