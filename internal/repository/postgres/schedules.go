package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

const scheduleColumns = `id, fecha::text, hora_inicio::text, hora_fin::text, parcela`

// CreateSchedule persists a normalised schedule.
func (s *Store) CreateSchedule(ctx context.Context, sc models.IrrigationSchedule) (models.IrrigationSchedule, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO agroirrigate.programacionriego (fecha, hora_inicio, hora_fin, parcela)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		sc.Date, sc.StartTime, sc.EndTime, sc.ParcelName).Scan(&sc.ID)
	if err != nil {
		return models.IrrigationSchedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return sc, nil
}

// ListSchedules returns schedules whose date is within [from, to], compared as calendar days in the service zone.
func (s *Store) ListSchedules(ctx context.Context, from, to time.Time) ([]models.IrrigationSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM agroirrigate.programacionriego
		 WHERE fecha >= $1::date AND fecha <= $2::date
		 ORDER BY fecha, hora_inicio, id`,
		from.In(s.loc).Format(models.DateLayout), to.In(s.loc).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []models.IrrigationSchedule{}
	for rows.Next() {
		var sc models.IrrigationSchedule
		if err := rows.Scan(&sc.ID, &sc.Date, &sc.StartTime, &sc.EndTime, &sc.ParcelName); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

// GetSchedule loads a schedule by id.
func (s *Store) GetSchedule(ctx context.Context, id int64) (models.IrrigationSchedule, error) {
	var sc models.IrrigationSchedule
	err := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM agroirrigate.programacionriego WHERE id = $1`, id).
		Scan(&sc.ID, &sc.Date, &sc.StartTime, &sc.EndTime, &sc.ParcelName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.IrrigationSchedule{}, models.ErrScheduleNotFound
	}
	if err != nil {
		return models.IrrigationSchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agroirrigate.programacionriego WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return affected(res, models.ErrScheduleNotFound)
}
