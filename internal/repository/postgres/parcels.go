package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

const parcelColumns = `id, name, user_id, humidity`

var defaultParcels = []models.Parcel{
	{Name: "Parcela #1", UserID: 1, Humidity: 19},
	{Name: "Parcela #2", UserID: 1, Humidity: 49},
	{Name: "Parcela #3", UserID: 1, Humidity: 34},
}

// ListParcels returns every parcel ordered by id, seeding the default parcels when the table is empty.
func (s *Store) ListParcels(ctx context.Context) ([]models.Parcel, error) {
	parcels, err := s.queryParcels(ctx)
	if err != nil {
		return nil, err
	}
	if len(parcels) > 0 {
		return parcels, nil
	}

	if err := s.seedParcels(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("seeded default parcels", zap.Int("count", len(defaultParcels)))
	return s.queryParcels(ctx)
}

func (s *Store) queryParcels(ctx context.Context) ([]models.Parcel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+parcelColumns+` FROM agroirrigate.parcels ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	defer rows.Close()

	parcels := []models.Parcel{}
	for rows.Next() {
		var p models.Parcel
		if err := rows.Scan(&p.ID, &p.Name, &p.UserID, &p.Humidity); err != nil {
			return nil, fmt.Errorf("scan parcel: %w", err)
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}

func (s *Store) seedParcels(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed parcels: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range defaultParcels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agroirrigate.parcels (name, user_id, humidity) VALUES ($1, $2, $3)`,
			p.Name, p.UserID, p.Humidity); err != nil {
			return fmt.Errorf("seed parcel %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

// CreateParcel inserts a parcel and returns it with its id.
func (s *Store) CreateParcel(ctx context.Context, p models.Parcel) (models.Parcel, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO agroirrigate.parcels (name, user_id, humidity) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.UserID, p.Humidity).Scan(&p.ID)
	if err != nil {
		return models.Parcel{}, fmt.Errorf("create parcel: %w", err)
	}
	return p, nil
}

// GetParcel loads a parcel by id.
func (s *Store) GetParcel(ctx context.Context, id int64) (models.Parcel, error) {
	return s.getParcel(ctx, `SELECT `+parcelColumns+` FROM agroirrigate.parcels WHERE id = $1`, id)
}

// GetParcelByName loads the parcel with the exact given name, lowest id first.
func (s *Store) GetParcelByName(ctx context.Context, name string) (models.Parcel, error) {
	return s.getParcel(ctx, `SELECT `+parcelColumns+` FROM agroirrigate.parcels WHERE name = $1 ORDER BY id LIMIT 1`, name)
}

func (s *Store) getParcel(ctx context.Context, query string, arg any) (models.Parcel, error) {
	var p models.Parcel
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name, &p.UserID, &p.Humidity)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Parcel{}, models.ErrParcelNotFound
	}
	if err != nil {
		return models.Parcel{}, fmt.Errorf("get parcel: %w", err)
	}
	return p, nil
}

// SetParcelHumidity overwrites the parcel humidity. Concurrent writers are last-write-wins.
func (s *Store) SetParcelHumidity(ctx context.Context, id int64, humidity float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agroirrigate.parcels SET humidity = $1 WHERE id = $2`, humidity, id)
	if err != nil {
		return fmt.Errorf("update parcel humidity: %w", err)
	}
	return affected(res, models.ErrParcelNotFound)
}

// DeleteParcel removes a parcel.
func (s *Store) DeleteParcel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agroirrigate.parcels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete parcel: %w", err)
	}
	return affected(res, models.ErrParcelNotFound)
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
