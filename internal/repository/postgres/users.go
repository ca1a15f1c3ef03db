package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// GetContact loads the notification contact data of a user.
func (s *Store) GetContact(ctx context.Context, userID int64) (models.Contact, error) {
	var (
		c            models.Contact
		email, phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nombre_usuario, correo, telefono FROM agroirrigate.usuarios WHERE id = $1`, userID).
		Scan(&c.UserID, &c.Name, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	c.Email = email.String
	c.Phone = phone.String
	return c, nil
}

// UpdateEmail replaces the email address of a user.
func (s *Store) UpdateEmail(ctx context.Context, userID int64, email string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agroirrigate.usuarios SET correo = $1 WHERE id = $2`, email, userID)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return affected(res, models.ErrUserNotFound)
}

// ListDryParcels returns parcels below threshold whose owner is reachable and has not been
// alerted about that parcel within cooldown.
func (s *Store) ListDryParcels(ctx context.Context, threshold float64, cooldown time.Duration) ([]models.DryParcel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.humidity, p.user_id, u.nombre_usuario, u.correo, u.telefono
		FROM agroirrigate.parcels p
		INNER JOIN agroirrigate.usuarios u ON p.user_id = u.id
		WHERE p.humidity < $1
		  AND (u.correo IS NOT NULL OR u.telefono IS NOT NULL)
		  AND NOT EXISTS (
			SELECT 1 FROM agroirrigate.alert_history ah
			WHERE ah.parcel_id = p.id
			  AND ah.user_id = p.user_id
			  AND ah.sent_at > $2
		  )
		ORDER BY p.user_id, p.id`,
		threshold, s.wall(s.now().Add(-cooldown)))
	if err != nil {
		return nil, fmt.Errorf("list dry parcels: %w", err)
	}
	defer rows.Close()

	parcels := []models.DryParcel{}
	for rows.Next() {
		var (
			d            models.DryParcel
			email, phone sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Humidity, &d.UserID, &d.OwnerName, &email, &phone); err != nil {
			return nil, fmt.Errorf("scan dry parcel: %w", err)
		}
		d.OwnerEmail = email.String
		d.OwnerPhone = phone.String
		parcels = append(parcels, d)
	}
	return parcels, rows.Err()
}

// RecordAlert appends an alert_history row for a delivered dry-parcel alert.
func (s *Store) RecordAlert(ctx context.Context, userID, parcelID int64, humidity float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agroirrigate.alert_history (user_id, parcel_id, humidity_level, sent_at) VALUES ($1, $2, $3, $4)`,
		userID, parcelID, humidity, s.wall(s.now()))
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}
