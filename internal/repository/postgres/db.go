package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/config"
)

const connectRetries = 5

// Open connects to Postgres, sizes the pool and waits for the server to answer a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectRetries), ctx), func(err error, next time.Duration) {
		logger.Warn("database not reachable yet", zap.Error(err), zap.Duration("retry_in", next))
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS agroirrigate;

CREATE TABLE IF NOT EXISTS agroirrigate.usuarios (
	id SERIAL PRIMARY KEY,
	nombre_usuario VARCHAR(255) NOT NULL,
	correo VARCHAR(255),
	telefono VARCHAR(50)
);

CREATE TABLE IF NOT EXISTS agroirrigate.parcels (
	id SERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	user_id INTEGER NOT NULL,
	humidity NUMERIC(5,2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agroirrigate.programacionriego (
	id SERIAL PRIMARY KEY,
	fecha DATE NOT NULL,
	hora_inicio TIME NOT NULL,
	hora_fin TIME NOT NULL,
	parcela VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS agroirrigate.uso_agua (
	id SERIAL PRIMARY KEY,
	parcela_id INTEGER NOT NULL,
	parcela_nombre VARCHAR(255) NOT NULL,
	litros NUMERIC(10,2) NOT NULL,
	fecha TIMESTAMP WITHOUT TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS agroirrigate.lecturashumedad (
	id SERIAL PRIMARY KEY,
	lectura INTEGER NOT NULL,
	fecha TIMESTAMP WITHOUT TIME ZONE NOT NULL,
	ubicacion VARCHAR(100) NOT NULL,
	parcela_id INTEGER
);

CREATE TABLE IF NOT EXISTS agroirrigate.alert_history (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL,
	parcel_id INTEGER NOT NULL,
	sent_at TIMESTAMP NOT NULL,
	humidity_level NUMERIC(5,2) NOT NULL
);
`

// Store is the relational repository for parcels, schedules, readings, usage, users and alert history.
// Timestamps are stored as wall-clock values in the service zone.
type Store struct {
	db     *sql.DB
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, loc *time.Location, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, loc: loc, now: time.Now, logger: logger}
}

// EnsureSchema creates the schema and tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// wall strips the zone so the value is written as local wall time.
func (s *Store) wall(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// local reinterprets a TIMESTAMP WITHOUT TIME ZONE value in the service zone.
func (s *Store) local(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.loc)
}
