package consumption

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/metrics"
)

// Store persists usage records.
type Store interface {
	InsertUsage(ctx context.Context, record models.WaterUsageRecord) (models.WaterUsageRecord, error)
}

// Mirror receives a copy of every recorded usage.
type Mirror interface {
	AppendUsage(ctx context.Context, record models.WaterUsageRecord) error
}

// Service is the single write path into the water usage log.
type Service struct {
	store  Store
	mirror Mirror
	now    func() time.Time
	logger *zap.Logger
}

// NewService wires the usage recorder. mirror may be nil.
func NewService(store Store, mirror Mirror, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, mirror: mirror, now: time.Now, logger: logger}
}

// RecordUsage appends a usage record. Records with liters <= 0 are dropped without error,
// so the log only ever contains positive quantities.
func (s *Service) RecordUsage(ctx context.Context, record models.WaterUsageRecord) (models.WaterUsageRecord, error) {
	if record.Liters <= 0 || math.IsNaN(record.Liters) {
		s.logger.Debug("zero usage suppressed", zap.Int64("parcel_id", record.ParcelID))
		return record, nil
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.now()
	}

	saved, err := s.store.InsertUsage(ctx, record)
	if err != nil {
		return models.WaterUsageRecord{}, fmt.Errorf("record usage: %w", err)
	}

	metrics.WaterLiters.WithLabelValues(saved.ParcelName).Add(saved.Liters)
	s.logger.Info("water usage recorded",
		zap.Int64("id", saved.ID),
		zap.Int64("parcel_id", saved.ParcelID),
		zap.Float64("liters", saved.Liters))

	if s.mirror != nil {
		if err := s.mirror.AppendUsage(ctx, saved); err != nil {
			s.logger.Warn("failed to mirror usage to sheet", zap.Int64("id", saved.ID), zap.Error(err))
		}
	}

	return saved, nil
}
