package irrigation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/metrics"
)

const (
	DefaultStartWindow = 15 * time.Second
	DefaultEndWindow   = 30 * time.Second

	notifyTimeout = 10 * time.Second
	clockFormat   = "15:04"
)

// Waterer starts simulated watering runs.
type Waterer interface {
	Start(ctx context.Context, req WateringRequest) (Run, error)
}

// MatcherConfig holds the zone and trigger windows used to match schedules.
type MatcherConfig struct {
	Location    *time.Location
	StartWindow time.Duration
	EndWindow   time.Duration
}

// PollResult summarises what a single tick did.
type PollResult struct {
	Skipped bool
	Err     error
	Started []int64
	Ended   []int64
}

// Matcher decides on each tick which of today's schedules are due to start or end.
type Matcher struct {
	schedules ScheduleStore
	parcels   ParcelStore
	waterer   Waterer
	notifier  Notifier
	logger    *zap.Logger

	loc         *time.Location
	startWindow time.Duration
	endWindow   time.Duration

	started *TriggeredSet
	ended   *TriggeredSet
	running atomic.Bool
}

// NewMatcher wires a matcher with empty triggered sets. notifier may be nil.
func NewMatcher(cfg MatcherConfig, schedules ScheduleStore, parcels ParcelStore, waterer Waterer, notifier Notifier, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.StartWindow <= 0 {
		cfg.StartWindow = DefaultStartWindow
	}
	if cfg.EndWindow <= 0 {
		cfg.EndWindow = DefaultEndWindow
	}
	return &Matcher{
		schedules:   schedules,
		parcels:     parcels,
		waterer:     waterer,
		notifier:    notifier,
		logger:      logger,
		loc:         cfg.Location,
		startWindow: cfg.StartWindow,
		endWindow:   cfg.EndWindow,
		started:     NewTriggeredSet(),
		ended:       NewTriggeredSet(),
	}
}

// PollOnce runs a single matching pass for now. Overlapping calls are skipped.
func (m *Matcher) PollOnce(ctx context.Context, now time.Time) PollResult {
	if !m.running.CompareAndSwap(false, true) {
		metrics.MatcherPolls.WithLabelValues(metrics.PollSkipped).Inc()
		m.logger.Debug("previous poll still running, skipping tick")
		return PollResult{Skipped: true}
	}
	defer m.running.Store(false)

	now = now.In(m.loc)
	day := StartOfDay(now)

	schedules, err := m.schedules.ListSchedules(ctx, day, day)
	if err != nil {
		metrics.MatcherPolls.WithLabelValues(metrics.PollFailed).Inc()
		m.logger.Error("failed to fetch schedules, skipping tick", zap.Error(err))
		return PollResult{Err: fmt.Errorf("list schedules: %w", err)}
	}

	var result PollResult
	for _, schedule := range schedules {
		logger := m.logger.With(zap.Int64("schedule_id", schedule.ID), zap.String("parcel", schedule.ParcelName))

		start, err := schedule.StartInstant(m.loc)
		if err != nil {
			logger.Warn("skip schedule with invalid start", zap.Error(err))
			continue
		}
		end, err := schedule.EndInstant(m.loc)
		if err != nil {
			logger.Warn("skip schedule with invalid end", zap.Error(err))
			continue
		}

		if since := now.Sub(start); since >= 0 && since < m.startWindow && !m.started.Contains(schedule.ID) {
			if m.fireStart(ctx, logger, schedule, now, end) && m.started.Mark(schedule.ID) {
				metrics.ScheduleTriggers.WithLabelValues("start").Inc()
				result.Started = append(result.Started, schedule.ID)
			}
		}

		if since := now.Sub(end); since > 0 && since < m.endWindow && !m.ended.Contains(schedule.ID) {
			if m.fireEnd(ctx, logger, schedule, end) && m.ended.Mark(schedule.ID) {
				metrics.ScheduleTriggers.WithLabelValues("end").Inc()
				result.Ended = append(result.Ended, schedule.ID)
			}
		}
	}

	metrics.MatcherPolls.WithLabelValues(metrics.PollOK).Inc()
	return result
}

// Triggered reports how many schedules fired their start and end edges.
func (m *Matcher) Triggered() (started, ended int) {
	return m.started.Len(), m.ended.Len()
}

// fireStart reports whether the start edge is settled and must not be retried.
func (m *Matcher) fireStart(ctx context.Context, logger *zap.Logger, schedule models.IrrigationSchedule, now, end time.Time) bool {
	parcel, ok := m.resolveParcel(ctx, logger, schedule)
	if !ok {
		return false
	}

	sizing := Estimate(parcel.Humidity)
	duration := sizing.Duration
	// the declared end time wins over the heuristic
	if declared := end.Sub(now); declared > 0 {
		duration = declared
	}

	_, err := m.waterer.Start(ctx, WateringRequest{
		Parcel:     parcel,
		ScheduleID: schedule.ID,
		Liters:     sizing.Liters,
		Duration:   duration,
	})
	if errors.Is(err, ErrAlreadyWatering) {
		logger.Info("parcel already watering, schedule start ignored")
		// no run was started for this schedule, so there is no end to report
		m.ended.Mark(schedule.ID)
		return true
	}
	if err != nil {
		logger.Error("failed to start scheduled watering", zap.Error(err))
		return false
	}

	m.notify(ctx, logger, parcel.UserID, models.Notification{
		Subject: "Riego programado iniciado",
		Message: fmt.Sprintf("El riego programado de %s comenzó a las %s y termina a las %s. Consumo estimado: %.2f L.",
			parcel.Name, now.Format(clockFormat), now.Add(duration).Format(clockFormat), sizing.Liters),
	})
	return true
}

func (m *Matcher) fireEnd(ctx context.Context, logger *zap.Logger, schedule models.IrrigationSchedule, end time.Time) bool {
	parcel, ok := m.resolveParcel(ctx, logger, schedule)
	if !ok {
		return false
	}

	m.notify(ctx, logger, parcel.UserID, models.Notification{
		Subject: "Riego programado finalizado",
		Message: fmt.Sprintf("El riego programado de %s finalizó a las %s.", parcel.Name, end.Format(clockFormat)),
	})
	return true
}

func (m *Matcher) resolveParcel(ctx context.Context, logger *zap.Logger, schedule models.IrrigationSchedule) (models.Parcel, bool) {
	parcel, err := m.parcels.GetParcelByName(ctx, schedule.ParcelName)
	if errors.Is(err, models.ErrParcelNotFound) {
		logger.Debug("schedule references unknown parcel")
		return models.Parcel{}, false
	}
	if err != nil {
		logger.Warn("failed to resolve schedule parcel", zap.Error(err))
		return models.Parcel{}, false
	}
	return parcel, true
}

func (m *Matcher) notify(ctx context.Context, logger *zap.Logger, userID int64, n models.Notification) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := m.notifier.NotifyUser(ctx, userID, n); err != nil {
		logger.Warn("failed to deliver schedule notification", zap.Int64("user_id", userID), zap.Error(err))
	}
}
