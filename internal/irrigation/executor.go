package irrigation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/metrics"
)

// ErrAlreadyWatering is returned when a run is requested for a parcel that is already being watered.
var ErrAlreadyWatering = errors.New("parcel is already being watered")

const (
	completionTimeout = 30 * time.Second
	completionRetries = 4
)

// WateringRequest describes a run to start. A zero Duration falls back to the humidity heuristic.
type WateringRequest struct {
	Parcel     models.Parcel
	ScheduleID int64
	Liters     float64
	Duration   time.Duration
}

// Run is a snapshot of an in-flight watering run.
type Run struct {
	ParcelID   int64     `json:"parcel_id"`
	ParcelName string    `json:"parcel_name"`
	ScheduleID int64     `json:"schedule_id,omitempty"`
	Liters     float64   `json:"liters"`
	StartedAt  time.Time `json:"started_at"`
	EndsAt     time.Time `json:"ends_at"`
}

type activeRun struct {
	Run
	timer Timer
}

// Executor simulates watering as a timed Idle -> Watering -> Idle transition per parcel.
type Executor struct {
	parcels ParcelStore
	usage   UsageRecorder
	events  EventPublisher
	clock   Clock
	logger  *zap.Logger
	retry   func() backoff.BackOff

	mu     sync.Mutex
	active map[int64]*activeRun
}

// NewExecutor wires an executor. events may be nil.
func NewExecutor(parcels ParcelStore, usage UsageRecorder, events EventPublisher, clock Clock, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = NewClock(time.Local)
	}
	return &Executor{
		parcels: parcels,
		usage:   usage,
		events:  events,
		clock:   clock,
		logger:  logger,
		retry:   completionBackOff,
		active:  make(map[int64]*activeRun),
	}
}

func completionBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(bo, completionRetries)
}

// Start moves the parcel into the Watering state and schedules its completion.
func (e *Executor) Start(ctx context.Context, req WateringRequest) (Run, error) {
	duration := req.Duration
	if duration <= 0 {
		duration = EstimateDuration(req.Parcel.Humidity)
	}

	e.mu.Lock()
	if _, busy := e.active[req.Parcel.ID]; busy {
		e.mu.Unlock()
		return Run{}, ErrAlreadyWatering
	}

	now := e.clock.Now()
	ar := &activeRun{Run: Run{
		ParcelID:   req.Parcel.ID,
		ParcelName: req.Parcel.Name,
		ScheduleID: req.ScheduleID,
		Liters:     req.Liters,
		StartedAt:  now,
		EndsAt:     now.Add(duration),
	}}
	e.active[req.Parcel.ID] = ar
	ar.timer = e.clock.AfterFunc(duration, func() { e.complete(ar) })
	e.mu.Unlock()

	metrics.ActiveWaterings.Inc()
	e.logger.Info("watering started",
		zap.Int64("parcel_id", ar.ParcelID),
		zap.String("parcel", ar.ParcelName),
		zap.Int64("schedule_id", ar.ScheduleID),
		zap.Float64("liters", ar.Liters),
		zap.Duration("duration", duration))
	e.publish(ctx, ar.Run, models.WateringStarted)

	return ar.Run, nil
}

// Status returns the in-flight run for a parcel, if any.
func (e *Executor) Status(parcelID int64) (Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ar, ok := e.active[parcelID]
	if !ok {
		return Run{}, false
	}
	return ar.Run, true
}

// Active lists every in-flight run.
func (e *Executor) Active() []Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	runs := make([]Run, 0, len(e.active))
	for _, ar := range e.active {
		runs = append(runs, ar.Run)
	}
	return runs
}

// Cancel aborts the run of a parcel without writing a usage record.
func (e *Executor) Cancel(parcelID int64) bool {
	e.mu.Lock()
	ar, ok := e.active[parcelID]
	if ok {
		e.stopLocked(ar)
	}
	e.mu.Unlock()

	if ok {
		e.cancelled(ar)
	}
	return ok
}

// CancelSchedule aborts the run started by the given schedule, if it is still in flight.
func (e *Executor) CancelSchedule(scheduleID int64) bool {
	e.mu.Lock()
	var found *activeRun
	for _, ar := range e.active {
		if ar.ScheduleID == scheduleID {
			found = ar
			break
		}
	}
	if found != nil {
		e.stopLocked(found)
	}
	e.mu.Unlock()

	if found != nil {
		e.cancelled(found)
	}
	return found != nil
}

func (e *Executor) stopLocked(ar *activeRun) {
	ar.timer.Stop()
	delete(e.active, ar.ParcelID)
}

func (e *Executor) cancelled(ar *activeRun) {
	metrics.ActiveWaterings.Dec()
	e.logger.Info("watering cancelled", zap.Int64("parcel_id", ar.ParcelID), zap.Int64("schedule_id", ar.ScheduleID))
	e.publish(context.Background(), ar.Run, models.WateringCancelled)
}

func (e *Executor) complete(ar *activeRun) {
	e.mu.Lock()
	if current, ok := e.active[ar.ParcelID]; !ok || current != ar {
		e.mu.Unlock()
		return
	}
	delete(e.active, ar.ParcelID)
	e.mu.Unlock()
	metrics.ActiveWaterings.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	logger := e.logger.With(zap.Int64("parcel_id", ar.ParcelID), zap.Int64("schedule_id", ar.ScheduleID))

	parcel, err := e.loadParcel(ctx, ar.ParcelID, logger)
	if errors.Is(err, models.ErrParcelNotFound) {
		logger.Info("parcel removed during watering, dropping completion")
		return
	}

	humidity := parcel.Humidity
	if err != nil {
		// The run still happened; record it from the snapshot and leave humidity untouched.
		logger.Error("failed to load parcel on watering completion", zap.Error(err))
		parcel = models.Parcel{ID: ar.ParcelID, Name: ar.ParcelName}
	} else {
		humidity = WateredHumidity(parcel.Humidity)
		if err := e.parcels.SetParcelHumidity(ctx, parcel.ID, humidity); err != nil {
			logger.Error("failed to update parcel humidity", zap.Error(err))
		}
	}

	if ar.Liters > 0 {
		record := models.WaterUsageRecord{
			ParcelID:   parcel.ID,
			ParcelName: parcel.Name,
			Liters:     ar.Liters,
			Timestamp:  e.clock.Now(),
		}
		if _, err := e.usage.RecordUsage(ctx, record); err != nil {
			logger.Error("failed to record water usage", zap.Error(err))
		}
	}

	logger.Info("watering finished", zap.Float64("humidity", humidity), zap.Float64("liters", ar.Liters))
	e.publish(ctx, ar.Run, models.WateringFinished)
}

// loadParcel reads the parcel, retrying transient store errors. Not found is returned at once.
func (e *Executor) loadParcel(ctx context.Context, id int64, logger *zap.Logger) (models.Parcel, error) {
	var parcel models.Parcel
	err := backoff.RetryNotify(func() error {
		p, err := e.parcels.GetParcel(ctx, id)
		if errors.Is(err, models.ErrParcelNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		parcel = p
		return nil
	}, backoff.WithContext(e.retry(), ctx), func(err error, next time.Duration) {
		logger.Warn("parcel lookup failed, retrying", zap.Error(err), zap.Duration("retry_in", next))
	})
	return parcel, err
}

func (e *Executor) publish(ctx context.Context, run Run, state models.WateringState) {
	if e.events == nil {
		return
	}
	event := models.WateringEvent{
		ParcelID:   run.ParcelID,
		ParcelName: run.ParcelName,
		ScheduleID: run.ScheduleID,
		State:      state,
		Liters:     run.Liters,
		At:         e.clock.Now(),
	}
	if err := e.events.PublishWatering(ctx, event); err != nil {
		e.logger.Warn("failed to publish watering event", zap.String("state", string(state)), zap.Error(err))
	}
}
