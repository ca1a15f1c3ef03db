package irrigation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

var testZone = time.FixedZone("CST", -6*60*60)

func at(hour, minute, second int) time.Time {
	return time.Date(2026, time.October, 14, hour, minute, second, 0, testZone)
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Set moves the clock to now and runs every timer that became due, in deadline order,
// with the clock reading each timer's deadline while its callback runs.
func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		c.mu.Lock()
		c.now = t.at
		c.mu.Unlock()
		t.f()
	}

	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type memParcels struct {
	mu      sync.Mutex
	parcels map[int64]models.Parcel
	// getErrs are returned by successive GetParcel calls before the map is consulted.
	getErrs []error
	gets    int
}

func newMemParcels(parcels ...models.Parcel) *memParcels {
	m := &memParcels{parcels: make(map[int64]models.Parcel)}
	for _, p := range parcels {
		m.parcels[p.ID] = p
	}
	return m
}

func (m *memParcels) GetParcel(_ context.Context, id int64) (models.Parcel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if len(m.getErrs) > 0 {
		err := m.getErrs[0]
		m.getErrs = m.getErrs[1:]
		return models.Parcel{}, err
	}
	p, ok := m.parcels[id]
	if !ok {
		return models.Parcel{}, models.ErrParcelNotFound
	}
	return p, nil
}

func (m *memParcels) GetParcelByName(_ context.Context, name string) (models.Parcel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.parcels {
		if p.Name == name {
			return p, nil
		}
	}
	return models.Parcel{}, models.ErrParcelNotFound
}

func (m *memParcels) SetParcelHumidity(_ context.Context, id int64, humidity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parcels[id]
	if !ok {
		return models.ErrParcelNotFound
	}
	p.Humidity = humidity
	m.parcels[id] = p
	return nil
}

func (m *memParcels) delete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parcels, id)
}

func (m *memParcels) failGets(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErrs = append(m.getErrs, errs...)
}

func (m *memParcels) humidity(id int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parcels[id].Humidity
}

type memUsage struct {
	mu      sync.Mutex
	records []models.WaterUsageRecord
}

func (m *memUsage) RecordUsage(_ context.Context, record models.WaterUsageRecord) (models.WaterUsageRecord, error) {
	if record.Liters <= 0 {
		return record, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return record, nil
}

func (m *memUsage) all() []models.WaterUsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WaterUsageRecord(nil), m.records...)
}

type stubSchedules struct {
	mu        sync.Mutex
	schedules []models.IrrigationSchedule
	err       error
	calls     int
	from, to  time.Time

	entered chan struct{}
	release chan struct{}
}

func (s *stubSchedules) ListSchedules(_ context.Context, from, to time.Time) ([]models.IrrigationSchedule, error) {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.from, s.to = from, to
	if s.err != nil {
		return nil, s.err
	}
	return s.schedules, nil
}

type sentNotification struct {
	userID int64
	models.Notification
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (r *recordingNotifier) NotifyUser(_ context.Context, userID int64, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID: userID, Notification: n})
	return r.err
}

func (r *recordingNotifier) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	subjects := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		subjects = append(subjects, n.Subject)
	}
	return subjects
}

type recordingEvents struct {
	mu     sync.Mutex
	states []models.WateringState
}

func (r *recordingEvents) PublishWatering(_ context.Context, event models.WateringEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, event.State)
	return nil
}
