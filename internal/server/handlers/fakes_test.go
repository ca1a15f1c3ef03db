package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/irrigation"
	"github.com/mamadbah2/agroirrigate/internal/service/alerts"
	"github.com/mamadbah2/agroirrigate/internal/service/reporting"
)

var testZone = time.FixedZone("CST", -6*60*60)

type jsonObj = map[string]any

func init() {
	gin.SetMode(gin.TestMode)
}

// do runs a request against a single route. A positive userID is set on the context as the router would.
func do(t *testing.T, method, route, target string, body any, userID int64, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if userID > 0 {
			c.Set(UserIDKey, userID)
		}
		h(c)
	})

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type memParcelStore struct {
	parcels map[int64]models.Parcel
	nextID  int64
	err     error
}

func newMemParcelStore(parcels ...models.Parcel) *memParcelStore {
	m := &memParcelStore{parcels: map[int64]models.Parcel{}, nextID: 100}
	for _, p := range parcels {
		m.parcels[p.ID] = p
	}
	return m
}

func (m *memParcelStore) ListParcels(context.Context) ([]models.Parcel, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []models.Parcel{}
	for _, p := range m.parcels {
		out = append(out, p)
	}
	return out, nil
}

func (m *memParcelStore) CreateParcel(_ context.Context, p models.Parcel) (models.Parcel, error) {
	if m.err != nil {
		return models.Parcel{}, m.err
	}
	m.nextID++
	p.ID = m.nextID
	m.parcels[p.ID] = p
	return p, nil
}

func (m *memParcelStore) GetParcel(_ context.Context, id int64) (models.Parcel, error) {
	p, ok := m.parcels[id]
	if !ok {
		return models.Parcel{}, models.ErrParcelNotFound
	}
	return p, nil
}

func (m *memParcelStore) SetParcelHumidity(_ context.Context, id int64, humidity float64) error {
	p, ok := m.parcels[id]
	if !ok {
		return models.ErrParcelNotFound
	}
	p.Humidity = humidity
	m.parcels[id] = p
	return nil
}

func (m *memParcelStore) DeleteParcel(_ context.Context, id int64) error {
	if _, ok := m.parcels[id]; !ok {
		return models.ErrParcelNotFound
	}
	delete(m.parcels, id)
	return nil
}

type fakeWaterer struct {
	active             map[int64]irrigation.Run
	startErr           error
	started            []irrigation.WateringRequest
	cancelledParcels   []int64
	cancelledSchedules []int64
}

func newFakeWaterer() *fakeWaterer {
	return &fakeWaterer{active: map[int64]irrigation.Run{}}
}

func (f *fakeWaterer) Start(_ context.Context, req irrigation.WateringRequest) (irrigation.Run, error) {
	if f.startErr != nil {
		return irrigation.Run{}, f.startErr
	}
	if _, busy := f.active[req.Parcel.ID]; busy {
		return irrigation.Run{}, irrigation.ErrAlreadyWatering
	}
	f.started = append(f.started, req)
	run := irrigation.Run{ParcelID: req.Parcel.ID, ParcelName: req.Parcel.Name, Liters: req.Liters}
	f.active[req.Parcel.ID] = run
	return run, nil
}

func (f *fakeWaterer) Status(parcelID int64) (irrigation.Run, bool) {
	run, ok := f.active[parcelID]
	return run, ok
}

func (f *fakeWaterer) Cancel(parcelID int64) bool {
	f.cancelledParcels = append(f.cancelledParcels, parcelID)
	_, ok := f.active[parcelID]
	delete(f.active, parcelID)
	return ok
}

func (f *fakeWaterer) CancelSchedule(scheduleID int64) bool {
	f.cancelledSchedules = append(f.cancelledSchedules, scheduleID)
	return len(f.active) > 0
}

type memReadings struct {
	saved    []models.HumidityReading
	parcelID *int64
	limit    int
}

func (m *memReadings) InsertReading(_ context.Context, r models.HumidityReading) (models.HumidityReading, error) {
	r.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, r)
	return r, nil
}

func (m *memReadings) ListReadings(_ context.Context, parcelID *int64, limit int) ([]models.HumidityReading, error) {
	m.parcelID, m.limit = parcelID, limit
	return m.saved, nil
}

type memSchedules struct {
	saved    []models.IrrigationSchedule
	from, to time.Time
	deleted  []int64
}

func (m *memSchedules) CreateSchedule(_ context.Context, sc models.IrrigationSchedule) (models.IrrigationSchedule, error) {
	sc.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, sc)
	return sc, nil
}

func (m *memSchedules) ListSchedules(_ context.Context, from, to time.Time) ([]models.IrrigationSchedule, error) {
	m.from, m.to = from, to
	return m.saved, nil
}

func (m *memSchedules) DeleteSchedule(_ context.Context, id int64) error {
	if id > int64(len(m.saved)) {
		return models.ErrScheduleNotFound
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type memUsage struct {
	recorded []models.WaterUsageRecord
	records  []models.WaterUsageRecord
	filter   models.UsageFilter
	by       reporting.GroupBy
	err      error
}

func (m *memUsage) RecordUsage(_ context.Context, r models.WaterUsageRecord) (models.WaterUsageRecord, error) {
	r.ID = int64(len(m.recorded) + 1)
	m.recorded = append(m.recorded, r)
	return r, nil
}

func (m *memUsage) Records(_ context.Context, filter models.UsageFilter) ([]models.WaterUsageRecord, error) {
	m.filter = filter
	return m.records, m.err
}

func (m *memUsage) Summary(_ context.Context, filter models.UsageFilter, by reporting.GroupBy) ([]models.UsageSummary, error) {
	m.filter, m.by = filter, by
	return reporting.Summarize(m.records, by, testZone), m.err
}

func (m *memUsage) ExportXLSX(_ context.Context, filter models.UsageFilter, w io.Writer) error {
	m.filter = filter
	if m.err != nil {
		return m.err
	}
	_, err := w.Write([]byte("PK-fake-xlsx"))
	return err
}

type memReports map[string]models.DailyUsageReport

func (m memReports) FindDailyReport(_ context.Context, date string) (models.DailyUsageReport, error) {
	r, ok := m[date]
	if !ok {
		return models.DailyUsageReport{}, models.ErrReportNotFound
	}
	return r, nil
}

type stubAlerts struct {
	result  alerts.CheckResult
	parcel  models.Parcel
	err     error
	message string
}

func (s *stubAlerts) Check(context.Context) (alerts.CheckResult, error) {
	return s.result, s.err
}

func (s *stubAlerts) SendParcelAlert(_ context.Context, _ int64, message string) (models.Parcel, error) {
	s.message = message
	return s.parcel, s.err
}

type memContacts struct {
	contacts map[int64]models.Contact
}

func (m *memContacts) GetContact(_ context.Context, id int64) (models.Contact, error) {
	c, ok := m.contacts[id]
	if !ok {
		return models.Contact{}, models.ErrUserNotFound
	}
	return c, nil
}

func (m *memContacts) UpdateEmail(_ context.Context, id int64, email string) error {
	c, ok := m.contacts[id]
	if !ok {
		return models.ErrUserNotFound
	}
	c.Email = email
	m.contacts[id] = c
	return nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

