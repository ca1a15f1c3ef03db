package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

func TestScheduleHandler_Create(t *testing.T) {
	tests := []struct {
		name   string
		body   jsonObj
		status int
	}{
		{name: "short clock", body: jsonObj{"fecha": "2026-10-14", "horaInicio": "08:00", "horaFin": "08:05", "parcela": "Parcela #1"}, status: http.StatusCreated},
		{name: "end before start", body: jsonObj{"fecha": "2026-10-14", "horaInicio": "09:00", "horaFin": "08:05", "parcela": "Parcela #1"}, status: http.StatusBadRequest},
		{name: "equal bounds", body: jsonObj{"fecha": "2026-10-14", "horaInicio": "08:00:00", "horaFin": "08:00", "parcela": "Parcela #1"}, status: http.StatusBadRequest},
		{name: "bad date", body: jsonObj{"fecha": "14/10/2026", "horaInicio": "08:00", "horaFin": "08:05", "parcela": "Parcela #1"}, status: http.StatusBadRequest},
		{name: "missing parcel", body: jsonObj{"fecha": "2026-10-14", "horaInicio": "08:00", "horaFin": "08:05"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memSchedules{}
			h := NewScheduleHandler(store, newFakeWaterer(), testZone, nil)

			rec := do(t, http.MethodPost, "/api/riego/programar", "/api/riego/programar", tt.body, 0, h.Create)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusCreated {
				var sc models.IrrigationSchedule
				decode(t, rec, &sc)
				assert.Equal(t, "08:00:00", sc.StartTime)
				assert.Equal(t, "08:05:00", sc.EndTime)
				assert.Len(t, store.saved, 1)
			}
		})
	}
}

func TestScheduleHandler_ListDefaultsToToday(t *testing.T) {
	store := &memSchedules{}
	h := NewScheduleHandler(store, newFakeWaterer(), testZone, nil)
	// 03:00 UTC on the 15th is still the 14th in the service zone
	h.now = func() time.Time { return time.Date(2026, time.October, 15, 3, 0, 0, 0, time.UTC) }

	rec := do(t, http.MethodGet, "/api/riego", "/api/riego", nil, 0, h.List)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-10-14", store.from.Format(models.DateLayout))
	assert.Equal(t, store.from, store.to)

	rec = do(t, http.MethodGet, "/api/riego", "/api/riego?fecha=2026-11-02", nil, 0, h.List)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-11-02", store.from.Format(models.DateLayout))

	rec = do(t, http.MethodGet, "/api/riego", "/api/riego?fecha=tomorrow", nil, 0, h.List)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleHandler_DeleteCancelsRun(t *testing.T) {
	store := &memSchedules{saved: []models.IrrigationSchedule{{ID: 1}}}
	w := newFakeWaterer()
	h := NewScheduleHandler(store, w, testZone, nil)

	rec := do(t, http.MethodDelete, "/api/riego/:id", "/api/riego/1", nil, 0, h.Delete)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1}, store.deleted)
	assert.Equal(t, []int64{1}, w.cancelledSchedules)

	rec = do(t, http.MethodDelete, "/api/riego/:id", "/api/riego/9", nil, 0, h.Delete)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
