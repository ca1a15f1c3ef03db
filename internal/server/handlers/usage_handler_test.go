package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/service/reporting"
)

func usageFixture() *memUsage {
	return &memUsage{records: []models.WaterUsageRecord{
		{ID: 1, ParcelID: 1, ParcelName: "Parcela #1", Liters: 25.5, Timestamp: time.Date(2026, time.October, 13, 8, 0, 0, 0, testZone)},
		{ID: 2, ParcelID: 1, ParcelName: "Parcela #1", Liters: 10, Timestamp: time.Date(2026, time.October, 14, 8, 0, 0, 0, testZone)},
		{ID: 3, ParcelID: 2, ParcelName: "Parcela #2", Liters: 4.5, Timestamp: time.Date(2026, time.October, 14, 9, 0, 0, 0, testZone)},
	}}
}

func TestUsageHandler_Create(t *testing.T) {
	tests := []struct {
		name   string
		body   jsonObj
		status int
	}{
		{name: "without date", body: jsonObj{"parcelaId": 1, "parcelaNombre": "Parcela #1", "litros": 12.5}, status: http.StatusCreated},
		{name: "with date", body: jsonObj{"parcelaId": 1, "parcelaNombre": "Parcela #1", "litros": 3, "fecha": "2026-10-14 07:00:00"}, status: http.StatusCreated},
		{name: "zero liters", body: jsonObj{"parcelaId": 1, "parcelaNombre": "Parcela #1", "litros": 0}, status: http.StatusBadRequest},
		{name: "negative liters", body: jsonObj{"parcelaId": 1, "parcelaNombre": "Parcela #1", "litros": -2}, status: http.StatusBadRequest},
		{name: "missing parcel", body: jsonObj{"litros": 2}, status: http.StatusBadRequest},
		{name: "bad date", body: jsonObj{"parcelaId": 1, "parcelaNombre": "Parcela #1", "litros": 3, "fecha": "nope"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := &memUsage{}
			h := NewUsageHandler(usage, usage, nil, testZone, nil)

			rec := do(t, http.MethodPost, "/api/agua", "/api/agua", tt.body, 0, h.Create)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusCreated {
				require.Len(t, usage.recorded, 1)
				assert.Equal(t, "Parcela #1", usage.recorded[0].ParcelName)
			} else {
				assert.Empty(t, usage.recorded)
			}
		})
	}
}

func TestUsageHandler_ListFilter(t *testing.T) {
	usage := usageFixture()
	h := NewUsageHandler(usage, usage, nil, testZone, nil)

	rec := do(t, http.MethodGet, "/api/agua", "/api/agua?fechaInicio=2026-10-13&fechaFin=2026-10-14", nil, 0, h.List)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.UsageFilter{From: "2026-10-13", To: "2026-10-14"}, usage.filter)

	var records []models.WaterUsageRecord
	decode(t, rec, &records)
	assert.Len(t, records, 3)

	rec = do(t, http.MethodGet, "/api/agua", "/api/agua?fechaInicio=13-10-2026", nil, 0, h.List)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, http.MethodGet, "/api/agua", "/api/agua?fechaInicio=2026-10-14&fechaFin=2026-10-13", nil, 0, h.List)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageHandler_Summary(t *testing.T) {
	usage := usageFixture()
	h := NewUsageHandler(usage, usage, nil, testZone, nil)

	rec := do(t, http.MethodGet, "/api/agua/resumen", "/api/agua/resumen?agrupar=parcela", nil, 0, h.Summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reporting.GroupByParcel, usage.by)

	var body struct {
		GroupBy string                `json:"agrupar"`
		Summary []models.UsageSummary `json:"resumen"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "parcela", body.GroupBy)
	require.Len(t, body.Summary, 2)
	assert.Equal(t, "Parcela #1", body.Summary[0].Key)
	assert.Equal(t, 35.5, body.Summary[0].TotalLiters)
	assert.Equal(t, 2, body.Summary[0].Count)

	rec = do(t, http.MethodGet, "/api/agua/resumen", "/api/agua/resumen", nil, 0, h.Summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reporting.GroupByDay, usage.by)

	rec = do(t, http.MethodGet, "/api/agua/resumen", "/api/agua/resumen?agrupar=semana", nil, 0, h.Summary)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageHandler_Export(t *testing.T) {
	usage := usageFixture()
	h := NewUsageHandler(usage, usage, nil, testZone, nil)

	rec := do(t, http.MethodGet, "/api/agua/export", "/api/agua/export?fechaInicio=2026-10-14", nil, 0, h.Export)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="uso_agua_2026-10-14.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK-fake-xlsx", rec.Body.String())

	usage.err = errors.New("db down")
	rec = do(t, http.MethodGet, "/api/agua/export", "/api/agua/export", nil, 0, h.Export)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestUsageHandler_Report(t *testing.T) {
	usage := &memUsage{}
	reports := memReports{"2026-10-14": {Date: "2026-10-14", TotalLiters: 14.5}}
	h := NewUsageHandler(usage, usage, reports, testZone, nil)
	require.True(t, h.HasReports())

	rec := do(t, http.MethodGet, "/api/agua/reportes/:fecha", "/api/agua/reportes/2026-10-14", nil, 0, h.Report)
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.DailyUsageReport
	decode(t, rec, &report)
	assert.Equal(t, 14.5, report.TotalLiters)

	rec = do(t, http.MethodGet, "/api/agua/reportes/:fecha", "/api/agua/reportes/2026-10-01", nil, 0, h.Report)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, http.MethodGet, "/api/agua/reportes/:fecha", "/api/agua/reportes/hoy", nil, 0, h.Report)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.False(t, NewUsageHandler(usage, usage, nil, testZone, nil).HasReports())
}
