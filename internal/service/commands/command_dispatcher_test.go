package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/irrigation"
)

type memParcels map[string]models.Parcel

func (m memParcels) GetParcelByName(_ context.Context, name string) (models.Parcel, error) {
	p, ok := m[name]
	if !ok {
		return models.Parcel{}, models.ErrParcelNotFound
	}
	return p, nil
}

type fakeWaterer struct {
	started []irrigation.WateringRequest
	active  map[int64]irrigation.Run
	err     error
}

func (f *fakeWaterer) Start(_ context.Context, req irrigation.WateringRequest) (irrigation.Run, error) {
	if f.err != nil {
		return irrigation.Run{}, f.err
	}
	f.started = append(f.started, req)
	start := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)
	return irrigation.Run{
		ParcelID: req.Parcel.ID, Liters: req.Liters,
		StartedAt: start, EndsAt: start.Add(irrigation.EstimateDuration(req.Parcel.Humidity)),
	}, nil
}

func (f *fakeWaterer) Status(parcelID int64) (irrigation.Run, bool) {
	r, ok := f.active[parcelID]
	return r, ok
}

type stubUsage struct {
	text string
	err  error
}

func (s stubUsage) TodaySummary(context.Context) (string, error) { return s.text, s.err }

func newTestService(w *fakeWaterer) *Service {
	parcels := memParcels{
		"Parcela #1": {ID: 1, Name: "Parcela #1", UserID: 1, Humidity: 19},
		"Parcela #2": {ID: 2, Name: "Parcela #2", UserID: 1, Humidity: 49},
	}
	return NewService(parcels, w, stubUsage{text: "Consumo de agua 2026-10-14: sin registros."}, nil, nil)
}

func TestHandleCommand_Status(t *testing.T) {
	svc := newTestService(&fakeWaterer{})

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/estado Parcela #1"), "502")
	require.NoError(t, err)
	assert.Equal(t, "Parcela #1: humedad 19% (deshidratada).", reply)

	reply, err = svc.HandleCommand(context.Background(), models.ParseCommand("/ESTADO Parcela #2"), "502")
	require.NoError(t, err)
	assert.Equal(t, "Parcela #2: humedad 49% (hidratada).", reply)
}

func TestHandleCommand_StatusWhileWatering(t *testing.T) {
	ends := time.Date(2026, time.October, 14, 8, 2, 30, 0, time.UTC)
	svc := newTestService(&fakeWaterer{active: map[int64]irrigation.Run{1: {ParcelID: 1, EndsAt: ends}}})

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/estado Parcela #1"), "502")

	require.NoError(t, err)
	assert.Contains(t, reply, "Regando hasta las 08:02:30")
}

func TestHandleCommand_UsesSessionParcel(t *testing.T) {
	w := &fakeWaterer{}
	svc := newTestService(w)

	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("/regar"), "502")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = svc.HandleCommand(context.Background(), models.ParseCommand("/estado Parcela #1"), "502")
	require.NoError(t, err)

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/regar"), "502")
	require.NoError(t, err)
	assert.Equal(t, "Riego iniciado en Parcela #1: 25.50 L durante 2m33s.", reply)
	require.Len(t, w.started, 1)
	assert.Equal(t, 25.5, w.started[0].Liters)
	assert.Zero(t, w.started[0].Duration, "manual runs use the heuristic duration")

	// sessions are per sender
	_, err = svc.HandleCommand(context.Background(), models.ParseCommand("/regar"), "other")
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestHandleCommand_ForgetsDeletedSessionParcel(t *testing.T) {
	parcels := memParcels{"Parcela #3": {ID: 3, Name: "Parcela #3", Humidity: 40}}
	svc := NewService(parcels, &fakeWaterer{}, stubUsage{}, nil, nil)

	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("/estado Parcela #3"), "502")
	require.NoError(t, err)
	delete(parcels, "Parcela #3")

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/estado"), "502")
	require.NoError(t, err)
	assert.Equal(t, `No encontré la parcela "Parcela #3".`, reply)

	_, err = svc.HandleCommand(context.Background(), models.ParseCommand("/estado"), "502")
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestHandleCommand_Water(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		text  string
		reply string
	}{
		{name: "unknown parcel", text: "/regar Parcela #9", reply: `No encontré la parcela "Parcela #9".`},
		{name: "already watering", err: irrigation.ErrAlreadyWatering, text: "/regar Parcela #1", reply: "Parcela #1 ya se está regando."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeWaterer{err: tt.err})

			reply, err := svc.HandleCommand(context.Background(), models.ParseCommand(tt.text), "502")

			require.NoError(t, err)
			assert.Equal(t, tt.reply, reply)
		})
	}

	svc := newTestService(&fakeWaterer{err: errors.New("boom")})
	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("/regar Parcela #1"), "502")
	assert.ErrorContains(t, err, "boom")
}

func TestHandleCommand_UsageAndHelp(t *testing.T) {
	svc := newTestService(&fakeWaterer{})

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("/agua"), "502")
	require.NoError(t, err)
	assert.Contains(t, reply, "sin registros")

	reply, err = svc.HandleCommand(context.Background(), models.ParseCommand("ayuda"), "502")
	require.NoError(t, err)
	assert.Equal(t, helpText, reply)

	reply, err = svc.HandleCommand(context.Background(), models.ParseCommand("hola"), "502")
	require.NoError(t, err)
	assert.Contains(t, reply, "Comando no reconocido")
}

func TestSessionManager(t *testing.T) {
	sm := NewSessionManager()
	_, ok := sm.LastParcel("a")
	assert.False(t, ok)

	sm.Remember("a", "Parcela #1")
	name, ok := sm.LastParcel("a")
	assert.True(t, ok)
	assert.Equal(t, "Parcela #1", name)

	sm.Clear("a")
	_, ok = sm.LastParcel("a")
	assert.False(t, ok)
}
