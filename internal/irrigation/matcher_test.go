package irrigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

type matcherFixture struct {
	clock     *fakeClock
	parcels   *memParcels
	usage     *memUsage
	schedules *stubSchedules
	notifier  *recordingNotifier
	executor  *Executor
	matcher   *Matcher
}

func newMatcherFixture(t *testing.T, now time.Time, schedules []models.IrrigationSchedule, parcels ...models.Parcel) *matcherFixture {
	t.Helper()
	f := &matcherFixture{
		clock:     newFakeClock(now),
		parcels:   newMemParcels(parcels...),
		usage:     &memUsage{},
		schedules: &stubSchedules{schedules: schedules},
		notifier:  &recordingNotifier{},
	}
	f.executor = NewExecutor(f.parcels, f.usage, nil, f.clock, zap.NewNop())
	f.matcher = NewMatcher(MatcherConfig{Location: testZone}, f.schedules, f.parcels, f.executor, f.notifier, zap.NewNop())
	return f
}

func (f *matcherFixture) poll(now time.Time) PollResult {
	f.clock.Set(now)
	return f.matcher.PollOnce(context.Background(), now)
}

func morningSchedule() models.IrrigationSchedule {
	return models.IrrigationSchedule{ID: 1, Date: "2026-10-14", StartTime: "08:00:00", EndTime: "08:05:00", ParcelName: "Parcela #1"}
}

func dryParcel() models.Parcel {
	return models.Parcel{ID: 10, Name: "Parcela #1", UserID: 7, Humidity: 30}
}

func TestMatcher_EndToEndScheduledRun(t *testing.T) {
	f := newMatcherFixture(t, at(8, 0, 5), []models.IrrigationSchedule{morningSchedule()}, dryParcel())

	result := f.poll(at(8, 0, 5))
	assert.Equal(t, []int64{1}, result.Started)
	assert.Empty(t, result.Ended)

	run, ok := f.executor.Status(10)
	require.True(t, ok)
	assert.Equal(t, 20.0, run.Liters)
	assert.Equal(t, at(8, 5, 0), run.EndsAt, "declared end time wins over the heuristic duration")
	assert.Empty(t, f.usage.all(), "usage is written on completion only")

	result = f.poll(at(8, 5, 2))
	assert.Empty(t, result.Started)
	assert.Equal(t, []int64{1}, result.Ended)

	assert.Equal(t, 70.0, f.parcels.humidity(10))
	records := f.usage.all()
	require.Len(t, records, 1)
	assert.Equal(t, 20.0, records[0].Liters)
	assert.Equal(t, int64(10), records[0].ParcelID)
	assert.Equal(t, "Parcela #1", records[0].ParcelName)
	assert.Equal(t, at(8, 5, 0), records[0].Timestamp)

	f.poll(at(8, 5, 12))
	assert.Len(t, f.usage.all(), 1)
	assert.Equal(t, []string{"Riego programado iniciado", "Riego programado finalizado"}, f.notifier.subjects())
	assert.Equal(t, int64(7), f.notifier.sent[0].userID)
}

func TestMatcher_StartFiresOnceForRepeatedPolls(t *testing.T) {
	f := newMatcherFixture(t, at(8, 0, 0), []models.IrrigationSchedule{morningSchedule()}, dryParcel())

	first := f.matcher.PollOnce(context.Background(), at(8, 0, 0))
	second := f.matcher.PollOnce(context.Background(), at(8, 0, 0))
	third := f.matcher.PollOnce(context.Background(), at(8, 0, 10))

	assert.Equal(t, []int64{1}, first.Started)
	assert.Empty(t, second.Started)
	assert.Empty(t, third.Started)

	started, _ := f.matcher.Triggered()
	assert.Equal(t, 1, started)
	assert.Len(t, f.notifier.sent, 1)
}

func TestMatcher_StartWindowBoundaries(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "one second early", now: at(7, 59, 59), want: false},
		{name: "exactly at start", now: at(8, 0, 0), want: true},
		{name: "inside window", now: at(8, 0, 14), want: true},
		{name: "window closed", now: at(8, 0, 15), want: false},
		{name: "long missed", now: at(8, 3, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMatcherFixture(t, tt.now, []models.IrrigationSchedule{morningSchedule()}, dryParcel())
			result := f.matcher.PollOnce(context.Background(), tt.now)
			assert.Equal(t, tt.want, len(result.Started) == 1)
			_, watering := f.executor.Status(10)
			assert.Equal(t, tt.want, watering)
		})
	}
}

func TestMatcher_EndNotificationFiresOnce(t *testing.T) {
	f := newMatcherFixture(t, at(8, 5, 1), []models.IrrigationSchedule{morningSchedule()}, dryParcel())

	assert.Empty(t, f.matcher.PollOnce(context.Background(), at(8, 5, 0)).Ended, "end edge needs now strictly after end")
	assert.Equal(t, []int64{1}, f.matcher.PollOnce(context.Background(), at(8, 5, 1)).Ended)
	assert.Empty(t, f.matcher.PollOnce(context.Background(), at(8, 5, 11)).Ended)
	assert.Empty(t, f.matcher.PollOnce(context.Background(), at(8, 5, 40)).Ended)

	assert.Equal(t, []string{"Riego programado finalizado"}, f.notifier.subjects())
}

func TestMatcher_ZeroLitersNoUsageRecord(t *testing.T) {
	wet := models.Parcel{ID: 10, Name: "Parcela #1", UserID: 7, Humidity: 75}
	f := newMatcherFixture(t, at(8, 0, 5), []models.IrrigationSchedule{morningSchedule()}, wet)

	result := f.poll(at(8, 0, 5))
	require.Equal(t, []int64{1}, result.Started)

	f.poll(at(8, 5, 2))
	assert.Empty(t, f.usage.all())
	assert.Equal(t, 75.0, f.parcels.humidity(10))
}

func TestMatcher_OverlappingPollsTriggerOnce(t *testing.T) {
	f := newMatcherFixture(t, at(8, 0, 5), []models.IrrigationSchedule{morningSchedule()}, dryParcel())
	f.schedules.entered = make(chan struct{}, 1)
	f.schedules.release = make(chan struct{})

	var (
		wg    sync.WaitGroup
		first PollResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = f.matcher.PollOnce(context.Background(), at(8, 0, 5))
	}()

	<-f.schedules.entered
	second := f.matcher.PollOnce(context.Background(), at(8, 0, 5))
	assert.True(t, second.Skipped)

	close(f.schedules.release)
	wg.Wait()
	assert.Equal(t, []int64{1}, first.Started)

	f.poll(at(8, 5, 2))
	assert.Len(t, f.usage.all(), 1)
}

func TestMatcher_UnknownParcelIsSkipped(t *testing.T) {
	schedules := []models.IrrigationSchedule{
		{ID: 1, Date: "2026-10-14", StartTime: "08:00:00", EndTime: "08:05:00", ParcelName: "Parcela fantasma"},
		morningSchedule(),
	}
	schedules[1].ID = 2
	f := newMatcherFixture(t, at(8, 0, 3), schedules, dryParcel())

	result := f.matcher.PollOnce(context.Background(), at(8, 0, 3))

	assert.NoError(t, result.Err)
	assert.Equal(t, []int64{2}, result.Started)
}

func TestMatcher_InvalidScheduleTimesAreSkipped(t *testing.T) {
	schedules := []models.IrrigationSchedule{
		{ID: 1, Date: "2026-10-14", StartTime: "late", EndTime: "08:05:00", ParcelName: "Parcela #1"},
	}
	f := newMatcherFixture(t, at(8, 0, 3), schedules, dryParcel())

	result := f.matcher.PollOnce(context.Background(), at(8, 0, 3))
	assert.NoError(t, result.Err)
	assert.Empty(t, result.Started)
}

func TestMatcher_StoreFailureSkipsTick(t *testing.T) {
	f := newMatcherFixture(t, at(8, 0, 3), nil, dryParcel())
	f.schedules.err = errors.New("connection refused")

	result := f.matcher.PollOnce(context.Background(), at(8, 0, 3))
	assert.Error(t, result.Err)
	assert.Empty(t, result.Started)

	f.schedules.err = nil
	f.schedules.schedules = []models.IrrigationSchedule{morningSchedule()}
	result = f.matcher.PollOnce(context.Background(), at(8, 0, 8))
	assert.NoError(t, result.Err)
	assert.Equal(t, []int64{1}, result.Started, "next tick retries naturally")
}

func TestMatcher_QueriesTodayInZone(t *testing.T) {
	f := newMatcherFixture(t, at(8, 0, 0), nil)

	f.matcher.PollOnce(context.Background(), at(8, 0, 0).UTC())

	assert.Equal(t, time.Date(2026, time.October, 14, 0, 0, 0, 0, testZone), f.schedules.from)
	assert.Equal(t, f.schedules.from, f.schedules.to)
}

func TestMatcher_AlreadyWateringCountsAsTriggered(t *testing.T) {
	f := newMatcherFixture(t, at(8, 0, 2), []models.IrrigationSchedule{morningSchedule()}, dryParcel())
	_, err := f.executor.Start(context.Background(), WateringRequest{Parcel: dryParcel(), Liters: 20})
	require.NoError(t, err)

	result := f.matcher.PollOnce(context.Background(), at(8, 0, 2))
	assert.Equal(t, []int64{1}, result.Started)
	assert.Empty(t, f.notifier.sent)

	result = f.matcher.PollOnce(context.Background(), at(8, 0, 12))
	assert.Empty(t, result.Started)

	result = f.matcher.PollOnce(context.Background(), at(8, 5, 10))
	assert.Empty(t, result.Ended)
	assert.Empty(t, f.notifier.subjects())
}

func TestMatcher_NotificationFailureDoesNotAbortTick(t *testing.T) {
	second := models.IrrigationSchedule{ID: 2, Date: "2026-10-14", StartTime: "08:00:00", EndTime: "08:10:00", ParcelName: "Parcela #2"}
	f := newMatcherFixture(t, at(8, 0, 1), []models.IrrigationSchedule{morningSchedule(), second},
		dryParcel(), models.Parcel{ID: 11, Name: "Parcela #2", UserID: 8, Humidity: 49})
	f.notifier.err = errors.New("smtp down")

	result := f.matcher.PollOnce(context.Background(), at(8, 0, 1))

	assert.ElementsMatch(t, []int64{1, 2}, result.Started)
}
