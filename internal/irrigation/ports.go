package irrigation

import (
	"context"
	"time"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// ScheduleStore lists persisted schedules whose date falls in [from, to], compared by calendar day.
// It returns an empty slice, not an error, when nothing matches.
type ScheduleStore interface {
	ListSchedules(ctx context.Context, from, to time.Time) ([]models.IrrigationSchedule, error)
}

// ParcelStore resolves parcels and updates their humidity.
// Lookups return models.ErrParcelNotFound for unknown parcels.
type ParcelStore interface {
	GetParcel(ctx context.Context, id int64) (models.Parcel, error)
	GetParcelByName(ctx context.Context, name string) (models.Parcel, error)
	SetParcelHumidity(ctx context.Context, id int64, humidity float64) error
}

// UsageRecorder appends water usage records. Records with liters <= 0 are accepted as no-ops.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, record models.WaterUsageRecord) (models.WaterUsageRecord, error)
}

// Notifier delivers user-facing messages. Delivery is best effort.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, n models.Notification) error
}

// EventPublisher broadcasts simulated valve transitions.
type EventPublisher interface {
	PublishWatering(ctx context.Context, event models.WateringEvent) error
}
