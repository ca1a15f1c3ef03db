package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/metrics"
)

// Store reads dry parcels and keeps the alert history.
type Store interface {
	ListDryParcels(ctx context.Context, threshold float64, cooldown time.Duration) ([]models.DryParcel, error)
	RecordAlert(ctx context.Context, userID, parcelID int64, humidity float64) error
	GetParcel(ctx context.Context, id int64) (models.Parcel, error)
}

// Gate claims an (owner, parcel) alert slot for the cool-down period.
type Gate interface {
	Acquire(ctx context.Context, userID, parcelID int64) (bool, error)
	Release(ctx context.Context, userID, parcelID int64) error
}

// Notifier delivers alerts to users.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, n models.Notification) error
	NotifyContact(ctx context.Context, contact models.Contact, n models.Notification) error
}

// Options tunes the monitor.
type Options struct {
	Threshold float64
	Cooldown  time.Duration
	// Gate is optional; without it the alert history alone enforces the cool-down.
	Gate Gate
}

// OwnerAlert describes the alert sent to one owner.
type OwnerAlert struct {
	UserID    int64    `json:"user_id"`
	Name      string   `json:"usuario"`
	Parcels   []string `json:"parcelas"`
	Delivered bool     `json:"enviado"`
	Error     string   `json:"error,omitempty"`
}

// CheckResult summarises a monitor pass.
type CheckResult struct {
	AlertsSent int          `json:"alertas_enviadas"`
	Alerts     []OwnerAlert `json:"alertas"`
}

// Monitor sends dry-parcel alerts, one grouped message per owner.
type Monitor struct {
	store    Store
	notifier Notifier
	gate     Gate
	opts     Options
	logger   *zap.Logger

	mu sync.Mutex
}

// NewMonitor wires the dry-parcel monitor.
func NewMonitor(store Store, notifier Notifier, opts Options, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{store: store, notifier: notifier, gate: opts.Gate, opts: opts, logger: logger}
}

type ownerGroup struct {
	contact models.Contact
	parcels []models.DryParcel
}

// Check alerts every owner with parcels below the threshold that were not alerted within the cool-down.
// Passes are serialised.
func (m *Monitor) Check(ctx context.Context) (CheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dry, err := m.store.ListDryParcels(ctx, m.opts.Threshold, m.opts.Cooldown)
	if err != nil {
		return CheckResult{}, fmt.Errorf("list dry parcels: %w", err)
	}

	var (
		order  []int64
		owners = make(map[int64]*ownerGroup)
	)
	for _, p := range dry {
		if !m.acquire(ctx, p) {
			continue
		}
		g, ok := owners[p.UserID]
		if !ok {
			g = &ownerGroup{contact: models.Contact{UserID: p.UserID, Name: p.OwnerName, Email: p.OwnerEmail, Phone: p.OwnerPhone}}
			owners[p.UserID] = g
			order = append(order, p.UserID)
		}
		g.parcels = append(g.parcels, p)
	}

	result := CheckResult{Alerts: []OwnerAlert{}}
	for _, userID := range order {
		g := owners[userID]
		alert := OwnerAlert{UserID: userID, Name: g.contact.Name}
		for _, p := range g.parcels {
			alert.Parcels = append(alert.Parcels, p.Name)
		}

		if err := m.notifier.NotifyContact(ctx, g.contact, dryParcelNotification(g.contact.Name, g.parcels)); err != nil {
			m.logger.Warn("failed to deliver dry parcel alert", zap.Int64("user_id", userID), zap.Error(err))
			alert.Error = err.Error()
			m.release(ctx, g.parcels)
			result.Alerts = append(result.Alerts, alert)
			continue
		}

		alert.Delivered = true
		result.AlertsSent++
		metrics.DryParcelAlerts.Inc()
		for _, p := range g.parcels {
			if err := m.store.RecordAlert(ctx, userID, p.ID, p.Humidity); err != nil {
				m.logger.Error("failed to record alert history", zap.Int64("parcel_id", p.ID), zap.Error(err))
			}
		}
		result.Alerts = append(result.Alerts, alert)
	}

	if result.AlertsSent > 0 {
		m.logger.Info("dry parcel alerts sent", zap.Int("owners", result.AlertsSent))
	} else {
		m.logger.Debug("no dry parcel alerts to send")
	}
	return result, nil
}

// acquire reports whether the parcel may be alerted now. A failing gate falls back to the alert history.
func (m *Monitor) acquire(ctx context.Context, p models.DryParcel) bool {
	if m.gate == nil {
		return true
	}
	ok, err := m.gate.Acquire(ctx, p.UserID, p.ID)
	if err != nil {
		m.logger.Warn("alert gate unavailable, relying on alert history", zap.Error(err))
		return true
	}
	return ok
}

func (m *Monitor) release(ctx context.Context, parcels []models.DryParcel) {
	if m.gate == nil {
		return
	}
	for _, p := range parcels {
		if err := m.gate.Release(ctx, p.UserID, p.ID); err != nil {
			m.logger.Warn("failed to release alert gate", zap.Int64("parcel_id", p.ID), zap.Error(err))
		}
	}
}

// SendParcelAlert sends a manual alert about one parcel to its owner. An empty message uses the dry-parcel text.
func (m *Monitor) SendParcelAlert(ctx context.Context, parcelID int64, message string) (models.Parcel, error) {
	parcel, err := m.store.GetParcel(ctx, parcelID)
	if err != nil {
		return models.Parcel{}, err
	}

	n := models.Notification{
		Subject: fmt.Sprintf("Alerta: %s", parcel.Name),
		Message: strings.TrimSpace(message),
	}
	if n.Message == "" {
		n = dryParcelNotification("", []models.DryParcel{{Parcel: parcel}})
	}

	if err := m.notifier.NotifyUser(ctx, parcel.UserID, n); err != nil {
		return parcel, fmt.Errorf("notify owner of parcel %d: %w", parcel.ID, err)
	}

	if err := m.store.RecordAlert(ctx, parcel.UserID, parcel.ID, parcel.Humidity); err != nil {
		m.logger.Error("failed to record alert history", zap.Int64("parcel_id", parcel.ID), zap.Error(err))
	}
	return parcel, nil
}

func dryParcelNotification(owner string, parcels []models.DryParcel) models.Notification {
	greeting := "Hola"
	if owner != "" {
		greeting = "Hola " + owner
	}

	if len(parcels) == 1 {
		p := parcels[0]
		return models.Notification{
			Subject: fmt.Sprintf("Alerta: %s necesita riego", p.Name),
			Message: fmt.Sprintf("%s, la parcela %s tiene una humedad de %.0f%% y necesita riego urgente.", greeting, p.Name, p.Humidity),
		}
	}

	lines := make([]string, 0, len(parcels))
	for _, p := range parcels {
		lines = append(lines, fmt.Sprintf("- %s: %.0f%%", p.Name, p.Humidity))
	}
	return models.Notification{
		Subject: fmt.Sprintf("Alerta: %d parcelas necesitan riego", len(parcels)),
		Message: fmt.Sprintf("%s, tienes %d parcelas muy secas que necesitan riego urgente:\n%s",
			greeting, len(parcels), strings.Join(lines, "\n")),
	}
}
