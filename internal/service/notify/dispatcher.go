package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/metrics"
)

// ErrNoChannel is returned when none of the enabled channels can reach the user.
var ErrNoChannel = errors.New("no notification channel can reach the user")

const (
	resultOK     = "ok"
	resultFailed = "failed"
	resultOpen   = "open"

	breakerFailures = 3
	breakerTimeout  = time.Minute
	breakerInterval = 5 * time.Minute
)

// Channel is one delivery route such as email or SMS.
type Channel interface {
	Name() string
	Reachable(to models.Contact) bool
	Send(ctx context.Context, to models.Contact, n models.Notification) error
}

// ContactStore resolves user contact data.
type ContactStore interface {
	GetContact(ctx context.Context, userID int64) (models.Contact, error)
}

type guardedChannel struct {
	Channel
	breaker *gobreaker.CircuitBreaker
}

// Dispatcher fans a notification out to every channel that can reach the user.
type Dispatcher struct {
	contacts ContactStore
	channels []guardedChannel
	logger   *zap.Logger
}

// NewDispatcher wires the dispatcher. Each channel gets its own circuit breaker.
func NewDispatcher(contacts ContactStore, logger *zap.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{contacts: contacts, logger: logger}
	for _, ch := range channels {
		name := ch.Name()
		d.channels = append(d.channels, guardedChannel{
			Channel: ch,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:     name,
				Interval: breakerInterval,
				Timeout:  breakerTimeout,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= breakerFailures
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					logger.Warn("notification channel breaker changed state",
						zap.String("channel", name), zap.String("from", from.String()), zap.String("to", to.String()))
				},
			}),
		})
	}
	return d
}

// Channels lists the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// NotifyUser looks up the user's contact data and delivers n.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID int64, n models.Notification) error {
	contact, err := d.contacts.GetContact(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve contact for user %d: %w", userID, err)
	}
	return d.NotifyContact(ctx, contact, n)
}

// NotifyContact delivers n through every reachable channel. It succeeds when at least one delivered.
func (d *Dispatcher) NotifyContact(ctx context.Context, contact models.Contact, n models.Notification) error {
	var (
		attempted int
		delivered int
		errs      []error
	)

	for _, ch := range d.channels {
		if !ch.Reachable(contact) {
			continue
		}
		attempted++

		_, err := ch.breaker.Execute(func() (interface{}, error) {
			return nil, ch.Send(ctx, contact, n)
		})

		switch {
		case err == nil:
			delivered++
			metrics.Notifications.WithLabelValues(ch.Name(), resultOK).Inc()
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.Notifications.WithLabelValues(ch.Name(), resultOpen).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		default:
			metrics.Notifications.WithLabelValues(ch.Name(), resultFailed).Inc()
			d.logger.Warn("notification channel failed",
				zap.String("channel", ch.Name()), zap.Int64("user_id", contact.UserID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}

	if attempted == 0 {
		return ErrNoChannel
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}

	d.logger.Info("notification delivered",
		zap.Int64("user_id", contact.UserID),
		zap.String("subject", n.Subject),
		zap.Int("channels", delivered))
	return nil
}
