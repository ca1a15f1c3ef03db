package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/irrigation"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

const helpText = "Comandos disponibles:\n" +
	"/estado <parcela> - humedad actual\n" +
	"/regar <parcela> - iniciar un riego manual\n" +
	"/agua - consumo de agua de hoy\n" +
	"/ayuda - esta ayuda"

// ParcelLookup resolves parcels by name.
type ParcelLookup interface {
	GetParcelByName(ctx context.Context, name string) (models.Parcel, error)
}

// Waterer starts and inspects simulated watering runs.
type Waterer interface {
	Start(ctx context.Context, req irrigation.WateringRequest) (irrigation.Run, error)
	Status(parcelID int64) (irrigation.Run, bool)
}

// UsageReporter renders the water usage summary for today.
type UsageReporter interface {
	TodaySummary(ctx context.Context) (string, error)
}

// Dispatcher executes parsed chat commands.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	parcels  ParcelLookup
	waterer  Waterer
	usage    UsageReporter
	sessions *SessionManager
	logger   *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(parcels ParcelLookup, waterer Waterer, usage UsageReporter, sessions *SessionManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewSessionManager()
	}
	return &Service{
		parcels:  parcels,
		waterer:  waterer,
		usage:    usage,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleCommand runs the command and returns the reply text.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Any("args", cmd.Args))

	switch cmd.Type {
	case models.CommandStatus:
		parcel, reply, err := s.resolveParcel(ctx, cmd, sender)
		if reply != "" || err != nil {
			return reply, err
		}
		return s.statusReply(parcel), nil
	case models.CommandWater:
		parcel, reply, err := s.resolveParcel(ctx, cmd, sender)
		if reply != "" || err != nil {
			return reply, err
		}
		return s.water(ctx, parcel)
	case models.CommandUsage:
		summary, err := s.usage.TodaySummary(ctx)
		if err != nil {
			return "", fmt.Errorf("usage summary: %w", err)
		}
		return summary, nil
	case models.CommandHelp:
		return helpText, nil
	default:
		return "Comando no reconocido.\n" + helpText, nil
	}
}

// resolveParcel returns either the parcel or a reply explaining why it could not be found.
func (s *Service) resolveParcel(ctx context.Context, cmd models.Command, sender string) (models.Parcel, string, error) {
	name := cmd.Target()
	if name == "" {
		last, ok := s.sessions.LastParcel(sender)
		if !ok {
			return models.Parcel{}, "", ErrInvalidArguments
		}
		name = last
	}

	parcel, err := s.parcels.GetParcelByName(ctx, name)
	if errors.Is(err, models.ErrParcelNotFound) {
		if cmd.Target() == "" {
			s.sessions.Clear(sender)
		}
		return models.Parcel{}, fmt.Sprintf("No encontré la parcela %q.", name), nil
	}
	if err != nil {
		return models.Parcel{}, "", fmt.Errorf("lookup parcel: %w", err)
	}

	s.sessions.Remember(sender, parcel.Name)
	return parcel, "", nil
}

func (s *Service) statusReply(parcel models.Parcel) string {
	state := "hidratada"
	if parcel.Dehydrated() {
		state = "deshidratada"
	}
	reply := fmt.Sprintf("%s: humedad %.0f%% (%s).", parcel.Name, parcel.Humidity, state)
	if run, ok := s.waterer.Status(parcel.ID); ok {
		reply += fmt.Sprintf(" Regando hasta las %s.", run.EndsAt.Format("15:04:05"))
	}
	return reply
}

func (s *Service) water(ctx context.Context, parcel models.Parcel) (string, error) {
	sizing := irrigation.Estimate(parcel.Humidity)

	run, err := s.waterer.Start(ctx, irrigation.WateringRequest{Parcel: parcel, Liters: sizing.Liters})
	if errors.Is(err, irrigation.ErrAlreadyWatering) {
		return fmt.Sprintf("%s ya se está regando.", parcel.Name), nil
	}
	if err != nil {
		return "", fmt.Errorf("start watering: %w", err)
	}

	return fmt.Sprintf("Riego iniciado en %s: %.2f L durante %s.",
		parcel.Name, run.Liters, run.EndsAt.Sub(run.StartedAt).Round(time.Second)), nil
}
