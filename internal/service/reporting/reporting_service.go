package reporting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// GroupBy selects how usage records are bucketed.
type GroupBy string

const (
	GroupByDay    GroupBy = "dia"
	GroupByParcel GroupBy = "parcela"
)

// ErrUnknownGrouping is returned for an unsupported GroupBy value.
var ErrUnknownGrouping = errors.New("grouping must be dia or parcela")

// ParseGroupBy maps a query value to a GroupBy. Empty means by day.
func ParseGroupBy(value string) (GroupBy, error) {
	switch GroupBy(strings.ToLower(strings.TrimSpace(value))) {
	case "", GroupByDay:
		return GroupByDay, nil
	case GroupByParcel:
		return GroupByParcel, nil
	default:
		return "", ErrUnknownGrouping
	}
}

// UsageLister reads the water usage log.
type UsageLister interface {
	ListUsage(ctx context.Context, filter models.UsageFilter) ([]models.WaterUsageRecord, error)
}

// ReportStore keeps daily report snapshots.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyUsageReport) error
}

// Sender delivers the daily report text.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Options configures the daily report destinations. Both are optional.
type Options struct {
	Store     ReportStore
	Sender    Sender
	Recipient string
	Location  *time.Location
}

// Service exposes water usage analytics.
type Service struct {
	usage     UsageLister
	store     ReportStore
	sender    Sender
	recipient string
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// NewService wires a new reporting service instance.
func NewService(usage UsageLister, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		usage:     usage,
		store:     opts.Store,
		sender:    opts.Sender,
		recipient: opts.Recipient,
		loc:       opts.Location,
		now:       time.Now,
		logger:    logger,
	}
}

// Records returns the raw usage log for the filter.
func (s *Service) Records(ctx context.Context, filter models.UsageFilter) ([]models.WaterUsageRecord, error) {
	records, err := s.usage.ListUsage(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	return records, nil
}

// Summary aggregates the usage log for the filter.
func (s *Service) Summary(ctx context.Context, filter models.UsageFilter, by GroupBy) ([]models.UsageSummary, error) {
	records, err := s.Records(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Summarize(records, by, s.loc), nil
}

// Summarize buckets records and computes total, average, peak and count per bucket, ordered by key.
func Summarize(records []models.WaterUsageRecord, by GroupBy, loc *time.Location) []models.UsageSummary {
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[string]*models.UsageSummary)
	for _, r := range records {
		key := r.ParcelName
		if by != GroupByParcel {
			key = r.Timestamp.In(loc).Format(models.DateLayout)
		}

		b, ok := buckets[key]
		if !ok {
			b = &models.UsageSummary{Key: key}
			buckets[key] = b
		}
		b.TotalLiters += r.Liters
		b.Count++
		if r.Liters > b.PeakLiters {
			b.PeakLiters = r.Liters
		}
	}

	summaries := make([]models.UsageSummary, 0, len(buckets))
	for _, b := range buckets {
		b.TotalLiters = round2(b.TotalLiters)
		b.AverageLiters = round2(b.TotalLiters / float64(b.Count))
		summaries = append(summaries, *b)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Key < summaries[j].Key })
	return summaries
}

// DailyReport builds the per-parcel report for the calendar day containing day.
func (s *Service) DailyReport(ctx context.Context, day time.Time) (models.DailyUsageReport, error) {
	date := day.In(s.loc).Format(models.DateLayout)
	records, err := s.Records(ctx, models.UsageFilter{From: date, To: date})
	if err != nil {
		return models.DailyUsageReport{}, err
	}

	report := models.DailyUsageReport{
		Date:      date,
		Parcels:   Summarize(records, GroupByParcel, s.loc),
		CreatedAt: s.now().UTC(),
	}
	for _, p := range report.Parcels {
		report.TotalLiters += p.TotalLiters
	}
	report.TotalLiters = round2(report.TotalLiters)
	return report, nil
}

// RunDailyReport builds today's report, snapshots it and sends it to the configured recipient.
func (s *Service) RunDailyReport(ctx context.Context) error {
	report, err := s.DailyReport(ctx, s.now())
	if err != nil {
		return err
	}

	var errs []error
	if s.store != nil {
		if err := s.store.SaveDailyReport(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("save daily report: %w", err))
		}
	}
	if s.sender != nil && s.recipient != "" {
		if err := s.sender.SendText(ctx, s.recipient, FormatDailyReport(report)); err != nil {
			errs = append(errs, fmt.Errorf("send daily report: %w", err))
		}
	}

	s.logger.Info("daily usage report generated",
		zap.String("date", report.Date),
		zap.Float64("total_liters", report.TotalLiters),
		zap.Int("parcels", len(report.Parcels)))
	return errors.Join(errs...)
}

// TodaySummary renders today's per-parcel usage as chat text.
func (s *Service) TodaySummary(ctx context.Context) (string, error) {
	report, err := s.DailyReport(ctx, s.now())
	if err != nil {
		return "", err
	}
	return FormatDailyReport(report), nil
}

// FormatDailyReport renders a report as a short chat message.
func FormatDailyReport(report models.DailyUsageReport) string {
	if len(report.Parcels) == 0 {
		return fmt.Sprintf("Consumo de agua %s: sin registros.", report.Date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Consumo de agua %s: %.2f L en total.", report.Date, report.TotalLiters)
	for _, p := range report.Parcels {
		fmt.Fprintf(&b, "\n- %s: %.2f L (%d riegos, pico %.2f L)", p.Key, p.TotalLiters, p.Count, p.PeakLiters)
	}
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
