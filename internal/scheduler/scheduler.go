package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/irrigation"
	"github.com/mamadbah2/agroirrigate/internal/service/alerts"
	"github.com/mamadbah2/agroirrigate/pkg/logger"
)

const (
	pollTimeout   = 30 * time.Second
	checkTimeout  = time.Minute
	reportTimeout = 2 * time.Minute
)

// Poller runs one schedule matching pass.
type Poller interface {
	PollOnce(ctx context.Context, now time.Time) irrigation.PollResult
}

// AlertChecker runs one dry-parcel sweep.
type AlertChecker interface {
	Check(ctx context.Context) (alerts.CheckResult, error)
}

// DailyReporter builds and ships the end-of-day usage report.
type DailyReporter interface {
	RunDailyReport(ctx context.Context) error
}

// Options controls job cadence. A nil job is not scheduled.
type Options struct {
	Location       *time.Location
	PollInterval   time.Duration
	CheckInterval  time.Duration
	ReportSchedule string
	Clock          irrigation.Clock
}

// Scheduler manages the background jobs.
type Scheduler struct {
	cron     *cron.Cron
	poller   Poller
	checker  AlertChecker
	reporter DailyReporter
	opts     Options
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance. Overlapping runs of the same job are skipped.
func NewScheduler(opts Options, poller Poller, checker AlertChecker, reporter DailyReporter, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = irrigation.NewClock(opts.Location)
	}

	cronLogger := logger.NewCronLogger(log)
	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     c,
		poller:   poller,
		checker:  checker,
		reporter: reporter,
		opts:     opts,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.poller != nil {
		if err := s.add(every(s.opts.PollInterval), s.poll); err != nil {
			return fmt.Errorf("schedule matcher: %w", err)
		}
	}
	if s.checker != nil {
		if err := s.add(every(s.opts.CheckInterval), s.checkAlerts); err != nil {
			return fmt.Errorf("schedule alert check: %w", err)
		}
	}
	if s.reporter != nil {
		if err := s.add(s.opts.ReportSchedule, s.sendDailyReport); err != nil {
			return fmt.Errorf("schedule daily report: %w", err)
		}
	}

	s.logger.Info("starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
	return nil
}

// Stop stops the cron loop, cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) add(spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, job)
	return err
}

func every(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.String()
}

func (s *Scheduler) poll() {
	ctx, cancel := context.WithTimeout(s.ctx, pollTimeout)
	defer cancel()

	result := s.poller.PollOnce(ctx, s.opts.Clock.Now())
	if len(result.Started) > 0 || len(result.Ended) > 0 {
		s.logger.Info("schedule edges fired",
			zap.Int64s("started", result.Started),
			zap.Int64s("ended", result.Ended))
	}
}

func (s *Scheduler) checkAlerts() {
	ctx, cancel := context.WithTimeout(s.ctx, checkTimeout)
	defer cancel()

	result, err := s.checker.Check(ctx)
	if err != nil {
		s.logger.Error("dry parcel check failed", zap.Error(err))
		return
	}
	if result.AlertsSent > 0 {
		s.logger.Info("dry parcel alerts sent", zap.Int("alerts", result.AlertsSent))
	}
}

func (s *Scheduler) sendDailyReport() {
	s.logger.Info("generating daily usage report")
	ctx, cancel := context.WithTimeout(s.ctx, reportTimeout)
	defer cancel()

	if err := s.reporter.RunDailyReport(ctx); err != nil {
		s.logger.Error("daily usage report failed", zap.Error(err))
		return
	}
	s.logger.Info("daily usage report sent successfully")
}
