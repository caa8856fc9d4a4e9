package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

// AlertPurger deletes resolved alert history older than a cutoff
type AlertPurger interface {
	PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SamplePurger deletes pushed metric samples older than a cutoff
type SamplePurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActiveAlerts exposes the live alert set for summaries
type ActiveAlerts interface {
	ActiveCounts() map[monitoring.AlertSeverity]int
	GetIncidents(tenantID string) []*monitoring.IncidentCorrelation
}

// Config holds housekeeping schedules in robfig/cron syntax
type Config struct {
	PurgeSchedule   string
	SummarySchedule string
	// Resolved alerts and samples older than this are purged
	Retention time.Duration
}

// Scheduler runs periodic housekeeping for the alert engine
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	alerts   AlertPurger
	samples  SamplePurger
	active   ActiveAlerts
	recorder monitoring.Recorder
	logger   *logrus.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	entries map[string]cron.EntryID
}

// NewScheduler validates the schedules and registers the jobs. Any purger
// or the summary source may be nil to skip that job.
func NewScheduler(cfg Config, alerts AlertPurger, samples SamplePurger, active ActiveAlerts, recorder monitoring.Recorder, logger *logrus.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}

	cronLogger := cron.VerbosePrintfLogger(logger.WithField("component", "jobs"))
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(
				cron.SkipIfStillRunning(cronLogger),
				cron.Recover(cronLogger),
			),
		),
		cfg:      cfg,
		alerts:   alerts,
		samples:  samples,
		active:   active,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]cron.EntryID),
	}

	if cfg.PurgeSchedule != "" && (alerts != nil || samples != nil) {
		if err := s.add("purge", cfg.PurgeSchedule, s.runPurge); err != nil {
			return nil, err
		}
	}
	if cfg.SummarySchedule != "" && active != nil {
		if err := s.add("summary", cfg.SummarySchedule, s.runSummary); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, job func()) error {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	s.entries[name] = id
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true

	fields := logrus.Fields{}
	for name, id := range s.entries {
		fields[name+"_next_run"] = s.cron.Entry(id).Next
	}
	s.logger.WithFields(fields).Info("Housekeeping scheduler started")
}

// Stop stops the scheduler and waits for running jobs up to ctx's deadline
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Housekeeping jobs still running at shutdown")
	}
}

// Jobs lists registered job names
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.Purge(ctx)
}

func (s *Scheduler) runSummary() {
	s.Summarize()
}

// Purge deletes resolved alerts and samples past the retention period
func (s *Scheduler) Purge(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.Retention)
	fields := logrus.Fields{"cutoff": cutoff}

	if s.alerts != nil {
		n, err := s.alerts.PurgeResolvedBefore(ctx, cutoff)
		if err != nil {
			s.logger.WithError(err).Error("Failed to purge resolved alerts")
		}
		fields["alerts_purged"] = n
	}
	if s.samples != nil {
		n, err := s.samples.PurgeBefore(ctx, cutoff)
		if err != nil {
			s.logger.WithError(err).Error("Failed to purge metric samples")
		}
		fields["samples_purged"] = n
	}

	s.logger.WithFields(fields).Info("Housekeeping purge completed")
}

// Summarize logs the active alert breakdown and refreshes the active gauges
func (s *Scheduler) Summarize() {
	counts := s.active.ActiveCounts()
	if s.recorder != nil {
		s.recorder.ActiveAlerts(counts)
	}

	total := 0
	fields := logrus.Fields{}
	for severity, n := range counts {
		fields[string(severity)] = n
		total += n
	}

	open := 0
	for _, incident := range s.active.GetIncidents("") {
		if incident.Status != monitoring.IncidentResolved {
			open++
		}
	}
	fields["active_alerts"] = total
	fields["open_incidents"] = open

	s.logger.WithFields(fields).Info("Active alert summary")
}
