package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var ErrNoReportFunc = errors.New("report function not set")

// Scheduler runs the daily report on a cron spec
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	ctx        context.Context
	cancel     context.CancelFunc
	reportFunc func(ctx context.Context) error
	log        zerolog.Logger
}

// New creates a scheduler evaluating spec in UTC
func New(spec string, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// SetReportFunction sets the job run on every tick
func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start registers the job and starts the cron loop
func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		return ErrNoReportFunc
	}

	_, err := s.cron.AddFunc(s.spec, s.runReport)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("📅 scheduler started")
	return nil
}

func (s *Scheduler) runReport() {
	s.log.Info().Msg("🕘 triggered daily report")
	if err := s.reportFunc(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("❌ daily report failed")
	}
}

// Stop stops the cron loop and waits for a running job
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info().Msg("📅 scheduler stopped")
}
