// Package scheduler runs a job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/logging"
	"github.com/robfig/cron/v3"
)

// DefaultSpec runs the job daily at 06:00.
const DefaultSpec = "0 6 * * *"

// Job is the work run on each tick.
type Job func(ctx context.Context) error

// Scheduler runs one named job on a standard five-field cron spec.
type Scheduler struct {
	cron    *cron.Cron
	name    string
	spec    string
	job     Job
	log     *logging.SecureLogger
	entryID cron.EntryID
	run     cron.Job

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun time.Time
	lastErr error
}

// New parses spec in loc and registers job under name. The job is not run
// until Start is called.
func New(spec string, loc *time.Location, name string, job Job, log *logging.SecureLogger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logging.Nop()
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler: job %q is nil", name)
	}

	s := &Scheduler{
		name: name,
		spec: spec,
		job:  job,
		log:  log,
	}
	s.cron = cron.New(cron.WithLocation(loc))
	s.run = cron.NewChain(cron.SkipIfStillRunning(cronLogger{log: log})).Then(cron.FuncJob(s.tick))

	id, err := s.cron.AddJob(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	return s, nil
}

// Start begins ticking. Jobs receive a context that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.running = true

	s.log.Info().
		Str("job", s.name).
		Str("schedule", s.spec).
		Str("next_run", s.Next().Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop cancels the running job context and waits until the running job
// returns or ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Str("job", s.name).Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: waiting for %s: %w", s.name, ctx.Err())
	}
}

// RunNow runs the job in the caller's goroutine through the same
// skip-if-still-running guard as scheduled ticks: it is skipped while a tick
// is running, and ticks are skipped while it runs.
func (s *Scheduler) RunNow() {
	s.run.Run()
}

// Next returns the next activation time, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// LastRun returns when the job last finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.runJob(ctx)
}

func (s *Scheduler) runJob(ctx context.Context) {
	start := time.Now()
	s.log.Info().Str("job", s.name).Msg("Running scheduled job")

	err := s.job(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", s.name).Dur("duration", time.Since(start)).Msg("Scheduled job failed")
		return
	}
	s.log.Info().Str("job", s.name).Dur("duration", time.Since(start)).Msg("Scheduled job completed")
}

// cronLogger adapts SecureLogger to cron.Logger.
type cronLogger struct {
	log *logging.SecureLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Msgf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf("cron: %s %v", msg, keysAndValues)
}
