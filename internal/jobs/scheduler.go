// Package jobs runs the periodic background work: delivering scheduled
// announcements and repairing routine latest pointers.
package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/internal/routine"
)

const jobTimeout = 4 * time.Minute

// Dispatcher delivers notifications whose time has come.
type Dispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (int, error)
}

// Repairer fixes routine flags that drifted from their heads.
type Repairer interface {
	Repair(ctx context.Context) (*routine.RepairResult, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler creates a new scheduler with no jobs registered.
func NewScheduler(logger *zap.Logger) *Scheduler {
	l := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		logger: logger,
	}
}

// Add registers run under spec. A run that overlaps the previous one is
// skipped.
func (s *Scheduler) Add(name, spec string, run func(ctx context.Context) error) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, run)); err != nil {
		return errors.Wrapf(err, "schedule job %s (%q)", name, spec)
	}
	return nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Register wires the service jobs into the scheduler and ties it to the
// application lifecycle.
func Register(lc fx.Lifecycle, s *Scheduler, settings *config.Settings, notifications Dispatcher, routines Repairer) error {
	err := s.Add("dispatch-announcements", settings.DispatchSpec, func(ctx context.Context) error {
		n, err := notifications.DispatchDue(ctx, time.Now())
		if n > 0 {
			s.logger.Info("scheduled announcements delivered", zap.Int("count", n))
		}
		return err
	})
	if err != nil {
		return err
	}
	err = s.Add("repair-routine-heads", settings.RepairSpec, func(ctx context.Context) error {
		res, err := routines.Repair(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("routine heads checked", zap.Int("faculties", res.Faculties), zap.Int64("fixed", res.Fixed), zap.Int64("discarded", res.Discarded))
		return nil
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.logger.Info("starting job scheduler", zap.Int("jobs", s.Entries()))
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping job scheduler")
			select {
			case <-s.cron.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
