package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

// Runner executes one date's sub-cycle.
type Runner interface {
	RunDate(ctx context.Context, date, target string) error
}

// Target binds a sink target name to a date offset in days before "now"
// (0 = today, 1 = yesterday).
type Target struct {
	Name   string
	Offset int
}

// Scheduler drives the periodic loop: every interval it runs one cycle
// covering all configured targets. Each target's sub-cycle is isolated, so
// a failing date never aborts its sibling; every failure is logged at the
// cycle boundary and the loop continues.
type Scheduler struct {
	Log      *slog.Logger
	Runner   Runner
	Interval time.Duration
	Location *time.Location
	Targets  []Target

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run loops until ctx is cancelled. The first cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.Log.Info("starting sync loop", slog.Duration("interval", s.Interval))

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("sync loop stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle shields the loop from anything a cycle can throw, including
// panics out of adapter code.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.Error("cycle panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	s.RunCycle(ctx)
}

// RunCycle runs every target's sub-cycle for the current clock reading.
// Sub-cycles run concurrently; failures are logged, classified, and
// absorbed here.
func (s *Scheduler) RunCycle(ctx context.Context) {
	now := s.now().In(s.Location)
	start := time.Now()
	s.Log.Info("cycle started", slog.Time("at", now))

	g := new(errgroup.Group)
	for _, t := range s.Targets {
		date := now.AddDate(0, 0, -t.Offset).Format("2006-01-02")
		g.Go(func() error {
			if err := s.runTarget(ctx, date, t.Name); err != nil {
				s.Log.Error("sub-cycle failed",
					slog.String("target", t.Name),
					slog.String("date", date),
					slog.String("kind", errKind(err)),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.Log.Info("cycle finished", slog.Duration("took", time.Since(start)))
}

// ErrOutsideWindow reports a manually requested date that none of the
// configured targets covers.
var ErrOutsideWindow = errors.New("date is outside the configured window")

// RunDate runs the single sub-cycle whose target covers date at the
// current clock reading. Unlike RunCycle, the failure is returned to the
// caller (the manual trigger) instead of being absorbed here.
func (s *Scheduler) RunDate(ctx context.Context, date string) error {
	now := s.now().In(s.Location)
	for _, t := range s.Targets {
		if now.AddDate(0, 0, -t.Offset).Format("2006-01-02") == date {
			return s.runTarget(ctx, date, t.Name)
		}
	}
	return fmt.Errorf("%w: %s", ErrOutsideWindow, date)
}

// runTarget converts a panicking sub-cycle into an error so one target can
// never take down the loop or its sibling.
func (s *Scheduler) runTarget(ctx context.Context, date, target string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sub-cycle panicked: %v", r)
		}
	}()
	return s.Runner.RunDate(ctx, date, target)
}

func errKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuth):
		return "auth"
	case errors.Is(err, domain.ErrFetch):
		return "fetch"
	case errors.Is(err, domain.ErrSink):
		return "sink"
	default:
		return "other"
	}
}
