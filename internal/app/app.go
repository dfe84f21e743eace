package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inpyohongb/kurlyro/internal/adapter/lms"
	msql "github.com/inpyohongb/kurlyro/internal/adapter/mysql"
	gsheets "github.com/inpyohongb/kurlyro/internal/adapter/sheets"
	"github.com/inpyohongb/kurlyro/internal/config"
	"github.com/inpyohongb/kurlyro/internal/domain"
	"github.com/inpyohongb/kurlyro/internal/migrate"
	"github.com/inpyohongb/kurlyro/internal/ports"
	"github.com/inpyohongb/kurlyro/internal/scheduler"
	"github.com/inpyohongb/kurlyro/internal/usecase"
)

// App wires adapters, the use case and the scheduler.
type App struct {
	log   *slog.Logger
	uc    *usecase.SyncUseCase
	sched *scheduler.Scheduler
}

func New(log *slog.Logger, cfg config.Config, interval time.Duration) (*App, error) {
	report, err := domain.ReportByName(cfg.Sync.Report, cfg.Kurly.WorkPart)
	if err != nil {
		return nil, err
	}

	session := lms.NewSession(cfg.Kurly.BaseURL, lms.Credentials{
		LoginID:  cfg.Kurly.LoginID,
		Password: cfg.Kurly.Password,
	}, log)

	query := lms.Query{
		Cluster: cfg.Kurly.Cluster,
		Center:  cfg.Kurly.Center,
		Size:    cfg.Kurly.PageSize,
	}
	if report.ServerFilter {
		query.WorkPart = cfg.Kurly.WorkPart
	}
	collector := lms.NewClient(session, query, lms.DefaultRetryPolicy(), log)

	var sink ports.Sink
	switch cfg.Sink.Backend {
	case config.BackendSheets:
		sink, err = gsheets.NewSink(context.Background(), []byte(cfg.Sink.CredentialsJSON), cfg.Sink.SpreadsheetID, report.Width(), log)
		if err != nil {
			return nil, err
		}
	case config.BackendMySQL:
		client, err := msql.NewClient(context.Background(), cfg.Sink.MySQLDSN, log)
		if err != nil {
			return nil, err
		}
		// Run migrations before the first cycle uses the sink
		if err := migrate.Run(context.Background(), client.DB(), log); err != nil {
			client.Close()
			return nil, err
		}
		sink = client
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Sink.Backend)
	}

	loc, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TZ %q: %w", cfg.Sync.Timezone, err)
	}

	uc := &usecase.SyncUseCase{
		Log:       log,
		Collector: collector,
		Sink:      sink,
		Report:    report,
	}
	sched := &scheduler.Scheduler{
		Log:      log,
		Runner:   uc,
		Interval: interval,
		Location: loc,
		Targets: []scheduler.Target{
			{Name: "today_kurlyro", Offset: 0},
			{Name: "yesterday_kurlyro", Offset: 1},
		},
	}

	return &App{log: log, uc: uc, sched: sched}, nil
}

// Run drives the periodic scheduling loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.sched.Run(ctx)
}

// RunOnce executes a single cycle covering all targets.
func (a *App) RunOnce(ctx context.Context) {
	a.sched.RunCycle(ctx)
}

// SyncDate executes the sub-cycle for one specific date. The date must be
// covered by a configured target (scheduler.ErrOutsideWindow otherwise).
func (a *App) SyncDate(ctx context.Context, date string) error {
	return a.sched.RunDate(ctx, date)
}
