package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/inpyohongb/kurlyro/internal/domain"
	"github.com/inpyohongb/kurlyro/internal/ports"
)

// SyncUseCase runs one date's sub-cycle: collect every page, transform the
// surviving records into rows, and replace the target's contents.
type SyncUseCase struct {
	Log       *slog.Logger
	Collector ports.Collector
	Sink      ports.Sink
	Report    domain.Report
}

// RunDate synchronizes one date into one target.
func (uc *SyncUseCase) RunDate(ctx context.Context, date, target string) error {
	if uc.Collector == nil || uc.Sink == nil {
		return errors.New("usecase not initialized: missing dependencies")
	}
	uc.Log.Info("collecting attendance", slog.String("date", date), slog.String("target", target))

	res, err := uc.Collector.CollectDay(ctx, date)
	if err != nil {
		return err
	}
	if n := len(res.DroppedPages); n > 0 {
		uc.Log.Warn("collection is incomplete, pages were dropped",
			slog.String("date", date),
			slog.Int("dropped", n),
			slog.Any("pages", res.DroppedPages),
		)
	}

	rows := uc.Report.Rows(res.Records)
	uc.Log.Info("transformed records",
		slog.String("report", uc.Report.Name),
		slog.Int("records", len(res.Records)),
		slog.Int("rows", len(rows)),
	)

	if err := uc.Sink.Replace(ctx, target, rows); err != nil {
		return err
	}
	uc.Log.Info("sub-cycle completed", slog.String("date", date), slog.String("target", target), slog.Int("rows", len(rows)))
	return nil
}
