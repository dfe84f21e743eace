package ports

import (
	"context"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

// Collector fetches every page of one date's attendance collection.
type Collector interface {
	CollectDay(ctx context.Context, date string) (domain.CollectResult, error)
}

// Sink replaces the contents of a named target with a new row set.
// In this project the primary target is a Google Sheets worksheet, but the
// interface is intentionally generic to support other sinks.
// Implementations must treat an empty row set as a no-op that leaves the
// target's prior content untouched.
type Sink interface {
	Replace(ctx context.Context, target string, rows []domain.Row) error
}
