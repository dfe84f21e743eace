package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

// clearRows is the last row of the cleared range. Data volume per target is
// well under this; the header row above the origin is never touched.
const clearRows = 1000

// Sink implements ports.Sink against a Google Sheets spreadsheet. Each
// target name is a worksheet; rows are written starting at A2, below the
// header row.
type Sink struct {
	svc           *sheets.Service
	spreadsheetID string
	width         int
	log           *slog.Logger
}

// NewSink builds a Sink from a service-account credential blob, typically
// injected via environment.
func NewSink(ctx context.Context, credentialsJSON []byte, spreadsheetID string, width int, log *slog.Logger) (*Sink, error) {
	if spreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet ID is required")
	}
	cfg, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets: parsing credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: creating service: %w", err)
	}
	log.Info("sheets sink initialized", slog.String("spreadsheet", spreadsheetID))
	return &Sink{svc: svc, spreadsheetID: spreadsheetID, width: width, log: log}, nil
}

// newSinkWithService is the injection point for tests.
func newSinkWithService(svc *sheets.Service, spreadsheetID string, width int, log *slog.Logger) *Sink {
	return &Sink{svc: svc, spreadsheetID: spreadsheetID, width: width, log: log}
}

// Replace clears the target's data range and writes rows at its origin as
// one logical operation. An empty row set leaves the target untouched so a
// transient empty fetch never wipes the sheet.
func (s *Sink) Replace(ctx context.Context, target string, rows []domain.Row) error {
	if len(rows) == 0 {
		s.log.Warn("no rows to write, leaving target untouched", slog.String("target", target))
		return nil
	}

	clearRange := fmt.Sprintf("%s!A2:%s%d", target, columnLetter(s.width), clearRows)
	_, err := s.svc.Spreadsheets.Values.
		BatchClear(s.spreadsheetID, &sheets.BatchClearValuesRequest{Ranges: []string{clearRange}}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: clearing %s: %v", domain.ErrSink, clearRange, err)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	_, err = s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, target+"!A2", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: writing %d rows to %s: %v", domain.ErrSink, len(rows), target, err)
	}

	s.log.Info("target replaced", slog.String("target", target), slog.Int("rows", len(rows)))
	return nil
}

// columnLetter converts a 1-based column count to its A1-notation letter.
func columnLetter(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
