package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

// Config holds environment-driven configuration.
type Config struct {
	Kurly struct {
		LoginID  string
		Password string
		BaseURL  string // default: https://api-lms.kurly.com
		Cluster  string // default: CC03
		Center   string // default: GPM1
		WorkPart string // default: IB
		PageSize int    // default: 100
	}
	Sink struct {
		Backend         string // "sheets" (default) or "mysql"
		SpreadsheetID   string
		CredentialsJSON string // serialized service-account blob
		MySQLDSN        string
	}
	Sync struct {
		Timezone string // default: Asia/Seoul
		Report   string // default: commute-end
	}
}

const (
	BackendSheets = "sheets"
	BackendMySQL  = "mysql"
)

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config

	cfg.Kurly.LoginID = os.Getenv("KURLY_LOGIN_ID")
	if cfg.Kurly.LoginID == "" {
		return cfg, errors.New("KURLY_LOGIN_ID is required")
	}
	cfg.Kurly.Password = os.Getenv("KURLY_PASSWORD")
	if cfg.Kurly.Password == "" {
		return cfg, errors.New("KURLY_PASSWORD is required")
	}
	cfg.Kurly.BaseURL = envOr("KURLY_BASE_URL", "https://api-lms.kurly.com")
	cfg.Kurly.Cluster = envOr("KURLY_CLUSTER", "CC03")
	cfg.Kurly.Center = envOr("KURLY_CENTER", "GPM1")
	cfg.Kurly.WorkPart = envOr("KURLY_WORK_PART", "IB")

	cfg.Kurly.PageSize = 100
	if ps := os.Getenv("KURLY_PAGE_SIZE"); ps != "" {
		v, err := strconv.Atoi(ps)
		if err != nil || v <= 0 {
			return cfg, errors.New("KURLY_PAGE_SIZE must be a positive integer")
		}
		cfg.Kurly.PageSize = v
	}

	cfg.Sync.Timezone = envOr("SYNC_TZ", "Asia/Seoul")
	cfg.Sync.Report = envOr("SYNC_REPORT", domain.ReportCommuteEnd)
	if _, err := domain.ReportByName(cfg.Sync.Report, cfg.Kurly.WorkPart); err != nil {
		return cfg, fmt.Errorf("SYNC_REPORT: %w", err)
	}

	cfg.Sink.Backend = envOr("SINK_BACKEND", BackendSheets)
	switch cfg.Sink.Backend {
	case BackendSheets:
		cfg.Sink.SpreadsheetID = os.Getenv("SHEETS_SPREADSHEET_ID")
		if cfg.Sink.SpreadsheetID == "" {
			return cfg, errors.New("SHEETS_SPREADSHEET_ID is required for the sheets backend")
		}
		cfg.Sink.CredentialsJSON = os.Getenv("GOOGLE_CREDENTIALS_JSON")
		if cfg.Sink.CredentialsJSON == "" {
			return cfg, errors.New("GOOGLE_CREDENTIALS_JSON is required for the sheets backend")
		}
	case BackendMySQL:
		cfg.Sink.MySQLDSN = os.Getenv("MYSQL_DSN")
		if cfg.Sink.MySQLDSN == "" {
			return cfg, errors.New("MYSQL_DSN is required for the mysql backend")
		}
	default:
		return cfg, fmt.Errorf("SINK_BACKEND must be %q or %q", BackendSheets, BackendMySQL)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
