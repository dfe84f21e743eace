package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/inpyohongb/kurlyro/internal/domain"
)

// Client implements ports.Sink by replacing per-target row sets in a MySQL
// table. It exists as an alternative backend for deployments that want the
// synchronized rows queryable instead of (or alongside) a spreadsheet.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

// NewClient opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewClient(ctx context.Context, dsn string, log *slog.Logger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	// Conservative pool defaults; can be adjusted via env later.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Client{db: db, log: log}, nil
}

// Replace deletes the target's prior rows and inserts the new set in one
// transaction, so the clear-then-write is atomic here in a way the sheet
// backend cannot be. An empty row set is a no-op.
func (c *Client) Replace(ctx context.Context, target string, rows []domain.Row) error {
	if len(rows) == 0 {
		c.log.Warn("no rows to write, leaving target untouched", slog.String("target", target))
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrSink, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_rows WHERE target = ?", target); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: clearing %s: %v", domain.ErrSink, target, err)
	}

	const q = `
INSERT INTO attendance_rows (target, row_index, fields, synced_at)
VALUES (?, ?, ?, ?);
`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare: %v", domain.ErrSink, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, row := range rows {
		// Cells stored as a JSON array; the column layout is the report's
		// concern, not the store's.
		fields, _ := json.Marshal(row)
		if _, err := stmt.ExecContext(ctx, target, i, string(fields), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: writing row %d of %s: %v", domain.ErrSink, i, target, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrSink, err)
	}
	c.log.Info("target replaced", slog.String("target", target), slog.Int("rows", len(rows)))
	return nil
}

// DB exposes the pool for the migrator. Not wired via interface to keep
// ports minimal.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }
