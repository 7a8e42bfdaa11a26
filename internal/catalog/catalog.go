// Package catalog keeps a ledger of executed runs in a SQL database: a local
// sqlite file or a remote libsql (turso) database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/sivukhin/htapbench/internal/logging"
	"github.com/sivukhin/htapbench/internal/sweep"
)

const timeLayout = "2006-01-02 15:04:05.000"

type Catalog struct {
	db *sql.DB
}

// Driver picks the database driver for dsn.
func Driver(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "http://") {
		return "libsql"
	}
	return "sqlite3"
}

// Open connects to the catalog at dsn and creates its tables.
func Open(ctx context.Context, dsn string) (*Catalog, error) {
	driver := Driver(dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %v: %w", driver, err)
	}
	catalog := &Catalog{db: db}
	if err := catalog.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) init(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs (
		session TEXT,
		path TEXT,
		experiment TEXT,
		disk TEXT,
		workload TEXT,
		paradigm TEXT,
		ablation TEXT,
		command TEXT,
		returncode INTEGER,
		error_kind TEXT,
		error TEXT,
		started TEXT,
		finished TEXT,
		PRIMARY KEY (session, path)
	)`)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	logging.Logger.Debugf("initialized run catalog")
	return nil
}

// Record stores the outcome of a sweep entry.
func (c *Catalog) Record(ctx context.Context, outcome sweep.Outcome) error {
	var errText string
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	entry := outcome.Entry
	_, err := c.db.ExecContext(
		ctx,
		"INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		outcome.Session,
		entry.Path,
		entry.Experiment,
		entry.Disk,
		entry.Workload,
		entry.Paradigm,
		entry.Ablation,
		entry.Config.CommandString(entry.Path),
		outcome.ReturnCode,
		outcome.Kind,
		errText,
		outcome.Started.UTC().Format(timeLayout),
		outcome.Finished.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %v: %w", entry.Path, err)
	}
	return nil
}

// Run is a row of the ledger.
type Run struct {
	Session    string
	Path       string
	Experiment string
	Disk       string
	Workload   string
	Paradigm   string
	Ablation   string
	Command    string
	ReturnCode int
	ErrorKind  string
	Error      string
	Started    time.Time
	Finished   time.Time
}

// Runs lists the runs of session in execution order; an empty session lists
// every run.
func (c *Catalog) Runs(ctx context.Context, session string) ([]Run, error) {
	query := "SELECT session, path, experiment, disk, workload, paradigm, ablation, command, returncode, error_kind, error, started, finished FROM runs"
	var args []any
	if session != "" {
		query += " WHERE session = ?"
		args = append(args, session)
	}
	rows, err := c.db.QueryContext(ctx, query+" ORDER BY started, path", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		var started, finished string
		err := rows.Scan(
			&run.Session, &run.Path, &run.Experiment, &run.Disk, &run.Workload, &run.Paradigm, &run.Ablation,
			&run.Command, &run.ReturnCode, &run.ErrorKind, &run.Error, &started, &finished,
		)
		if err != nil {
			return nil, err
		}
		if run.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, err
		}
		if run.Finished, err = time.Parse(timeLayout, finished); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Failed lists the runs of session that did not produce a clean exit.
func (c *Catalog) Failed(ctx context.Context, session string) ([]Run, error) {
	runs, err := c.Runs(ctx, session)
	if err != nil {
		return nil, err
	}
	failed := make([]Run, 0)
	for _, run := range runs {
		if run.ErrorKind != "" || run.ReturnCode != 0 {
			failed = append(failed, run)
		}
	}
	return failed, nil
}
