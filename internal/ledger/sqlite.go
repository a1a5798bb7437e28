package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/atlasdata/econpipe/internal/model"
)

// SQLiteLedger implements Ledger on an embedded SQLite database. Useful for
// local deployments that want queryable run history without a JSON file.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode,
// and applies the schema.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}

	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "ledger: migrate")
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	seq             INTEGER UNIQUE,
	run_scope       TEXT NOT NULL,
	start_ts        DATETIME NOT NULL,
	end_ts          DATETIME,
	status          TEXT NOT NULL DEFAULT 'RUNNING',
	rows_processed  INTEGER,
	last_checkpoint TEXT,
	error_message   TEXT
);

CREATE TABLE IF NOT EXISTS checkpoints (
	source     TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(run_scope);
`

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) StartRun(ctx context.Context, scope string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, seq, run_scope, start_ts, status)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?)`,
		id, scope, now.Format(time.RFC3339Nano), string(model.RunStatusRunning),
	)
	if err != nil {
		return "", eris.Wrapf(err, "ledger: insert run for scope %s", scope)
	}
	return id, nil
}

func (l *SQLiteLedger) EndRun(ctx context.Context, runID string, status model.RunStatus, opts EndRunOpts) (*model.Run, error) {
	now := time.Now().UTC()

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET
			end_ts = ?,
			status = ?,
			rows_processed = COALESCE(?, rows_processed),
			last_checkpoint = COALESCE(?, last_checkpoint),
			error_message = COALESCE(?, error_message)
		 WHERE id = ?`,
		now.Format(time.RFC3339Nano), string(status),
		opts.RowsProcessed, opts.LastCheckpoint, opts.ErrorMessage, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: update run %s", runID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "ledger: rows affected")
	}
	if affected == 0 {
		return nil, eris.Wrapf(ErrRunNotFound, "id=%s", runID)
	}

	return l.getRun(ctx, runID)
}

func (l *SQLiteLedger) getRun(ctx context.Context, runID string) (*model.Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, run_scope, start_ts, end_ts, status, rows_processed, last_checkpoint, error_message
		 FROM runs WHERE id = ?`, runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrRunNotFound, "id=%s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: get run %s", runID)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var (
		run     model.Run
		startTS string
		endTS   sql.NullString
		status  string
		rows    sql.NullInt64
		ckpt    sql.NullString
		errMsg  sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Scope, &startTS, &endTS, &status, &rows, &ckpt, &errMsg); err != nil {
		return nil, err
	}

	start, err := time.Parse(time.RFC3339Nano, startTS)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: parse start_ts")
	}
	run.StartTS = start
	run.Status = model.RunStatus(status)

	if endTS.Valid {
		end, err := time.Parse(time.RFC3339Nano, endTS.String)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: parse end_ts")
		}
		run.EndTS = &end
	}
	if rows.Valid {
		n := int(rows.Int64)
		run.RowsProcessed = &n
	}
	if ckpt.Valid {
		run.LastCheckpoint = &ckpt.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return &run, nil
}

func (l *SQLiteLedger) SaveCheckpoint(ctx context.Context, source, value string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO checkpoints (source, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		source, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrapf(err, "ledger: save checkpoint %s", source)
}

func (l *SQLiteLedger) LoadCheckpoint(ctx context.Context, source, def string) (string, error) {
	var value string
	err := l.db.QueryRowContext(ctx,
		`SELECT value FROM checkpoints WHERE source = ?`, source,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "ledger: load checkpoint %s", source)
	}
	return value, nil
}

func (l *SQLiteLedger) ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT source, value FROM checkpoints ORDER BY source ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list checkpoints")
	}
	defer rows.Close()

	var checkpoints []model.Checkpoint
	for rows.Next() {
		var cp model.Checkpoint
		if err := rows.Scan(&cp.Source, &cp.Value); err != nil {
			return nil, eris.Wrap(err, "ledger: scan checkpoint")
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, eris.Wrap(rows.Err(), "ledger: iterate checkpoints")
}

func (l *SQLiteLedger) ListRuns(ctx context.Context, scope string) ([]model.Run, error) {
	query := `SELECT id, run_scope, start_ts, end_ts, status, rows_processed, last_checkpoint, error_message
		FROM runs`
	var args []any
	if scope != "" {
		query += ` WHERE run_scope = ?`
		args = append(args, scope)
	}
	query += ` ORDER BY seq ASC`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "ledger: iterate runs")
}

func (l *SQLiteLedger) LastRun(ctx context.Context, scope string) (*model.Run, error) {
	runs, err := l.ListRuns(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	last := runs[len(runs)-1]
	return &last, nil
}
