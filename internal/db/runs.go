package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Run is the bookkeeping row of one refresh.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Records      int
	FailedURLs   int
	Discarded    int
	RemovedCodes []string
	Error        string
}

func (d *DB) RecordRun(ctx context.Context, r Run) error {
	removed := r.RemovedCodes
	if removed == nil {
		removed = []string{}
	}
	b, err := json.Marshal(removed)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO runs(run_id,started_at,finished_at,records,failed_urls,discarded,removed_codes,error)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at=excluded.finished_at,
			records=excluded.records,
			failed_urls=excluded.failed_urls,
			discarded=excluded.discarded,
			removed_codes=excluded.removed_codes,
			error=excluded.error`,
		r.ID, r.StartedAt.Unix(), r.FinishedAt.Unix(), r.Records, r.FailedURLs, r.Discarded, string(b), r.Error,
	)
	return err
}

// LastRun returns the most recently started run.
func (d *DB) LastRun(ctx context.Context) (Run, bool, error) {
	var r Run
	var started, finished int64
	var removed string
	err := d.sql.QueryRowContext(ctx, `SELECT run_id,started_at,finished_at,records,failed_urls,discarded,removed_codes,error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).
		Scan(&r.ID, &started, &finished, &r.Records, &r.FailedURLs, &r.Discarded, &removed, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	r.StartedAt = time.Unix(started, 0)
	r.FinishedAt = time.Unix(finished, 0)
	_ = json.Unmarshal([]byte(removed), &r.RemovedCodes)
	return r, true, nil
}
