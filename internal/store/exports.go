package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/cargocheck/internal/model"
)

// ExportHistory keeps finished export runs in SQLite.
type ExportHistory struct {
	DB *sql.DB
}

// RecordRun appends run to the history.
func (h ExportHistory) RecordRun(ctx context.Context, run model.ExportRun) error {
	return RecordExportRun(ctx, h.DB, run)
}

// RecordExportRun appends a finished export run to the history.
func RecordExportRun(ctx context.Context, db *sql.DB, run model.ExportRun) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO export_runs (id, state, sink, layout, record_count, output_root, message, error_code, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.State), string(run.Sink), string(run.Layout), run.RecordCount,
		run.OutputRoot, run.Message, run.ErrorCode, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording export run: %w", err)
	}
	return nil
}

// ListExportRuns returns export runs, newest first. A limit of 0 returns all.
func ListExportRuns(ctx context.Context, db *sql.DB, limit int) ([]model.ExportRun, error) {
	query := `SELECT id, state, sink, layout, record_count, output_root, message, error_code, started_at, finished_at
	          FROM export_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing export runs: %w", err)
	}
	defer rows.Close()

	var runs []model.ExportRun
	for rows.Next() {
		var run model.ExportRun
		var state, sink, layout string
		var message, errorCode sql.NullString
		if err := rows.Scan(&run.ID, &state, &sink, &layout, &run.RecordCount, &run.OutputRoot,
			&message, &errorCode, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning export run: %w", err)
		}
		run.State = model.ExportState(state)
		run.Sink = model.SinkKind(sink)
		run.Layout = model.Layout(layout)
		run.Message = message.String
		run.ErrorCode = errorCode.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
