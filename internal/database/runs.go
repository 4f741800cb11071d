package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thinkscotty/newsroom/internal/models"
)

// RecordRun stores a finished pipeline run.
func (db *DB) RecordRun(ctx context.Context, r models.RunReport) error {
	stages, err := json.Marshal(r.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO run_log (run_id, run_date, state, items, image_path, error, stages, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Date, r.State, r.Items, r.ImagePath, r.Error, string(stages), r.Duration.Milliseconds())
	return err
}

// RecentRuns returns the N most recent run log entries, newest first.
func (db *DB) RecentRuns(limit int) ([]models.RunLogEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, run_date, state, items, image_path, error, stages, duration_ms, created_at
		FROM run_log
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.RunLogEntry{}
	for rows.Next() {
		var e models.RunLogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.RunDate, &e.State, &e.Items, &e.ImagePath,
			&e.Error, &e.Stages, &e.DurationMS, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = parseTime(createdAt)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

// HasSuccessfulRun reports whether a run for date finished in the done state.
func (db *DB) HasSuccessfulRun(date string) (bool, error) {
	var id int64
	err := db.conn.QueryRow(`SELECT id FROM run_log WHERE run_date = ? AND state = ? LIMIT 1`,
		date, models.StateDone).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CleanOldRuns removes run log entries older than the given number of days.
func (db *DB) CleanOldRuns(days int) error {
	_, err := db.conn.Exec(`DELETE FROM run_log WHERE created_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", days))
	return err
}
