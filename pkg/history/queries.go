package history

import (
	"database/sql"
	"time"
)

const runColumns = `id, preset, status, phase, started_at, completed_at,
		num_angles, images_total, images_collected, file_name, error_message`

// CreateRun records the start of a new scan run
func (db *DB) CreateRun(id string, preset *string) (*Run, error) {
	_, err := db.Exec(`
		INSERT INTO scan_runs (id, preset, status, started_at)
		VALUES (?, ?, ?, ?)`,
		id, preset, RunStatusRunning, time.Now(),
	)
	if err != nil {
		return nil, err
	}

	return db.GetRun(id)
}

// GetRun retrieves a scan run by ID
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT `+runColumns+`
		FROM scan_runs WHERE id = ?`, id)
	return scanRun(row)
}

// GetLastRun returns the most recently started scan run
func (db *DB) GetLastRun() (*Run, error) {
	row := db.QueryRow(`
		SELECT ` + runColumns + `
		FROM scan_runs ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

// ListRuns returns scan runs with pagination, newest first
func (db *DB) ListRuns(limit, offset int) ([]*Run, error) {
	rows, err := db.Query(`
		SELECT `+runColumns+`
		FROM scan_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of recorded runs
func (db *DB) CountRuns() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM scan_runs").Scan(&count)
	return count, err
}

// SetRunPlan stores the computed acquisition plan once a run has begun
func (db *DB) SetRunPlan(id string, numAngles, imagesTotal int, fileName *string) error {
	_, err := db.Exec(`
		UPDATE scan_runs SET num_angles = ?, images_total = ?, file_name = ?
		WHERE id = ?`,
		numAngles, imagesTotal, fileName, id,
	)
	return err
}

// UpdateRunProgress updates the phase and collected image count
func (db *DB) UpdateRunProgress(id string, phase string, imagesCollected int) error {
	_, err := db.Exec(`
		UPDATE scan_runs SET phase = ?, images_collected = ?
		WHERE id = ?`,
		phase, imagesCollected, id,
	)
	return err
}

// CompleteRun marks a scan run as finished
func (db *DB) CompleteRun(id string, status RunStatus, errorMsg *string) error {
	_, err := db.Exec(`
		UPDATE scan_runs SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?`,
		status, time.Now(), errorMsg, id,
	)
	return err
}

// MarkInterrupted fails any runs still marked running. Called at daemon
// startup: a run left in the running state means the previous daemon
// died mid-scan.
func (db *DB) MarkInterrupted() error {
	msg := "daemon stopped while scan was running"
	_, err := db.Exec(`
		UPDATE scan_runs SET status = ?, completed_at = ?, error_message = ?
		WHERE status = ?`,
		RunStatusFailed, time.Now(), msg, RunStatusRunning,
	)
	return err
}

// CleanupOldRuns removes completed runs older than the retention period
func (db *DB) CleanupOldRuns(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := db.Exec("DELETE FROM scan_runs WHERE completed_at < ? AND status != 'running'", cutoff)
	return err
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var preset, fileName, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &preset, &r.Status, &r.Phase, &r.StartedAt, &completedAt,
		&r.NumAngles, &r.ImagesTotal, &r.ImagesCollected, &fileName, &errorMsg)
	if err != nil {
		return nil, err
	}

	if preset.Valid {
		r.Preset = &preset.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if fileName.Valid {
		r.FileName = &fileName.String
	}
	if errorMsg.Valid {
		r.ErrorMessage = &errorMsg.String
	}

	return &r, nil
}

func scanRunRow(rows *sql.Rows) (*Run, error) {
	var r Run
	var preset, fileName, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := rows.Scan(&r.ID, &preset, &r.Status, &r.Phase, &r.StartedAt, &completedAt,
		&r.NumAngles, &r.ImagesTotal, &r.ImagesCollected, &fileName, &errorMsg)
	if err != nil {
		return nil, err
	}

	if preset.Valid {
		r.Preset = &preset.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if fileName.Valid {
		r.FileName = &fileName.String
	}
	if errorMsg.Valid {
		r.ErrorMessage = &errorMsg.String
	}

	return &r, nil
}
