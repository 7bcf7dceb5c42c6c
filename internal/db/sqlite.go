package db

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/captionworks/backend/internal/auth"
	"github.com/captionworks/backend/internal/batch"
	"github.com/captionworks/backend/internal/db/models"
)

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		options TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		identity TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'pending',
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		estimated_cost REAL NOT NULL DEFAULT 0,
		actual_cost REAL NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		billed_seconds REAL NOT NULL DEFAULT 0,
		output_path TEXT NOT NULL DEFAULT '',
		transcript_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		FOREIGN KEY (batch_id) REFERENCES batches(id)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_batch ON jobs(batch_id);
	`
	_, err := d.db.Exec(schema)
	return err
}

func (d *Database) EnsureAdmin(username, password string) error {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'admin'").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT INTO users (username, password, role) VALUES (?, ?, 'admin')",
		username, hash,
	)
	return err
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) GetUserByID(id int64) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// SaveBatch implements batch.Store. Options are stored as JSON so the schema
// survives option additions.
func (d *Database) SaveBatch(id string, opts batch.Options, createdAt time.Time) error {
	payload, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO batches (id, options, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET options = ?`,
		id, string(payload), createdAt, string(payload),
	)
	return err
}

// SaveJob implements batch.Store as a full-row upsert; the coordinator writes
// through on every transition.
func (d *Database) SaveJob(j batch.Job) error {
	_, err := d.db.Exec(`
		INSERT INTO jobs (id, batch_id, file_path, identity, state, error_kind, error,
			estimated_cost, actual_cost, duration_seconds, billed_seconds,
			output_path, transcript_path, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity = excluded.identity,
			state = excluded.state,
			error_kind = excluded.error_kind,
			error = excluded.error,
			estimated_cost = excluded.estimated_cost,
			actual_cost = excluded.actual_cost,
			duration_seconds = excluded.duration_seconds,
			billed_seconds = excluded.billed_seconds,
			output_path = excluded.output_path,
			transcript_path = excluded.transcript_path,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		j.ID, j.BatchID, j.Path, j.Identity, string(j.State), string(j.ErrorKind), j.Error,
		j.EstimatedCost, j.ActualCost, j.DurationSeconds, j.BilledSeconds,
		j.OutputPath, j.TranscriptPath, j.CreatedAt, j.StartedAt, j.CompletedAt,
	)
	return err
}

// GetBatchJobs loads a persisted batch's jobs in submission order. Used for
// batches that predate the current process.
func (d *Database) GetBatchJobs(batchID string) ([]batch.Job, error) {
	rows, err := d.db.Query(`
		SELECT id, batch_id, file_path, identity, state, error_kind, error,
			estimated_cost, actual_cost, duration_seconds, billed_seconds,
			output_path, transcript_path, created_at, started_at, completed_at
		FROM jobs WHERE batch_id = ? ORDER BY rowid ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []batch.Job
	for rows.Next() {
		var j batch.Job
		var state, kind string
		if err := rows.Scan(&j.ID, &j.BatchID, &j.Path, &j.Identity, &state, &kind, &j.Error,
			&j.EstimatedCost, &j.ActualCost, &j.DurationSeconds, &j.BilledSeconds,
			&j.OutputPath, &j.TranscriptPath, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, err
		}
		j.State = batch.State(state)
		j.ErrorKind = batch.ErrorKind(kind)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetBatchOptions returns the stored options and creation time for a batch, or
// sql.ErrNoRows when unknown.
func (d *Database) GetBatchOptions(batchID string) (batch.Options, time.Time, error) {
	var payload string
	var createdAt time.Time
	err := d.db.QueryRow("SELECT options, created_at FROM batches WHERE id = ?", batchID).
		Scan(&payload, &createdAt)
	if err != nil {
		return batch.Options{}, time.Time{}, err
	}
	var opts batch.Options
	if err := json.Unmarshal([]byte(payload), &opts); err != nil {
		return batch.Options{}, time.Time{}, err
	}
	return opts, createdAt, nil
}

// GetSetting returns a setting value by key, or defaultVal if not found
func (d *Database) GetSetting(key, defaultVal string) string {
	var val string
	err := d.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err != nil {
		return defaultVal
	}
	return val
}

// SetSetting upserts a setting
func (d *Database) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP`,
		key, value, value,
	)
	return err
}

// GetAllSettings returns all settings as a map
func (d *Database) GetAllSettings() (map[string]string, error) {
	rows, err := d.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
