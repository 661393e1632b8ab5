// Package storage persists verification runs in a local SQLite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fangwenqi/rally/pkg/logger"
	"github.com/fangwenqi/rally/pkg/models"
)

// Database is the verification store backing the reporters and the server.
type Database struct {
	db   *sql.DB
	path string
}

// NewDatabase creates or opens the verification database under dataDir.
func NewDatabase(dataDir string) (*Database, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "verifications.db")
	logger.Debugf("Opening verification database at %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db, path: dbPath}
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return database, nil
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS verifications (
			uuid TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			status TEXT NOT NULL,
			run_args TEXT,
			tests_count INTEGER,
			tests_duration REAL,
			skipped INTEGER,
			success INTEGER,
			expected_failures INTEGER,
			unexpected_success INTEGER,
			failures INTEGER
		)`,

		`CREATE INDEX IF NOT EXISTS idx_verification_created
		 ON verifications(created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS test_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			verification_uuid TEXT NOT NULL,
			test_id TEXT NOT NULL,
			name TEXT NOT NULL,
			tags TEXT,
			status TEXT NOT NULL,
			duration REAL,
			reason TEXT,
			traceback TEXT,
			FOREIGN KEY (verification_uuid) REFERENCES verifications(uuid)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_test_result
		 ON test_results(verification_uuid, test_id)`,
	}

	for i, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// SaveVerification stores a run and all of its test results.
func (d *Database) SaveVerification(run *models.VerificationRun) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runArgs, err := json.Marshal(run.RunArgs)
	if err != nil {
		return fmt.Errorf("failed to encode run args: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO verifications (
			uuid, created_at, updated_at, status, run_args,
			tests_count, tests_duration, skipped, success,
			expected_failures, unexpected_success, failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.UUID,
		run.CreatedAt.Format(time.RFC3339),
		run.UpdatedAt.Format(time.RFC3339),
		run.Status,
		string(runArgs),
		run.TestsCount,
		run.TestsDuration,
		run.Skipped,
		run.Success,
		run.ExpectedFailures,
		run.UnexpectedSuccess,
		run.Failures,
	)
	if err != nil {
		return fmt.Errorf("failed to save verification %s: %w", run.UUID, err)
	}

	for testID, result := range run.Tests {
		tags, err := json.Marshal(result.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags for %s: %w", testID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO test_results (
				verification_uuid, test_id, name, tags,
				status, duration, reason, traceback
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.UUID, testID, result.Name, string(tags),
			result.Status, result.Duration, result.Reason, result.Traceback,
		)
		if err != nil {
			return fmt.Errorf("failed to save result for %s: %w", testID, err)
		}
	}

	return tx.Commit()
}

// GetVerification loads one run with its test results.
func (d *Database) GetVerification(uuid string) (*models.VerificationRun, error) {
	row := d.db.QueryRow(`
		SELECT uuid, created_at, updated_at, status, run_args,
		       tests_count, tests_duration, skipped, success,
		       expected_failures, unexpected_success, failures
		FROM verifications WHERE uuid = ?`, uuid)

	run, err := scanVerification(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("verification %q not found", uuid)
	}
	if err != nil {
		return nil, err
	}

	if err := d.loadTests(run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetVerifications loads runs in the order the UUIDs were given, which is the
// order the reporters aggregate them in.
func (d *Database) GetVerifications(uuids []string) ([]*models.VerificationRun, error) {
	runs := make([]*models.VerificationRun, 0, len(uuids))
	for _, uuid := range uuids {
		run, err := d.GetVerification(uuid)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListRecent returns summaries of the most recent runs, newest first, without
// their test results.
func (d *Database) ListRecent(limit int) ([]*models.VerificationRun, error) {
	rows, err := d.db.Query(`
		SELECT uuid, created_at, updated_at, status, run_args,
		       tests_count, tests_duration, skipped, success,
		       expected_failures, unexpected_success, failures
		FROM verifications
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.VerificationRun
	for rows.Next() {
		run, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteVerification removes a run and its test results.
func (d *Database) DeleteVerification(uuid string) error {
	if _, err := d.db.Exec(`DELETE FROM test_results WHERE verification_uuid = ?`, uuid); err != nil {
		return fmt.Errorf("failed to delete results of %s: %w", uuid, err)
	}
	if _, err := d.db.Exec(`DELETE FROM verifications WHERE uuid = ?`, uuid); err != nil {
		return fmt.Errorf("failed to delete verification %s: %w", uuid, err)
	}
	return nil
}

// Close closes the underlying database.
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerification(row rowScanner) (*models.VerificationRun, error) {
	run := &models.VerificationRun{}
	var createdAt, updatedAt, runArgs string

	err := row.Scan(
		&run.UUID,
		&createdAt,
		&updatedAt,
		&run.Status,
		&runArgs,
		&run.TestsCount,
		&run.TestsDuration,
		&run.Skipped,
		&run.Success,
		&run.ExpectedFailures,
		&run.UnexpectedSuccess,
		&run.Failures,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if runArgs != "" {
		if err := json.Unmarshal([]byte(runArgs), &run.RunArgs); err != nil {
			logger.Warnf("Discarding malformed run args of %s: %v", run.UUID, err)
		}
	}
	return run, nil
}

func (d *Database) loadTests(run *models.VerificationRun) error {
	rows, err := d.db.Query(`
		SELECT test_id, name, tags, status, duration, reason, traceback
		FROM test_results WHERE verification_uuid = ?`, run.UUID)
	if err != nil {
		return err
	}
	defer rows.Close()

	run.Tests = make(map[string]*models.TestResult)
	for rows.Next() {
		var testID, tags string
		result := &models.TestResult{}
		err := rows.Scan(&testID, &result.Name, &tags, &result.Status,
			&result.Duration, &result.Reason, &result.Traceback)
		if err != nil {
			return err
		}
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &result.Tags); err != nil {
				logger.Warnf("Discarding malformed tags of %s: %v", testID, err)
			}
		}
		run.Tests[testID] = result
	}
	return rows.Err()
}
