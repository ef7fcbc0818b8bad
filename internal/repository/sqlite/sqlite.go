// Package sqlite persists discovery runs so results survive restarts
// and the API can serve run history.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"guestmap/internal/domain"
)

// Repository stores discovery runs in SQLite
type Repository struct {
	db *sql.DB
}

// RunSummary is one row of run history
type RunSummary struct {
	ID           int64     `json:"id"`
	CompletedAt  time.Time `json:"completed_at"`
	TotalVMs     int       `json:"total_vms"`
	ScannedCount int       `json:"scanned_count"`
	ErrorCount   int       `json:"error_count"`
	SkippedCount int       `json:"skipped_count"`
	Databases    int       `json:"databases"`
	WebApps      int       `json:"webapps"`
	Dependencies int       `json:"dependencies"`
}

// New opens (or creates) the database and applies the schema
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		completed_at DATETIME NOT NULL,
		total_vms INTEGER NOT NULL,
		scanned_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		skipped_count INTEGER NOT NULL,
		database_count INTEGER NOT NULL,
		webapp_count INTEGER NOT NULL,
		dependency_count INTEGER NOT NULL,
		result JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_completed ON runs(completed_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close releases the database handle
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveRun persists one completed discovery result and returns its id
func (r *Repository) SaveRun(ctx context.Context, result *domain.WorkloadDiscoveryResult) (int64, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshal result: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (completed_at, total_vms, scanned_count, error_count, skipped_count,
			database_count, webapp_count, dependency_count, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		time.Now().UTC(),
		len(result.VMWorkloads),
		result.ScannedCount,
		result.ErrorCount,
		result.SkippedCount,
		result.TotalDatabases,
		result.TotalWebApps,
		len(result.Dependencies),
		data,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run id: %w", err)
	}
	return id, nil
}

// LatestResult returns the most recently completed run, or (nil, nil)
// when no run has been persisted yet
func (r *Repository) LatestResult(ctx context.Context) (*domain.WorkloadDiscoveryResult, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT result FROM runs ORDER BY id DESC LIMIT 1
	`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	var result domain.WorkloadDiscoveryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// ListRuns returns run summaries, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, completed_at, total_vms, scanned_count, error_count, skipped_count,
			database_count, webapp_count, dependency_count
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.CompletedAt, &run.TotalVMs, &run.ScannedCount,
			&run.ErrorCount, &run.SkippedCount, &run.Databases, &run.WebApps, &run.Dependencies); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
