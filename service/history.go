package service

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/model"
)

// JobHistory archives terminal jobs to a sqlite database so they
// outlive the in-memory ledger's cleanup. A nil *JobHistory is a
// valid, disabled archive: Record and Recent become no-ops.
type JobHistory struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS job_history (
	id          TEXT PRIMARY KEY,
	tenant      TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT,
	error_msg   TEXT,
	created_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_history_tenant ON job_history (tenant, finished_at);
`

// OpenJobHistory opens (creating if needed) the archive database and
// applies the schema. An empty path returns a disabled archive.
func OpenJobHistory(path string) (*JobHistory, error) {
	if path == "" {
		return nil, nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &JobHistory{db: db}, nil
}

// HistoryEntry is one archived terminal job.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Tenant     string    `json:"tenant"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Record archives a terminal job. Non-terminal jobs are skipped.
func (h *JobHistory) Record(job *model.AnalysisJob) error {
	if h == nil {
		return nil
	}
	if !job.Terminal() {
		return nil
	}

	query := `
		INSERT OR REPLACE INTO job_history (
			id, tenant, status, message, error_msg, created_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := h.db.Exec(query,
		job.ID,
		job.Tenant,
		job.Status,
		job.Message,
		job.ErrorMsg,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("record job history: %w", err)
	}
	return nil
}

// Recent returns the tenant's archived jobs, newest first.
func (h *JobHistory) Recent(tenant string, limit int) ([]HistoryEntry, error) {
	if h == nil {
		return []HistoryEntry{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant, status, message, error_msg, created_at, finished_at
		FROM job_history
		WHERE tenant = ?
		ORDER BY finished_at DESC
		LIMIT ?
	`
	rows, err := h.db.Query(query, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		err := rows.Scan(
			&e.ID,
			&e.Tenant,
			&e.Status,
			&e.Message,
			&e.ErrorMsg,
			&e.CreatedAt,
			&e.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job history: %w", err)
	}

	return entries, nil
}

// Close releases the underlying database.
func (h *JobHistory) Close() error {
	if h == nil {
		return nil
	}
	return h.db.Close()
}
