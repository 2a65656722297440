package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// QueryRun is one tracked query: its request shape plus the final snapshot
// once the query reaches a terminal status.
type QueryRun struct {
	ID          string          `json:"id"`
	Question    string          `json:"question"`
	Mode        string          `json:"mode"` // "grouped" | "flat"
	Agents      json.RawMessage `json:"agents,omitempty"`
	Report      bool            `json:"report"`
	Status      string          `json:"status"` // running | completed | cancelled | superseded
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

const runColumns = `id, question, mode, agents, report, status, snapshot, started_at, completed_at`

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*QueryRun, error) {
	r := &QueryRun{}
	var agents, snapshot *string
	err := scanner.Scan(&r.ID, &r.Question, &r.Mode, &agents, &r.Report, &r.Status, &snapshot, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if agents != nil {
		r.Agents = json.RawMessage(*agents)
	}
	if snapshot != nil {
		r.Snapshot = json.RawMessage(*snapshot)
	}
	return r, nil
}

func (s *Store) SaveQueryRun(r *QueryRun) error {
	_, err := s.db.Exec(`
		INSERT INTO query_runs (id, question, mode, agents, report, status, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			snapshot = excluded.snapshot,
			completed_at = CASE WHEN excluded.status IN ('completed', 'cancelled', 'superseded') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Question, r.Mode, r.Agents, r.Report, r.Status, r.Snapshot)
	if err != nil {
		return fmt.Errorf("save query run: %w", err)
	}
	return nil
}

func (s *Store) GetQueryRun(id string) (*QueryRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM query_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get query run: %w", err)
	}
	return r, nil
}

func (s *Store) ListQueryRuns(limit int) ([]QueryRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM query_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query runs: %w", err)
	}
	defer rows.Close()

	var runs []QueryRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) UpdateQueryRun(id string, status string, snapshot json.RawMessage) error {
	_, err := s.db.Exec(`
		UPDATE query_runs
		SET status = ?, snapshot = ?,
		    completed_at = CASE WHEN ? IN ('completed', 'cancelled', 'superseded') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`, status, snapshot, status, id)
	return err
}

func (s *Store) DeleteQueryRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM query_runs WHERE id = ?`, id)
	return err
}

// PruneRunsBefore deletes terminal runs that started before cutoff and
// returns the number removed. Active runs are never pruned.
func (s *Store) PruneRunsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM query_runs
		WHERE started_at < ? AND status != 'running'`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune query runs: %w", err)
	}
	return res.RowsAffected()
}
