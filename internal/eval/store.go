package eval

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists evaluation runs to a SQLite database so score trends can be
// compared across agent or prompt changes.
type Store struct {
	db *sql.DB
}

// RunSummary is one row of evaluation history.
type RunSummary struct {
	RunID        string  `json:"run_id"`
	Timestamp    string  `json:"timestamp"`
	TotalCases   int     `json:"total_cases"`
	PassedCases  int     `json:"passed_cases"`
	FailedCases  int     `json:"failed_cases"`
	OverallScore float64 `json:"overall_score"`
}

// OpenStore opens (or creates) the results database at path. Use ":memory:"
// for an ephemeral store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening results db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evaluation_runs (
			run_id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			total_cases INTEGER NOT NULL,
			passed_cases INTEGER NOT NULL,
			failed_cases INTEGER NOT NULL,
			overall_score REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS case_results (
			run_id TEXT NOT NULL,
			case_id TEXT NOT NULL,
			question TEXT NOT NULL,
			generated_sql TEXT,
			expected_sql TEXT,
			execution_success INTEGER NOT NULL,
			sql_similarity_score REAL NOT NULL,
			schema_compliance_score REAL NOT NULL,
			result_accuracy_score REAL NOT NULL,
			overall_case_score REAL NOT NULL,
			error_message TEXT,
			execution_time_ms INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES evaluation_runs (run_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing results schema: %w", err)
		}
	}
	return nil
}

// SaveRun writes a run summary and its per-case results in one transaction.
func (s *Store) SaveRun(ctx context.Context, r *RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO evaluation_runs
		 (run_id, timestamp, total_cases, passed_cases, failed_cases, overall_score)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		r.TotalCases, r.PassedCases, r.FailedCases, r.OverallScore)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, cr := range r.CaseResults {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO case_results
			 (run_id, case_id, question, generated_sql, expected_sql, execution_success,
			  sql_similarity_score, schema_compliance_score, result_accuracy_score,
			  overall_case_score, error_message, execution_time_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, cr.CaseID, cr.Question, cr.GeneratedSQL, cr.ExpectedSQL,
			cr.ExecutionSuccess, cr.SQLSimilarity, cr.SchemaCompliance,
			cr.ResultAccuracy, cr.OverallScore, cr.ErrorMessage, cr.ExecutionTimeMs)
		if err != nil {
			return fmt.Errorf("insert case %s: %w", cr.CaseID, err)
		}
	}

	return tx.Commit()
}

// History returns the most recent runs, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, timestamp, total_cases, passed_cases, failed_cases, overall_score
		 FROM evaluation_runs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.RunID, &rs.Timestamp, &rs.TotalCases, &rs.PassedCases, &rs.FailedCases, &rs.OverallScore); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// CaseHistory returns per-case results for one run.
func (s *Store) CaseHistory(ctx context.Context, runID string) ([]CaseResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT case_id, question, generated_sql, expected_sql, execution_success,
		        sql_similarity_score, schema_compliance_score, result_accuracy_score,
		        overall_case_score, error_message, execution_time_ms
		 FROM case_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query case history: %w", err)
	}
	defer rows.Close()

	var out []CaseResult
	for rows.Next() {
		var cr CaseResult
		if err := rows.Scan(&cr.CaseID, &cr.Question, &cr.GeneratedSQL, &cr.ExpectedSQL,
			&cr.ExecutionSuccess, &cr.SQLSimilarity, &cr.SchemaCompliance,
			&cr.ResultAccuracy, &cr.OverallScore, &cr.ErrorMessage, &cr.ExecutionTimeMs); err != nil {
			return nil, fmt.Errorf("scan case history: %w", err)
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
