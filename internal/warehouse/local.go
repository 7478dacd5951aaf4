package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/insightql/insightql/internal/models"
	_ "modernc.org/sqlite"
)

// LocalRunner executes SQL against an embedded SQLite database. It backs
// development and test deployments where no remote warehouse is available.
type LocalRunner struct {
	db   *sql.DB
	path string
}

func NewLocalRunner(path string) (*LocalRunner, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	return &LocalRunner{db: db, path: path}, nil
}

func (r *LocalRunner) Name() string { return "local" }

func (r *LocalRunner) Close() error { return r.db.Close() }

func (r *LocalRunner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB exposes the underlying handle so fixtures can be loaded in tests.
func (r *LocalRunner) DB() *sql.DB { return r.db }

func (r *LocalRunner) Query(ctx context.Context, query string, opts QueryOptions) (*Result, error) {
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.DryRun {
		// Prepare parses and plans without executing.
		start := time.Now()
		stmt, err := r.db.PrepareContext(qCtx, query)
		if err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
		stmt.Close()
		return &Result{ExecutionTimeMs: time.Since(start).Milliseconds()}, nil
	}

	start := time.Now()
	rows, err := r.db.QueryContext(qCtx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var data []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		m := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				m[col] = string(b)
			} else {
				m[col] = values[i]
			}
		}
		data = append(data, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &Result{
		Data:            data,
		Columns:         columns,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		RowCount:        int64(len(data)),
	}, nil
}

// ListTables reads sqlite_master and PRAGMA table_info for each table.
func (r *LocalRunner) ListTables(ctx context.Context) ([]models.SchemaDoc, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	var docs []models.SchemaDoc
	for _, name := range names {
		doc := models.SchemaDoc{Table: name}
		colRows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
		if err != nil {
			return nil, fmt.Errorf("table_info %q: %w", name, err)
		}
		for colRows.Next() {
			var (
				cid        int
				colName    string
				colType    string
				notNull    int
				defaultVal sql.NullString
				pk         int
			)
			if err := colRows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
				colRows.Close()
				return nil, fmt.Errorf("scan table_info: %w", err)
			}
			doc.Columns = append(doc.Columns, models.Column{Name: colName, Type: colType})
		}
		if err := colRows.Err(); err != nil {
			colRows.Close()
			return nil, fmt.Errorf("table_info rows: %w", err)
		}
		colRows.Close()
		docs = append(docs, doc)
	}
	return docs, nil
}
