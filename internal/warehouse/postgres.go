package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/insightql/insightql/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRunner executes SQL through a pgx connection pool.
type PostgresRunner struct {
	pool *pgxpool.Pool
}

func NewPostgresRunner(ctx context.Context, dsn string) (*PostgresRunner, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres warehouse selected but POSTGRES_DSN is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	return &PostgresRunner{pool: pool}, nil
}

func (r *PostgresRunner) Name() string { return "postgres" }

func (r *PostgresRunner) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRunner) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRunner) Query(ctx context.Context, sql string, opts QueryOptions) (*Result, error) {
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.DryRun {
		// Postgres has no dry-run mode; EXPLAIN parses and plans without
		// touching table data.
		start := time.Now()
		rows, err := r.pool.Query(qCtx, "EXPLAIN "+sql)
		if err != nil {
			return nil, fmt.Errorf("explain: %w", err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("explain: %w", err)
		}
		return &Result{ExecutionTimeMs: time.Since(start).Milliseconds()}, nil
	}

	start := time.Now()
	rows, err := r.pool.Query(qCtx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var data []map[string]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		m := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			m[col] = values[i]
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

// ListTables reads information_schema and returns one schema document per
// table in non-system schemas.
func (r *PostgresRunner) ListTables(ctx context.Context) ([]models.SchemaDoc, error) {
	const q = `
		SELECT table_schema, table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name, ordinal_position`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	defer rows.Close()

	var docs []models.SchemaDoc
	byTable := make(map[string]int)
	for rows.Next() {
		var schema, table, column, dataType string
		if err := rows.Scan(&schema, &table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		name := schema + "." + table
		idx, ok := byTable[name]
		if !ok {
			docs = append(docs, models.SchemaDoc{Table: name})
			idx = len(docs) - 1
			byTable[name] = idx
		}
		docs[idx].Columns = append(docs[idx].Columns, models.Column{Name: column, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return docs, nil
}
