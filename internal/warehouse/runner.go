// Package warehouse abstracts the analytical engines SQL can be executed
// against. A Runner executes already-validated SQL; nothing in this package
// inspects or rewrites queries.
package warehouse

import (
	"context"
	"fmt"

	"github.com/insightql/insightql/internal/config"
	"github.com/insightql/insightql/internal/models"
)

// QueryOptions tune a single execution.
type QueryOptions struct {
	DryRun    bool
	TimeoutMs int
	UseCache  bool
}

// Result holds the outcome of one execution in an engine-neutral shape.
type Result struct {
	Data            []map[string]interface{}
	Columns         []string
	JobID           string
	BytesProcessed  int64
	CacheHit        bool
	ExecutionTimeMs int64
	RowCount        int64
}

// Runner executes SQL against one engine. Implementations are safe for
// concurrent use.
type Runner interface {
	// Name identifies the engine ("local", "bigquery", "postgres").
	Name() string

	// Query executes one statement and returns its rows.
	Query(ctx context.Context, sql string, opts QueryOptions) (*Result, error)

	// ListTables introspects the warehouse and returns one document per
	// table, suitable for feeding the schema index.
	ListTables(ctx context.Context) ([]models.SchemaDoc, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// New builds the Runner selected by cfg.WarehouseType.
func New(ctx context.Context, cfg *config.Config) (Runner, error) {
	switch cfg.WarehouseType {
	case "local", "":
		return NewLocalRunner(cfg.LocalDBPath)
	case "bigquery":
		return NewBigQueryRunner(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials, cfg.BigQueryLocation)
	case "postgres":
		return NewPostgresRunner(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported warehouse type: %q", cfg.WarehouseType)
	}
}
