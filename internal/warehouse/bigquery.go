package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/insightql/insightql/internal/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryRunner executes SQL through the BigQuery SDK.
type BigQueryRunner struct {
	client    *bigquery.Client
	projectID string
	location  string
}

func NewBigQueryRunner(ctx context.Context, projectID, credentialsFile, location string) (*BigQueryRunner, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}

	return &BigQueryRunner{
		client:    client,
		projectID: projectID,
		location:  location,
	}, nil
}

func (r *BigQueryRunner) Name() string { return "bigquery" }

func (r *BigQueryRunner) Close() error {
	return r.client.Close()
}

// Ping verifies BigQuery connectivity with a trivial query.
func (r *BigQueryRunner) Ping(ctx context.Context) error {
	q := r.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

// Query runs a SQL statement and returns results.
func (r *BigQueryRunner) Query(ctx context.Context, sql string, opts QueryOptions) (*Result, error) {
	q := r.client.Query(sql)
	q.DryRun = opts.DryRun
	q.DisableQueryCache = !opts.UseCache

	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	job, err := q.Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	status, err := job.Wait(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	execMs := time.Since(start).Milliseconds()

	stats := job.LastStatus().Statistics
	var bytesProcessed int64
	var cacheHit bool
	if stats != nil {
		bytesProcessed = stats.TotalBytesProcessed
		if qStats, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			cacheHit = qStats.CacheHit
		}
	}

	if opts.DryRun {
		return &Result{
			JobID:           job.ID(),
			BytesProcessed:  bytesProcessed,
			ExecutionTimeMs: execMs,
		}, nil
	}

	it, err := job.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	var rows []map[string]interface{}
	var columns []string
	first := true

	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if first && it.Schema != nil {
			for _, f := range it.Schema {
				columns = append(columns, f.Name)
			}
			first = false
		}

		m := make(map[string]interface{}, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}

	return &Result{
		Data:            rows,
		Columns:         columns,
		JobID:           job.ID(),
		BytesProcessed:  bytesProcessed,
		CacheHit:        cacheHit,
		ExecutionTimeMs: execMs,
		RowCount:        int64(len(rows)),
	}, nil
}

// ListTables walks every dataset in the project and returns one schema
// document per table.
func (r *BigQueryRunner) ListTables(ctx context.Context) ([]models.SchemaDoc, error) {
	var docs []models.SchemaDoc

	dsIt := r.client.Datasets(ctx)
	for {
		ds, err := dsIt.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}

		tblIt := ds.Tables(ctx)
		for {
			tbl, err := tblIt.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("list tables in %q: %w", ds.DatasetID, err)
			}
			meta, err := tbl.Metadata(ctx)
			if err != nil {
				log.Warn().Err(err).
					Str("dataset", ds.DatasetID).
					Str("table", tbl.TableID).
					Msg("failed to get table metadata")
				continue
			}

			doc := models.SchemaDoc{
				Table:       fmt.Sprintf("%s.%s", ds.DatasetID, tbl.TableID),
				Description: meta.Description,
				RowCount:    int64(meta.NumRows),
			}
			for _, f := range meta.Schema {
				doc.Columns = append(doc.Columns, models.Column{
					Name:        f.Name,
					Type:        string(f.Type),
					Description: f.Description,
				})
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
