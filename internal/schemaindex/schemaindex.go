// Package schemaindex maintains a searchable catalog of warehouse tables and
// curated metric definitions in Elasticsearch, so natural-language questions
// can be matched to the tables most likely to answer them.
package schemaindex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/insightql/insightql/internal/models"
	"github.com/rs/zerolog/log"
)

// Index wraps the go-elasticsearch client around two indices: one for table
// schemas, one for metric definitions.
type Index struct {
	client       *elasticsearch.Client
	schemaIndex  string
	metricsIndex string
}

// Options configure the Elasticsearch connection.
type Options struct {
	Scheme       string
	Host         string
	Port         int
	User         string
	Password     string
	VerifyCerts  bool
	MaxRetries   int
	SchemaIndex  string
	MetricsIndex string
}

func New(opts Options) (*Index, error) {
	addr := fmt.Sprintf("%s://%s:%d", opts.Scheme, opts.Host, opts.Port)

	cfg := elasticsearch.Config{
		Addresses:  []string{addr},
		MaxRetries: opts.MaxRetries,
	}
	if opts.User != "" {
		cfg.Username = opts.User
		cfg.Password = opts.Password
	}
	if !opts.VerifyCerts {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &Index{
		client:       client,
		schemaIndex:  opts.SchemaIndex,
		metricsIndex: opts.MetricsIndex,
	}, nil
}

// Ping verifies cluster connectivity.
func (ix *Index) Ping(ctx context.Context) error {
	res, err := ix.client.Ping(ix.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// IndexTables writes one document per table and returns the count indexed.
// Documents are keyed by table name, so reindexing overwrites in place.
func (ix *Index) IndexTables(ctx context.Context, docs []models.SchemaDoc) (int, error) {
	indexed := 0
	for _, doc := range docs {
		if err := ix.indexDoc(ctx, ix.schemaIndex, docID(doc.Table), doc); err != nil {
			return indexed, fmt.Errorf("index table %q: %w", doc.Table, err)
		}
		indexed++
	}
	log.Info().Int("tables", indexed).Str("index", ix.schemaIndex).Msg("schema index updated")
	return indexed, nil
}

// IndexMetrics writes one document per metric definition.
func (ix *Index) IndexMetrics(ctx context.Context, docs []models.MetricDoc) (int, error) {
	indexed := 0
	for _, doc := range docs {
		if err := ix.indexDoc(ctx, ix.metricsIndex, docID(doc.Name), doc); err != nil {
			return indexed, fmt.Errorf("index metric %q: %w", doc.Name, err)
		}
		indexed++
	}
	log.Info().Int("metrics", indexed).Str("index", ix.metricsIndex).Msg("metrics index updated")
	return indexed, nil
}

func (ix *Index) indexDoc(ctx context.Context, index, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	res, err := ix.client.Index(
		index,
		bytes.NewReader(body),
		ix.client.Index.WithContext(ctx),
		ix.client.Index.WithDocumentID(id),
		ix.client.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index error: %s", res.Status())
	}
	io.Copy(io.Discard, res.Body)
	return nil
}

// SearchTables returns the tables most relevant to a natural-language query,
// best match first.
func (ix *Index) SearchTables(ctx context.Context, query string, size int) ([]models.SchemaSearchHit, error) {
	raw, err := ix.search(ctx, ix.schemaIndex, query, size,
		[]string{"table^3", "description^2", "columns.name", "columns.description"})
	if err != nil {
		return nil, err
	}

	var hits []models.SchemaSearchHit
	for _, h := range rawHits(raw) {
		var doc models.SchemaDoc
		if err := remarshal(h.source, &doc); err != nil {
			return nil, fmt.Errorf("decode schema doc: %w", err)
		}
		hits = append(hits, models.SchemaSearchHit{Score: h.score, Table: &doc})
	}
	return hits, nil
}

// SearchMetrics returns the metric definitions most relevant to a query.
func (ix *Index) SearchMetrics(ctx context.Context, query string, size int) ([]models.SchemaSearchHit, error) {
	raw, err := ix.search(ctx, ix.metricsIndex, query, size,
		[]string{"name^3", "description^2", "sql"})
	if err != nil {
		return nil, err
	}

	var hits []models.SchemaSearchHit
	for _, h := range rawHits(raw) {
		var doc models.MetricDoc
		if err := remarshal(h.source, &doc); err != nil {
			return nil, fmt.Errorf("decode metric doc: %w", err)
		}
		hits = append(hits, models.SchemaSearchHit{Score: h.score, Metric: &doc})
	}
	return hits, nil
}

func (ix *Index) search(ctx context.Context, index, query string, size int, fields []string) (map[string]interface{}, error) {
	if size <= 0 {
		size = 5
	}
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    fields,
				"fuzziness": "AUTO",
			},
		},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(index),
		ix.client.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	return decodeBody(res.Body, res.Status())
}

type rawHit struct {
	score  float64
	source map[string]interface{}
}

func rawHits(raw map[string]interface{}) []rawHit {
	var out []rawHit
	hitsObj, ok := raw["hits"].(map[string]interface{})
	if !ok {
		return nil
	}
	hits, ok := hitsObj["hits"].([]interface{})
	if !ok {
		return nil
	}
	for _, h := range hits {
		hm, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		var rh rawHit
		if score, ok := hm["_score"].(float64); ok {
			rh.score = score
		}
		if src, ok := hm["_source"].(map[string]interface{}); ok {
			rh.source = src
		}
		out = append(out, rh)
	}
	return out
}

func remarshal(src map[string]interface{}, dst interface{}) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func decodeBody(r io.Reader, status string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}

// docID makes a table or metric name safe to use as a document ID.
func docID(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
