package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Warehouse selection: "local", "bigquery" or "postgres"
	WarehouseType string `json:"warehouse_type"`

	// Guardrails
	SQLDialect        string   `json:"sql_dialect"`
	MaxResultRows     int      `json:"max_result_rows"`
	AllowedNamespaces []string `json:"allowed_namespaces"`
	BlockedKeywords   []string `json:"blocked_keywords"`
	BlockedFunctions  []string `json:"blocked_functions"`

	// BigQuery
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location"`
	MaxQueryBytesProcessed       int64  `json:"max_query_bytes_processed"`

	// Postgres
	PostgresDSN string `json:"postgres_dsn"`

	// Local warehouse (SQLite file, ":memory:" for ephemeral)
	LocalDBPath string `json:"local_db_path"`

	// Security
	EnableDataMasking  bool     `json:"enable_data_masking"`
	EnablePIIDetection bool     `json:"enable_pii_detection"`
	SensitiveColumns   []string `json:"sensitive_columns"`
	PIIKeywords        []string `json:"pii_keywords"`
	EnableAuditLogging bool     `json:"enable_audit_logging"`
	EnableCostTracking bool     `json:"enable_cost_tracking"`

	// Schema index (Elasticsearch)
	SchemaIndexEnabled       bool   `json:"schema_index_enabled"`
	ElasticsearchHost        string `json:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	ElasticsearchTimeout     int    `json:"elasticsearch_timeout"`
	SchemaIndexName          string `json:"schema_index_name"`
	MetricsIndexName         string `json:"metrics_index_name"`

	// AI / LLM
	AnthropicAPIKey  string            `json:"anthropic_api_key"`
	AnthropicBaseURL string            `json:"anthropic_base_url"` // override for custom proxy
	AgentTimeout     int               `json:"agent_timeout"`
	ModelList        map[string]string `json:"model_list"` // provider -> model ID

	// Evaluation
	EvalDBPath string `json:"eval_db_path"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		WarehouseType:            DefaultWarehouseType,
		SQLDialect:               DefaultSQLDialect,
		MaxResultRows:            DefaultMaxResultRows,
		AllowedNamespaces:        DefaultAllowedNamespaces,
		BigQueryLocation:         DefaultBigQueryLocation,
		MaxQueryBytesProcessed:   DefaultMaxQueryBytesProcessed,
		LocalDBPath:              DefaultLocalDBPath,
		EnableDataMasking:        true,
		EnablePIIDetection:       true,
		SensitiveColumns:         DefaultSensitiveColumns,
		PIIKeywords:              DefaultPIIKeywords,
		EnableAuditLogging:       true,
		EnableCostTracking:       true,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchTimeout:     DefaultElasticsearchTimeout,
		SchemaIndexName:          DefaultSchemaIndexName,
		MetricsIndexName:         DefaultMetricsIndexName,
		AgentTimeout:             DefaultAgentTimeout,
		ModelList:                make(map[string]string),
		EvalDBPath:               DefaultEvalDBPath,
	}

	// Load from JSON config file if specified
	if path := getEnv("INSIGHTQL_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("INSIGHTQL_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("INSIGHTQL_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("INSIGHTQL_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("INSIGHTQL_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("INSIGHTQL_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("INSIGHTQL_WAREHOUSE", ""); v != "" {
		cfg.WarehouseType = v
	}
	if v := getEnv("INSIGHTQL_SQL_DIALECT", ""); v != "" {
		cfg.SQLDialect = v
	}
	if v := getEnv("INSIGHTQL_MAX_RESULT_ROWS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxResultRows = n
		}
	}
	if v := getEnv("INSIGHTQL_ALLOWED_NAMESPACES", ""); v != "" {
		cfg.AllowedNamespaces = strings.Split(v, ",")
	}
	if v := getEnv("INSIGHTQL_LOCAL_DB", ""); v != "" {
		cfg.LocalDBPath = v
	}
	if v := getEnv("INSIGHTQL_EVAL_DB", ""); v != "" {
		cfg.EvalDBPath = v
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("POSTGRES_DSN", ""); v != "" {
		cfg.PostgresDSN = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("SCHEMA_INDEX_ENABLED", ""); v != "" {
		cfg.SchemaIndexEnabled = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
