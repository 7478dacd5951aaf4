package security

import (
	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogQuery records a warehouse execution event
func (a *AuditLogger) LogQuery(
	sql, apiKey, userContext string,
	executionTimeMs int64,
	rowCount int,
	bytesProcessed int64,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}
	sqlHash := hashStr(sql)[:16]
	keyHash := hashStr(apiKey)[:16]

	evt := log.Info().
		Str("event", "query_audit").
		Str("sql_hash", sqlHash).
		Str("api_key_hash", keyHash).
		Str("user_context", userContext).
		Int64("execution_time_ms", executionTimeMs).
		Int("row_count", rowCount).
		Int64("bytes_processed", bytesProcessed).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogRejectedSQL records a query refused by validation. The reason class is
// logged in the clear; the SQL itself only as a hash.
func (a *AuditLogger) LogRejectedSQL(sql, apiKey, reason, detail string) {
	if !a.enabled {
		return
	}
	log.Warn().
		Str("event", "sql_rejected").
		Str("sql_hash", hashStr(sql)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("reason", reason).
		Str("detail", detail).
		Msg("audit")
}

// LogAIAgentRequest records an AI agent request event
func (a *AuditLogger) LogAIAgentRequest(
	prompt, apiKey, generatedSQL string,
	validationPassed bool,
	executionTimeMs int64,
) {
	if !a.enabled {
		return
	}
	promptHash := hashStr(prompt)[:16]
	keyHash := hashStr(apiKey)[:16]
	sqlHash := ""
	if generatedSQL != "" {
		sqlHash = hashStr(generatedSQL)[:16]
	}

	log.Info().
		Str("event", "agent_audit").
		Str("prompt_hash", promptHash).
		Str("api_key_hash", keyHash).
		Str("sql_hash", sqlHash).
		Bool("validation_passed", validationPassed).
		Int64("execution_time_ms", executionTimeMs).
		Msg("agent audit")
}
