// Package audit provides security audit logging for SIEM consumption.
// It logs safety-gate decisions in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventQueryBlocked is logged when the safety gate rejects a query.
	EventQueryBlocked SecurityEventType = "query_blocked"
	// EventInjectionPattern is logged when libinjection flags an injection
	// fingerprint, regardless of whether the query was blocked.
	EventInjectionPattern SecurityEventType = "injection_pattern"
	// EventUnrestrictedExecution is logged when a write/DDL statement is
	// allowed through because the caller runs in unrestricted mode.
	EventUnrestrictedExecution SecurityEventType = "unrestricted_mode_used"
)

// SecurityEvent represents an auditable safety-gate event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp         time.Time         `json:"timestamp"`
	EventID           uuid.UUID         `json:"event_id"`
	EventType         SecurityEventType `json:"event_type"`
	SessionID         string            `json:"session_id"`
	MatchedOperations []string          `json:"matched_operations,omitempty"`
	Fingerprint       string            `json:"fingerprint,omitempty"`
	Query             string            `json:"query"`
	Severity          string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs safety-gate events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace. The "security_audit" namespace makes the events easy to filter
// in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogQueryBlocked records a safety-gate rejection. Logged at WARN level:
// the gate working as intended is notable, not an incident.
func (a *SecurityAuditor) LogQueryBlocked(sessionID string, matchedOperations []string, queryText string) {
	event := a.newEvent(EventQueryBlocked, sessionID, queryText, "warning")
	event.MatchedOperations = matchedOperations

	a.logger.Warn("query blocked by safety gate",
		zap.String("event_json", marshalEvent(event)),
		zap.String("session_id", sessionID),
		zap.Strings("matched_operations", matchedOperations),
		zap.String("severity", event.Severity),
	)
}

// LogInjectionPattern records a libinjection fingerprint match. Logged at
// ERROR level with "critical" severity for immediate alerting; the
// fingerprint enables pattern analysis across sessions.
func (a *SecurityAuditor) LogInjectionPattern(sessionID, fingerprint, queryText string) {
	event := a.newEvent(EventInjectionPattern, sessionID, queryText, "critical")
	event.Fingerprint = fingerprint

	a.logger.Error("SQL injection pattern detected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("session_id", sessionID),
		zap.String("fingerprint", fingerprint),
		zap.String("severity", event.Severity),
	)
}

// LogUnrestrictedExecution records a write/DDL statement passing the gate in
// unrestricted mode. Logged at WARN level so the audit trail shows every use
// of the escape hatch.
func (a *SecurityAuditor) LogUnrestrictedExecution(sessionID string, matchedOperations []string, queryText string) {
	event := a.newEvent(EventUnrestrictedExecution, sessionID, queryText, "warning")
	event.MatchedOperations = matchedOperations

	a.logger.Warn("write statement allowed in unrestricted mode",
		zap.String("event_json", marshalEvent(event)),
		zap.String("session_id", sessionID),
		zap.Strings("matched_operations", matchedOperations),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) newEvent(eventType SecurityEventType, sessionID, queryText, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventID:   uuid.New(),
		EventType: eventType,
		SessionID: sessionID,
		Query:     logging.SanitizeQuery(queryText),
		Severity:  severity,
	}
}

// marshalEvent serializes the event for SIEM ingestion. Marshaling known
// types never fails, so the error is ignored.
func marshalEvent(event SecurityEvent) string {
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
