// Package audit records security-relevant gateway operations: registration
// handshakes, credential rotations, party lifecycle changes. Recording is
// best-effort: a failing audit backend degrades to a log line and a metric,
// it never fails the operation being audited.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Category classifies an audit entry.
type Category string

const (
	// CategoryRegistration covers the credentials handshake lifecycle.
	CategoryRegistration Category = "registration"

	// CategoryParty covers party directory mutations.
	CategoryParty Category = "party"

	// CategoryCredentials covers token rotation and revocation.
	CategoryCredentials Category = "credentials"
)

// Entry is one audit record. Access tokens are never stored in entries;
// callers pass a fingerprint or nothing at all.
type Entry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Category    Category          `json:"category"`
	Action      string            `json:"action"`
	CountryCode string            `json:"country_code,omitempty"`
	PartyID     string            `json:"party_id,omitempty"`
	Role        string            `json:"role,omitempty"`
	Outcome     string            `json:"outcome"`
	Details     map[string]string `json:"details,omitempty"`
}

// Sink persists audit entries.
type Sink interface {
	// Append persists one entry.
	Append(ctx context.Context, entry *Entry) error

	// Close releases the sink's resources.
	Close() error
}

// Log writes audit entries to a sink, swallowing sink failures.
type Log struct {
	sink   Sink
	logger *zap.Logger
}

// NewLog creates an audit log over the given sink.
func NewLog(sink Sink, logger *zap.Logger) *Log {
	if sink == nil {
		panic("sink cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &Log{sink: sink, logger: logger}
}

// Record stamps and persists an entry. Failures are logged and counted but
// never surfaced: audit is an observer of operations, not a participant.
func (l *Log) Record(ctx context.Context, entry *Entry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = "success"
	}

	if err := l.sink.Append(ctx, entry); err != nil {
		RecordSinkFailure()
		l.logger.Warn("audit append failed",
			zap.String("category", string(entry.Category)),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return
	}

	RecordEntry(string(entry.Category), entry.Outcome)
}

// Close closes the underlying sink.
func (l *Log) Close() error {
	return l.sink.Close()
}

// NopSink discards every entry. Used when auditing is disabled.
type NopSink struct{}

// Append discards the entry.
func (NopSink) Append(context.Context, *Entry) error { return nil }

// Close is a no-op.
func (NopSink) Close() error { return nil }
