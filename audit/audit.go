// Package audit provides slog-backed implementations of the AuditSink
// collaborator. Events carry method, path and identifiers only; token values
// and request bodies never reach the sink.
package audit

import (
	"context"
	"log/slog"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// Logger records audit events through a structured logger, tagging every
// line with audit=security so collectors can separate the stream.
type Logger struct {
	log *slog.Logger
}

// NewLogger creates an audit sink writing through log.
func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log.With("audit", "security")}
}

// RecordEvent implements interfaces.AuditSink.
func (l *Logger) RecordEvent(ctx context.Context, event interfaces.AuditEvent) {
	attrs := []any{slog.String("event_type", string(event.Type))}
	if event.Method != "" {
		attrs = append(attrs, slog.String("method", event.Method))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}
	l.log.InfoContext(ctx, "security audit event", attrs...)
}

// Nop is an AuditSink that discards every event.
type Nop struct{}

// RecordEvent implements interfaces.AuditSink.
func (Nop) RecordEvent(ctx context.Context, event interfaces.AuditEvent) {}
