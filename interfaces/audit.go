package interfaces

import "context"

// AuditEventType classifies security events emitted by the subsystem.
type AuditEventType string

const (
	EventRequest          AuditEventType = "request"
	EventPairingSuccess   AuditEventType = "pairing_success"
	EventPairingFailure   AuditEventType = "pairing_failure"
	EventAuthFailure      AuditEventType = "auth_failure"
	EventTokenRevoked     AuditEventType = "token_revoked"
	EventIdentityCreated  AuditEventType = "identity_created"
	EventIdentityRotated  AuditEventType = "identity_rotated"
	EventInsecureStart    AuditEventType = "insecure_start"
	EventServerStarted    AuditEventType = "server_started"
	EventServerStopped    AuditEventType = "server_stopped"
	EventConnectionClosed AuditEventType = "connection_closed"
)

// AuditEvent describes a single security-relevant occurrence. Token values
// and request bodies must never be placed in an event.
type AuditEvent struct {
	Type       AuditEventType
	Method     string
	Path       string
	RemoteAddr string
	DeviceID   string
	Detail     string
}

// AuditSink receives security events. Implementations must not block the
// caller for longer than a log write.
type AuditSink interface {
	RecordEvent(ctx context.Context, event AuditEvent)
}
