package interfaces

import (
	"context"
	"errors"
)

// SecretID names a single entry in a SecretStore. IDs are stable strings
// chosen by the owning service, e.g. "tls-private-key".
type SecretID string

var (
	// ErrSecretNotFound is returned by Load when no entry exists for the ID.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached. This could be due to filesystem errors, a locked database
	// file, or a network failure for remote stores.
	ErrStoreUnavailable = errors.New("secret store unavailable")
)

// SecretStore provides persistence for small sensitive byte blobs: the TLS
// private key and certificate, the active bearer-token set and the
// device-token map.
//
// Implementations must be safe for concurrent use. Delete is idempotent:
// deleting an absent entry is not an error.
type SecretStore interface {
	// Load retrieves the blob stored under id.
	// Returns ErrSecretNotFound if no entry exists.
	Load(ctx context.Context, id SecretID) ([]byte, error)

	// Save stores data under id, replacing any previous entry.
	Save(ctx context.Context, id SecretID, data []byte) error

	// Delete removes the entry under id if present.
	Delete(ctx context.Context, id SecretID) error
}
