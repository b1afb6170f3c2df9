package secretstore

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// StoreFor creates a SecretStore from a location URI.
//
// Supported schemes:
//   - file:///path/to/dir: per-secret files
//   - bolt:///path/to/secrets.db: embedded bbolt database
//   - vault://host:port/mount/path?token=...: Vault KV v2
func StoreFor(locationURI string, log *slog.Logger) (interfaces.SecretStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("invalid secret store URI %q: %w", locationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileStore(filepath.Join(u.Host, u.Path), log)
	case "bolt":
		return NewBoltStore(filepath.Join(u.Host, u.Path), log)
	case "vault":
		return createVaultStore(u, log)
	default:
		return nil, fmt.Errorf("unsupported secret store scheme: %s", u.Scheme)
	}
}

// createVaultStore maps vault://host:port/mount/path onto a VaultStore. The
// scheme for the Vault connection itself defaults to https and can be forced
// to http with ?insecure=true (local development only).
func createVaultStore(u *url.URL, log *slog.Logger) (interfaces.SecretStore, error) {
	connScheme := "https"
	if u.Query().Get("insecure") == "true" {
		connScheme = "http"
	}
	address := fmt.Sprintf("%s://%s", connScheme, u.Host)

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault URI must be vault://host:port/mount/path, got %q", u.String())
	}

	return NewVaultStore(address, parts[0], parts[1], u.Query().Get("token"), log)
}
