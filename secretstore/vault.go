package secretstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// VaultStore implements a SecretStore using HashiCorp Vault's KV v2 engine.
// Authentication uses the standard Vault environment (VAULT_TOKEN et al.)
// unless a token is supplied explicitly.
type VaultStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultStore creates a Vault-backed secret store.
//
// Parameters:
//   - address: Vault server address, e.g. https://vault.example.com:8200
//   - mountPath: KV v2 mount, e.g. "secret"
//   - dataPath: path prefix within the mount, e.g. "device-transfer"
//   - token: Vault token; empty means use the environment
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: creating Vault client: %v", interfaces.ErrStoreUnavailable, err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultStore{
		client:    client,
		mountPath: mountPath,
		dataPath:  dataPath,
		log:       log,
	}, nil
}

// Load implements interfaces.SecretStore.
func (s *VaultStore) Load(ctx context.Context, id interfaces.SecretID) ([]byte, error) {
	path := s.secretPath(id)
	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrSecretNotFound
	}

	// KV v2 nests the payload under "data".
	inner, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, interfaces.ErrSecretNotFound
	}
	encoded, ok := inner["value"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: malformed entry for %s", interfaces.ErrStoreUnavailable, id)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding entry for %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	s.log.Debug("Loaded secret from Vault", slog.String("id", string(id)))
	return data, nil
}

// Save implements interfaces.SecretStore.
func (s *VaultStore) Save(ctx context.Context, id interfaces.SecretID, data []byte) error {
	path := s.secretPath(id)
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"value": base64.StdEncoding.EncodeToString(data),
		},
	}
	if _, err := s.client.Logical().WriteWithContext(ctx, path, payload); err != nil {
		return fmt.Errorf("%w: writing %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	return nil
}

// Delete implements interfaces.SecretStore.
func (s *VaultStore) Delete(ctx context.Context, id interfaces.SecretID) error {
	path := s.secretPath(id)
	if _, err := s.client.Logical().DeleteWithContext(ctx, path); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", interfaces.ErrStoreUnavailable, id, err)
	}
	return nil
}

func (s *VaultStore) secretPath(id interfaces.SecretID) string {
	return fmt.Sprintf("%s/data/%s/%s", s.mountPath, s.dataPath, id)
}
