// Package secretstore provides SecretStore implementations selected by URI
// scheme through a factory.
//
// Supported URI schemes:
//
//   - file:///var/lib/transfer/secrets: one 0600 file per secret
//   - bolt:///var/lib/transfer/secrets.db: embedded bbolt database
//   - vault://vault.example.com:8200/secret/transfer: HashiCorp Vault KV v2
//
// The in-memory store is not reachable through the factory; it exists for
// tests and is constructed directly with NewMemoryStore.
package secretstore
