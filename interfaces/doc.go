// Package interfaces defines the collaborator boundaries of the pairing and
// transfer subsystem.
//
// The subsystem owns pairing, TLS identity and transport concerns. Everything
// else is reached through a small interface defined here:
//
//   - SecretStore: keyed byte-blob persistence for keys, certificates and
//     token state. Backing implementations live in the secretstore package.
//   - AuditSink: structured security event reporting.
//   - DataProvider: the on-device data source queried by the transfer API.
//
// Keeping these as interfaces lets every service be tested against in-memory
// fakes and lets deployments pick their own storage and logging backends.
package interfaces
