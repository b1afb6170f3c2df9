package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/device-transfer-backend/interfaces"
	"github.com/vitalsync/device-transfer-backend/secretstore"
)

func newTestService() (*Service, *secretstore.MemoryStore) {
	store := secretstore.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, "Vital Sync Device", "VitalSync", log), store
}

// The generated certificate must be parseable by the standard library and
// carry the fields we encoded by hand.
func TestGeneratedCertificateParses(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	id, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(id.CertificateDER)
	require.NoError(t, err)

	assert.Equal(t, "Vital Sync Device", cert.Subject.CommonName)
	require.Len(t, cert.Subject.Organization, 1)
	assert.Equal(t, "VitalSync", cert.Subject.Organization[0])

	// Self-signed: issuer equals subject and the signature verifies with the
	// certificate's own key.
	assert.Equal(t, cert.Subject.String(), cert.Issuer.String())
	assert.Equal(t, x509.ECDSAWithSHA256, cert.SignatureAlgorithm)
	require.NoError(t, cert.CheckSignatureFrom(cert))

	assert.Equal(t, 3, cert.Version)
	assert.Positive(t, cert.SerialNumber.Sign())
	assert.True(t, cert.NotAfter.After(cert.NotBefore))

	// The certificate public key must match the stored private key.
	key, err := x509.ParsePKCS8PrivateKey(id.PrivateKeyDER)
	require.NoError(t, err)
	ecKey, ok := key.(*ecdsa.PrivateKey)
	require.True(t, ok)
	certPub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, certPub.Equal(&ecKey.PublicKey))
}

func TestGetOrCreateIdentityIsStable(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)
	second, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestRegenerateIdentityReplacesEverything(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)
	second, err := svc.RegenerateIdentity(ctx)
	require.NoError(t, err)

	assert.False(t, first.Equal(second))

	firstCert, err := x509.ParseCertificate(first.CertificateDER)
	require.NoError(t, err)
	secondCert, err := x509.ParseCertificate(second.CertificateDER)
	require.NoError(t, err)
	assert.NotEqual(t, firstCert.SerialNumber, secondCert.SerialNumber)
	assert.NotEqual(t, first.PrivateKeyDER, second.PrivateKeyDER)

	// The regenerated identity is the one now persisted.
	third, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)
	assert.True(t, second.Equal(third))
}

func TestHalfPairForcesRegeneration(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)

	// Simulate a corrupted store: certificate present, key gone.
	require.NoError(t, store.Delete(ctx, SecretTLSKey))

	second, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)
	assert.False(t, first.Equal(second))

	// Both halves are persisted again.
	_, err = store.Load(ctx, SecretTLSKey)
	require.NoError(t, err)
	_, err = store.Load(ctx, SecretTLSCert)
	require.NoError(t, err)
}

func TestCleanupIsIdempotent(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Cleanup(ctx))
	_, err = store.Load(ctx, SecretTLSKey)
	require.ErrorIs(t, err, interfaces.ErrSecretNotFound)

	require.NoError(t, svc.Cleanup(ctx))
}

func TestTLSCertificateConversion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	id, err := svc.GetOrCreateIdentity(ctx)
	require.NoError(t, err)

	tlsCert, err := id.TLSCertificate()
	require.NoError(t, err)
	require.Len(t, tlsCert.Certificate, 1)
	assert.Equal(t, id.CertificateDER, tlsCert.Certificate[0])

	// Malformed key material surfaces as a key-conversion error, not a panic.
	broken := &Identity{PrivateKeyDER: []byte{0x00, 0x01}, CertificateDER: id.CertificateDER}
	_, err = broken.TLSCertificate()
	require.ErrorIs(t, err, ErrKeyConversion)
}

func TestPersistenceFailurePropagates(t *testing.T) {
	svc, store := newTestService()
	store.FailSaves = true

	_, err := svc.GetOrCreateIdentity(context.Background())
	require.ErrorIs(t, err, interfaces.ErrStoreUnavailable)
}
