// Package identity produces and persists the device's self-signed TLS
// identity.
//
// The identity is a P-256 key pair plus a hand-encoded self-signed X.509
// certificate (see the der package), stored as two SecretStore entries. The
// key and certificate are only ever replaced together: finding one entry
// without the other is treated as corruption and forces regeneration.
package identity

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsync/device-transfer-backend/der"
	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// Secret store entry IDs for the two halves of the identity.
const (
	SecretTLSKey  interfaces.SecretID = "tls-private-key"
	SecretTLSCert interfaces.SecretID = "tls-certificate"
)

// certValidity is how long a generated certificate remains valid.
const certValidity = 365 * 24 * time.Hour

var (
	// ErrKeyConversion is returned when stored or generated key material
	// cannot be converted to a usable P-256 signing key.
	ErrKeyConversion = errors.New("identity: key conversion failed")

	// ErrSigning is returned when producing the certificate signature fails.
	ErrSigning = errors.New("identity: certificate signing failed")
)

// Identity is a usable TLS server identity: a PKCS#8 DER private key and the
// matching DER-encoded self-signed certificate.
type Identity struct {
	PrivateKeyDER  []byte
	CertificateDER []byte
}

// Equal reports whether both halves of the identity are byte-identical.
func (id *Identity) Equal(other *Identity) bool {
	return bytes.Equal(id.PrivateKeyDER, other.PrivateKeyDER) &&
		bytes.Equal(id.CertificateDER, other.CertificateDER)
}

// TLSCertificate converts the identity into a tls.Certificate for use in a
// tls.Config. Returns ErrKeyConversion if the stored key cannot be parsed.
func (id *Identity) TLSCertificate() (tls.Certificate, error) {
	key, err := x509.ParsePKCS8PrivateKey(id.PrivateKeyDER)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrKeyConversion, err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return tls.Certificate{}, fmt.Errorf("%w: stored key is not an EC key", ErrKeyConversion)
	}
	return tls.Certificate{
		Certificate: [][]byte{id.CertificateDER},
		PrivateKey:  ecKey,
	}, nil
}

// Service manages the single TLS identity for this device. All operations
// are serialized: at most one identity exists at a time and generation never
// runs concurrently with itself.
type Service struct {
	store      interfaces.SecretStore
	log        *slog.Logger
	commonName string
	org        string

	mu sync.Mutex
}

// NewService creates an identity service persisting through store. The
// common name and organization are embedded in generated certificates.
func NewService(store interfaces.SecretStore, commonName, organization string, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		log:        log,
		commonName: commonName,
		org:        organization,
	}
}

// GetOrCreateIdentity returns the persisted identity if both halves are
// present, otherwise generates, persists and returns a fresh one. A stored
// certificate without its key (or vice versa) forces regeneration.
func (s *Service) GetOrCreateIdentity(ctx context.Context) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyDER, keyErr := s.store.Load(ctx, SecretTLSKey)
	certDER, certErr := s.store.Load(ctx, SecretTLSCert)

	if keyErr == nil && certErr == nil {
		return &Identity{PrivateKeyDER: keyDER, CertificateDER: certDER}, nil
	}

	keyMissing := errors.Is(keyErr, interfaces.ErrSecretNotFound)
	certMissing := errors.Is(certErr, interfaces.ErrSecretNotFound)

	if keyErr != nil && !keyMissing {
		return nil, fmt.Errorf("loading TLS key: %w", keyErr)
	}
	if certErr != nil && !certMissing {
		return nil, fmt.Errorf("loading TLS certificate: %w", certErr)
	}

	if keyMissing != certMissing {
		// Half a pair is an invalid state: drop it and regenerate.
		s.log.Warn("Stored TLS identity is incomplete, regenerating",
			"keyPresent", !keyMissing, "certPresent", !certMissing)
	}

	return s.generateLocked(ctx)
}

// RegenerateIdentity unconditionally discards any persisted identity and
// generates a new one.
func (s *Service) RegenerateIdentity(ctx context.Context) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLocked(ctx); err != nil {
		return nil, err
	}
	return s.generateLocked(ctx)
}

// Cleanup deletes both halves of the persisted identity. Deleting an absent
// identity is not an error.
func (s *Service) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx)
}

func (s *Service) deleteLocked(ctx context.Context) error {
	if err := s.store.Delete(ctx, SecretTLSKey); err != nil {
		return fmt.Errorf("deleting TLS key: %w", err)
	}
	if err := s.store.Delete(ctx, SecretTLSCert); err != nil {
		return fmt.Errorf("deleting TLS certificate: %w", err)
	}
	return nil
}

func (s *Service) generateLocked(ctx context.Context) (*Identity, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating P-256 key: %v", ErrKeyConversion, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling private key: %v", ErrKeyConversion, err)
	}

	certDER, err := s.buildCertificate(privateKey)
	if err != nil {
		return nil, err
	}

	// Persist key first so a crash between the writes leaves the pair
	// detectably incomplete rather than mismatched.
	if err := s.store.Save(ctx, SecretTLSKey, keyDER); err != nil {
		return nil, fmt.Errorf("persisting TLS key: %w", err)
	}
	if err := s.store.Save(ctx, SecretTLSCert, certDER); err != nil {
		return nil, fmt.Errorf("persisting TLS certificate: %w", err)
	}

	s.log.Info("Generated new TLS identity", "commonName", s.commonName)
	return &Identity{PrivateKeyDER: keyDER, CertificateDER: certDER}, nil
}

// buildCertificate hand-assembles and signs the self-signed certificate for
// privateKey using the der package.
func (s *Service) buildCertificate(privateKey *ecdsa.PrivateKey) ([]byte, error) {
	ecdhPub, err := privateKey.PublicKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: converting public key: %v", ErrKeyConversion, err)
	}

	name, err := der.X500Name(s.commonName, s.org)
	if err != nil {
		return nil, fmt.Errorf("encoding subject name: %w", err)
	}

	notBefore := time.Now().Add(-time.Hour)
	validity, err := der.Validity(notBefore, notBefore.Add(certValidity))
	if err != nil {
		return nil, fmt.Errorf("encoding validity: %w", err)
	}

	spki, err := der.ECPublicKeyInfo(ecdhPub.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encoding public key info: %w", err)
	}

	serial, err := der.NewSerialNumber()
	if err != nil {
		return nil, fmt.Errorf("drawing serial number: %w", err)
	}

	// Self-signed: issuer and subject are the same encoded Name.
	tbs, err := der.TBSCertificate(serial, name, validity, name, spki)
	if err != nil {
		return nil, fmt.Errorf("encoding TBS certificate: %w", err)
	}

	digest := sha256.Sum256(tbs)
	signature, err := ecdsa.SignASN1(rand.Reader, privateKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	certDER, err := der.Certificate(tbs, signature)
	if err != nil {
		return nil, fmt.Errorf("encoding certificate: %w", err)
	}
	return certDER, nil
}
