package der

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestX500NameParsesAsRDNSequence(t *testing.T) {
	encoded, err := X500Name("Device Transfer", "VitalSync")
	require.NoError(t, err)

	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(encoded, &rdns)
	require.NoError(t, err)
	assert.Empty(t, rest)

	var name pkix.Name
	name.FillFromRDNSequence(&rdns)
	assert.Equal(t, "Device Transfer", name.CommonName)
	require.Len(t, name.Organization, 1)
	assert.Equal(t, "VitalSync", name.Organization[0])
}

func TestECPublicKeyInfoParses(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecdhPub, err := key.PublicKey.ECDH()
	require.NoError(t, err)

	encoded, err := ECPublicKeyInfo(ecdhPub.Bytes())
	require.NoError(t, err)

	parsed, err := x509.ParsePKIXPublicKey(encoded)
	require.NoError(t, err)
	parsedEC, ok := parsed.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, parsedEC.Equal(&key.PublicKey))
}

func TestValidityEncoding(t *testing.T) {
	notBefore := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	notAfter := notBefore.AddDate(1, 0, 0)

	encoded, err := Validity(notBefore, notAfter)
	require.NoError(t, err)

	var decoded struct {
		NotBefore time.Time
		NotAfter  time.Time
	}
	rest, err := asn1.Unmarshal(encoded, &decoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, decoded.NotBefore.Equal(notBefore))
	assert.True(t, decoded.NotAfter.Equal(notAfter))
}

func TestTBSCertificateStructure(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecdhPub, err := key.PublicKey.ECDH()
	require.NoError(t, err)

	issuer, err := X500Name("unit-test", "VitalSync")
	require.NoError(t, err)
	validity, err := Validity(time.Now(), time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	spki, err := ECPublicKeyInfo(ecdhPub.Bytes())
	require.NoError(t, err)

	tbs, err := TBSCertificate(12345, issuer, validity, issuer, spki)
	require.NoError(t, err)
	assert.Equal(t, TagSequence, tbs[0])

	// The first element must be the explicit [0] version tag holding v3.
	var raw asn1.RawValue
	_, err = asn1.Unmarshal(tbs, &raw)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA0), raw.Bytes[0])
}

func TestNewSerialNumberRange(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 32; i++ {
		serial, err := NewSerialNumber()
		require.NoError(t, err)
		assert.Greater(t, serial, int64(0))
		assert.LessOrEqual(t, serial, int64(1<<31-1))
		seen[serial] = true
	}
	// 32 draws from a 31-bit space colliding completely would mean a broken RNG.
	assert.Greater(t, len(seen), 1)
}
