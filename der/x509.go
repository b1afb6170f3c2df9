package der

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// Pre-built OID TLVs (tag 0x06 + length + OID bytes) so callers can splice
// them directly into parent SEQUENCEs.
var (
	// OIDNamedCurveP256 is prime256v1 / secp256r1 (1.2.840.10045.3.1.7).
	OIDNamedCurveP256 = []byte{0x06, 0x08, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x03, 0x01, 0x07}

	// OIDECPublicKey is id-ecPublicKey (1.2.840.10045.2.1).
	OIDECPublicKey = []byte{0x06, 0x07, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x02, 0x01}

	// OIDECDSAWithSHA256 is ecdsa-with-SHA256 (1.2.840.10045.4.3.2).
	OIDECDSAWithSHA256 = []byte{0x06, 0x08, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x04, 0x03, 0x02}

	// OIDCommonName is id-at-commonName (2.5.4.3).
	OIDCommonName = []byte{0x06, 0x03, 0x55, 0x04, 0x03}

	// OIDOrganizationName is id-at-organizationName (2.5.4.10).
	OIDOrganizationName = []byte{0x06, 0x03, 0x55, 0x04, 0x0A}
)

// SignatureAlgorithmECDSASHA256 returns the AlgorithmIdentifier SEQUENCE for
// ecdsa-with-SHA256. ECDSA algorithm identifiers carry no parameters.
func SignatureAlgorithmECDSASHA256() ([]byte, error) {
	return Sequence(OIDECDSAWithSHA256)
}

// X500Name builds the X.509 Name structure used for both issuer and subject:
// a SEQUENCE of two SET > SEQUENCE > (OID, UTF8String) attribute pairs,
// commonName first, then organizationName.
func X500Name(commonName, organization string) ([]byte, error) {
	cnValue, err := UTF8String(commonName)
	if err != nil {
		return nil, err
	}
	cnAttr, err := Sequence(OIDCommonName, cnValue)
	if err != nil {
		return nil, err
	}
	cnSet, err := Set(cnAttr)
	if err != nil {
		return nil, err
	}

	orgValue, err := UTF8String(organization)
	if err != nil {
		return nil, err
	}
	orgAttr, err := Sequence(OIDOrganizationName, orgValue)
	if err != nil {
		return nil, err
	}
	orgSet, err := Set(orgAttr)
	if err != nil {
		return nil, err
	}

	return Sequence(cnSet, orgSet)
}

// ECPublicKeyInfo builds the SubjectPublicKeyInfo for an uncompressed P-256
// point: SEQUENCE(AlgorithmIdentifier(ecPublicKey, prime256v1),
// BIT STRING(point)).
func ECPublicKeyInfo(uncompressedPoint []byte) ([]byte, error) {
	algorithm, err := Sequence(OIDECPublicKey, OIDNamedCurveP256)
	if err != nil {
		return nil, err
	}
	publicKey, err := BitString(uncompressedPoint)
	if err != nil {
		return nil, err
	}
	return Sequence(algorithm, publicKey)
}

// Validity builds the certificate Validity SEQUENCE of two UTCTime values.
func Validity(notBefore, notAfter time.Time) ([]byte, error) {
	nb, err := UTCTime(notBefore)
	if err != nil {
		return nil, err
	}
	na, err := UTCTime(notAfter)
	if err != nil {
		return nil, err
	}
	return Sequence(nb, na)
}

// TBSCertificate assembles the to-be-signed certificate body:
// SEQUENCE(version=[0]{INTEGER 2}, INTEGER serial,
// AlgorithmIdentifier(ecdsa-with-SHA256), issuer, validity, subject,
// subjectPublicKeyInfo). The issuer, validity, subject and publicKeyInfo
// arguments must already be DER-encoded.
func TBSCertificate(serialNumber int64, issuer, validity, subject, publicKeyInfo []byte) ([]byte, error) {
	versionValue, err := IntegerFromInt64(2) // x509 v3
	if err != nil {
		return nil, err
	}
	version, err := ContextConstructed(0, versionValue)
	if err != nil {
		return nil, err
	}
	serial, err := IntegerFromInt64(serialNumber)
	if err != nil {
		return nil, err
	}
	signatureAlgorithm, err := SignatureAlgorithmECDSASHA256()
	if err != nil {
		return nil, err
	}
	return Sequence(version, serial, signatureAlgorithm, issuer, validity, subject, publicKeyInfo)
}

// Certificate assembles the final signed certificate:
// SEQUENCE(tbsCertificate, signatureAlgorithm, BIT STRING(signature)).
// The signature must be the ASN.1-encoded ECDSA signature over tbs.
func Certificate(tbs, signature []byte) ([]byte, error) {
	signatureAlgorithm, err := SignatureAlgorithmECDSASHA256()
	if err != nil {
		return nil, err
	}
	signatureBits, err := BitString(signature)
	if err != nil {
		return nil, err
	}
	return Sequence(tbs, signatureAlgorithm, signatureBits)
}

// NewSerialNumber draws a random certificate serial in [1, 2^31-1].
// Zero and negative serials are rejected by strict parsers.
func NewSerialNumber() (int64, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("%w: reading random serial: %v", ErrEncode, err)
	}
	serial := int64(binary.BigEndian.Uint32(buf[:]) & 0x7FFFFFFF)
	if serial == 0 {
		serial = 1
	}
	return serial, nil
}
