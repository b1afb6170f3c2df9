// Package der implements the ASN.1 DER encoding primitives needed to
// hand-build a self-signed X.509 certificate.
//
// All functions are pure and allocation-only; they hold no state and are safe
// to call from any goroutine. Encoding failures (oversized lengths, empty
// integers) wrap ErrEncode so callers can detect the whole class with
// errors.Is. With valid inputs these failures cannot occur; they indicate a
// programming error in the caller.
package der

import (
	"errors"
	"fmt"
	"time"
)

// Universal ASN.1 tags used by the X.509 structures built here.
const (
	TagInteger          byte = 0x02
	TagBitString        byte = 0x03
	TagOID              byte = 0x06
	TagUTF8String       byte = 0x0C
	TagPrintableString  byte = 0x13
	TagUTCTime          byte = 0x17
	TagSequence         byte = 0x30
	TagSet              byte = 0x31
	tagContextSpecific  byte = 0xA0
	maxEncodableLength       = 0xFFFF
)

// ErrEncode is wrapped by every encoding error returned from this package.
var ErrEncode = errors.New("der: encoding error")

// Length encodes a DER length field. Short form is used for n < 0x80,
// long form (0x81 or 0x82 prefix) for anything up to 65535.
func Length(n int) ([]byte, error) {
	switch {
	case n < 0:
		return nil, fmt.Errorf("%w: negative length %d", ErrEncode, n)
	case n < 0x80:
		return []byte{byte(n)}, nil
	case n <= 0xFF:
		return []byte{0x81, byte(n)}, nil
	case n <= maxEncodableLength:
		return []byte{0x82, byte(n >> 8), byte(n)}, nil
	default:
		return nil, fmt.Errorf("%w: length %d exceeds %d", ErrEncode, n, maxEncodableLength)
	}
}

// TLV concatenates tag, the encoded length of payload, and payload.
func TLV(tag byte, payload []byte) ([]byte, error) {
	length, err := Length(len(payload))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(length)+len(payload))
	out = append(out, tag)
	out = append(out, length...)
	out = append(out, payload...)
	return out, nil
}

// Integer encodes bytes as a DER positive INTEGER. Leading zero bytes are
// stripped (keeping at least one byte); a 0x00 pad byte is prepended when the
// high bit of the first remaining byte is set, so the value is never read as
// negative.
func Integer(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: empty integer", ErrEncode)
	}

	trimmed := value
	for len(trimmed) > 1 && trimmed[0] == 0x00 {
		trimmed = trimmed[1:]
	}
	if trimmed[0]&0x80 != 0 {
		padded := make([]byte, 0, len(trimmed)+1)
		padded = append(padded, 0x00)
		padded = append(padded, trimmed...)
		trimmed = padded
	}
	return TLV(TagInteger, trimmed)
}

// IntegerFromInt64 big-endian encodes a non-negative native integer as a DER
// INTEGER, applying the same positive-value padding rule as Integer.
func IntegerFromInt64(n int64) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative integer %d", ErrEncode, n)
	}
	raw := []byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}
	return Integer(raw)
}

// BitString wraps bytes as a DER BIT STRING with zero unused bits.
func BitString(value []byte) ([]byte, error) {
	payload := make([]byte, 0, len(value)+1)
	payload = append(payload, 0x00)
	payload = append(payload, value...)
	return TLV(TagBitString, payload)
}

// Sequence wraps the concatenation of parts as a DER SEQUENCE.
func Sequence(parts ...[]byte) ([]byte, error) {
	return TLV(TagSequence, concat(parts))
}

// Set wraps the concatenation of parts as a DER SET.
func Set(parts ...[]byte) ([]byte, error) {
	return TLV(TagSet, concat(parts))
}

// UTF8String encodes s as a DER UTF8String.
func UTF8String(s string) ([]byte, error) {
	return TLV(TagUTF8String, []byte(s))
}

// PrintableString encodes s as a DER PrintableString. The caller is
// responsible for restricting s to the PrintableString character set.
func PrintableString(s string) ([]byte, error) {
	return TLV(TagPrintableString, []byte(s))
}

// UTCTime encodes t as a DER UTCTime in the form YYMMDDHHMMSSZ, always in
// UTC with zero-padded fields and a literal trailing Z.
func UTCTime(t time.Time) ([]byte, error) {
	return TLV(TagUTCTime, []byte(t.UTC().Format("060102150405Z")))
}

// ContextConstructed wraps contents under the explicit context-specific
// constructed tag [tagNumber], i.e. tag byte 0xA0|tagNumber. X.509 uses this
// for the certificate version field.
func ContextConstructed(tagNumber byte, contents []byte) ([]byte, error) {
	return TLV(tagContextSpecific|tagNumber, contents)
}

func concat(parts [][]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
