package der

import (
	"bytes"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLength(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"short form max", 0x7F, []byte{0x7F}},
		{"long form one byte", 0x80, []byte{0x81, 0x80}},
		{"long form one byte max", 0xFF, []byte{0x81, 0xFF}},
		{"long form two bytes", 0x100, []byte{0x82, 0x01, 0x00}},
		{"long form two bytes max", 0xFFFF, []byte{0x82, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Length(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLengthOutOfRange(t *testing.T) {
	_, err := Length(0x10000)
	require.ErrorIs(t, err, ErrEncode)

	_, err = Length(-1)
	require.ErrorIs(t, err, ErrEncode)
}

func TestIntegerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  int64
	}{
		{"small", []byte{0x05}, 5},
		{"leading zeros stripped", []byte{0x00, 0x00, 0x2A}, 42},
		{"zero value keeps one byte", []byte{0x00, 0x00, 0x00}, 0},
		{"high bit gets padded", []byte{0x80}, 128},
		{"multi byte high bit", []byte{0xFF, 0xFF}, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Integer(tt.input)
			require.NoError(t, err)

			var decoded *big.Int
			rest, err := asn1.Unmarshal(encoded, &decoded)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.Equal(t, tt.want, decoded.Int64())
		})
	}
}

// The DER positive-integer rule: the first content byte never has the high
// bit set unless preceded by a 0x00 pad.
func TestIntegerNeverNegative(t *testing.T) {
	for _, input := range [][]byte{{0x80}, {0xFF, 0x01}, {0x00, 0x90}, {0x7F}, {0x01, 0x80, 0x00}} {
		encoded, err := Integer(input)
		require.NoError(t, err)

		// Skip tag and length, inspect first content byte.
		content := encoded[2:]
		if content[0]&0x80 != 0 {
			t.Errorf("Integer(%x) produced negative-looking encoding %x", input, encoded)
		}
	}
}

func TestIntegerEmpty(t *testing.T) {
	_, err := Integer(nil)
	require.ErrorIs(t, err, ErrEncode)
}

func TestIntegerFromInt64(t *testing.T) {
	for _, n := range []int64{0, 1, 127, 128, 255, 256, 1 << 30, 1<<31 - 1} {
		encoded, err := IntegerFromInt64(n)
		require.NoError(t, err)

		var decoded *big.Int
		_, err = asn1.Unmarshal(encoded, &decoded)
		require.NoError(t, err)
		assert.Equal(t, n, decoded.Int64(), "n=%d", n)
	}

	_, err := IntegerFromInt64(-1)
	require.ErrorIs(t, err, ErrEncode)
}

func TestBitStringRoundTrip(t *testing.T) {
	payload := []byte{0x04, 0xDE, 0xAD, 0xBE, 0xEF}
	encoded, err := BitString(payload)
	require.NoError(t, err)

	var decoded asn1.BitString
	rest, err := asn1.Unmarshal(encoded, &decoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, payload, decoded.Bytes)
	assert.Equal(t, len(payload)*8, decoded.BitLength)
}

func TestUTF8StringRoundTrip(t *testing.T) {
	encoded, err := UTF8String("Vital Sync Device")
	require.NoError(t, err)

	var decoded string
	_, err = asn1.UnmarshalWithParams(encoded, &decoded, "utf8")
	require.NoError(t, err)
	assert.Equal(t, "Vital Sync Device", decoded)
}

func TestUTCTimeFormat(t *testing.T) {
	// 2026-03-07 09:04:05 UTC must zero-pad all fields and end with Z.
	ts := time.Date(2026, 3, 7, 9, 4, 5, 0, time.UTC)
	encoded, err := UTCTime(ts)
	require.NoError(t, err)
	assert.Equal(t, []byte("260307090405Z"), encoded[2:])

	var decoded time.Time
	_, err = asn1.Unmarshal(encoded, &decoded)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(ts))
}

func TestUTCTimeConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	encoded, err := UTCTime(time.Date(2026, 1, 1, 1, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, []byte("251231230000Z"), encoded[2:])
}

func TestSequenceRoundTrip(t *testing.T) {
	inner1, err := IntegerFromInt64(7)
	require.NoError(t, err)
	inner2, err := UTF8String("x")
	require.NoError(t, err)

	encoded, err := Sequence(inner1, inner2)
	require.NoError(t, err)
	assert.Equal(t, TagSequence, encoded[0])

	var decoded struct {
		N int64
		S string `asn1:"utf8"`
	}
	rest, err := asn1.Unmarshal(encoded, &decoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, int64(7), decoded.N)
	assert.Equal(t, "x", decoded.S)
}

func TestContextConstructed(t *testing.T) {
	inner, err := IntegerFromInt64(2)
	require.NoError(t, err)

	encoded, err := ContextConstructed(0, inner)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA0), encoded[0])
	assert.Equal(t, byte(len(inner)), encoded[1])
	assert.True(t, bytes.Equal(inner, encoded[2:]))

	encoded, err = ContextConstructed(3, inner)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA3), encoded[0])
}

func TestTLVLongPayload(t *testing.T) {
	payload := make([]byte, 300)
	encoded, err := TLV(TagSequence, payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{TagSequence, 0x82, 0x01, 0x2C}, encoded[:4])
	assert.Len(t, encoded, 304)
}
