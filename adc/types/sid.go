// Package types defines the small value types ADC frames carry: the
// 4-character Session ID, the Base32 Client/Private ID, and typed
// parameter values (integers, IPv4/IPv6, Base32 blobs, escaped text).
package types

import (
	"errors"
	"fmt"

	"github.com/udoprog/go-adc/tiger"
)

// SIDLen is the fixed length, in characters, of a Session ID.
const SIDLen = 4

// SID is a 4-character Base32 Session ID, assigned by the hub.
type SID [SIDLen]byte

// String returns the textual form of the SID.
func (s SID) String() string { return string(s[:]) }

// IsZero reports whether s is unset.
func (s SID) IsZero() bool { return s == SID{} }

// ParseSID validates and converts a 4-character SID string.
func ParseSID(s string) (SID, error) {
	var out SID
	if len(s) != SIDLen {
		return out, fmt.Errorf("adc: invalid SID %q: must be %d characters", s, SIDLen)
	}
	for i := 0; i < SIDLen; i++ {
		if !isSIDByte(s[i]) {
			return out, fmt.Errorf("adc: invalid SID %q: bad character %q", s, s[i])
		}
	}
	copy(out[:], s)
	return out, nil
}

func isSIDByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '2' && b <= '7')
}

// CID is a Base32-encoded Client ID: the hash of a client's PID.
type CID struct {
	data []byte
}

// ErrEmptyCID is returned when an operation requires a non-zero CID.
var ErrEmptyCID = errors.New("adc: empty CID")

// CIDFromHash wraps a raw Tiger digest as a CID.
func CIDFromHash(h tiger.Hash) CID {
	b := make([]byte, len(h))
	copy(b, h[:])
	return CID{data: b}
}

// CIDFromBytes wraps an arbitrary byte slice (e.g. a freshly generated
// random PID, which is not itself a hash output) as a CID-shaped value.
func CIDFromBytes(b []byte) CID {
	out := make([]byte, len(b))
	copy(out, b)
	return CID{data: out}
}

// ParseCID decodes a Base32 CID of the given declared byte length.
func ParseCID(s string, size int) (CID, error) {
	b, err := tiger.DecodeBase32(s, size)
	if err != nil {
		return CID{}, fmt.Errorf("adc: invalid CID %q: %w", s, err)
	}
	return CID{data: b}, nil
}

// Bytes returns the raw CID bytes.
func (c CID) Bytes() []byte { return c.data }

// IsZero reports whether c carries no data.
func (c CID) IsZero() bool { return len(c.data) == 0 }

// String returns the unpadded Base32 textual form.
func (c CID) String() string {
	if len(c.data) == 0 {
		return ""
	}
	return tiger.EncodeBase32(c.data)
}

// Hash returns the Tiger-hashed CID derived from this value, as used to
// turn a PID into its public CID.
func (c CID) Hash() CID {
	sum := tiger.Sum(c.data)
	return CIDFromHash(sum)
}

// PID is a locally-generated Private ID; it is never sent to the hub.
type PID = CID
