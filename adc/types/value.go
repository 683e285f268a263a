package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/udoprog/go-adc/tiger"
)

// Kind identifies how a named parameter's raw string is decoded.
type Kind int

const (
	// KindText is the default: the already-unescaped string.
	KindText Kind = iota
	// KindInt is a signed 64-bit decimal integer.
	KindInt
	// KindIP4 is a dotted-decimal IPv4 address; the empty string is a
	// sentinel some ADC fields use to mean "my real IP".
	KindIP4
	// KindIP6 is a canonical-form IPv6 address, same empty-string rule.
	KindIP6
	// KindBase32 is a Base32-encoded byte blob of a known declared size
	// (e.g. a 24-byte Tiger CID).
	KindBase32
)

// Base32Value wraps raw bytes plus the declared length used to encode
// and re-pad them.
type Base32Value struct {
	Data []byte
	Size int
}

// String returns the trailing-padding-stripped Base32 form.
func (b Base32Value) String() string {
	return tiger.EncodeBase32(b.Data)
}

// ParseBase32 decodes s, re-padding as needed, into a Base32Value of the
// given declared byte size.
func ParseBase32(s string, size int) (Base32Value, error) {
	b, err := tiger.DecodeBase32(s, size)
	if err != nil {
		return Base32Value{}, err
	}
	return Base32Value{Data: b, Size: size}, nil
}

// DecodeInt parses a signed 64-bit decimal integer; empty or
// non-numeric input is rejected.
func DecodeInt(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("adc: empty INT value")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("adc: invalid INT value %q: %w", s, err)
	}
	return v, nil
}

// EncodeInt renders v in decimal.
func EncodeInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// DecodeIP4 parses s as an IPv4 address, treating the empty string as
// the "unspecified" sentinel (some ADC fields use it to mean "my real
// IP" and the core preserves that meaning rather than raising).
func DecodeIP4(s string) (net.IP, error) {
	if s == "" {
		return nil, nil
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("adc: invalid IP4 value %q", s)
	}
	return ip.To4(), nil
}

// DecodeIP6 parses s as an IPv6 address, same empty-string convention
// as DecodeIP4.
func DecodeIP6(s string) (net.IP, error) {
	if s == "" {
		return nil, nil
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() != nil {
		return nil, fmt.Errorf("adc: invalid IP6 value %q", s)
	}
	return ip, nil
}

// EncodeIP renders ip in its canonical textual form, or the empty
// string sentinel for a nil/unspecified address.
func EncodeIP(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// EscapeText encodes s per the ADC escape convention: a literal space
// becomes "\s", newline becomes "\n", backslash becomes "\\".
func EscapeText(s string) string {
	if !strings.ContainsAny(s, " \n\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			b.WriteString(`\s`)
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// UnescapeText decodes the ADC escape convention; the decoded form
// never contains a raw space or newline.
func UnescapeText(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("adc: dangling escape in %q", s)
		}
		switch s[i] {
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("adc: invalid escape sequence \\%c in %q", s[i], s)
		}
	}
	return b.String(), nil
}
