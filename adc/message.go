package adc

import (
	"strings"

	"github.com/udoprog/go-adc/adc/types"
)

// Token is one parameter of a message: either a positional value or a
// (two-letter-key, value) pair. Both positional and named tokens are
// kept in a single ordered slice so the parser can tolerate
// interleaving even though ADC guarantees all named parameters follow
// all positional ones in practice.
type Token struct {
	Named bool
	Key   string // valid iff Named
	Value string // already unescaped
}

// Message is a parsed or to-be-formatted ADC frame: a header plus an
// ordered list of parameter tokens.
type Message struct {
	Header Header
	Tokens []Token
}

// NewMessage builds an empty message with the given header.
func NewMessage(h Header) *Message {
	return &Message{Header: h}
}

// AddPositional appends a positional parameter.
func (m *Message) AddPositional(v string) *Message {
	m.Tokens = append(m.Tokens, Token{Value: v})
	return m
}

// AddNamed appends a named parameter; the same key may be added more
// than once and insertion order is preserved.
func (m *Message) AddNamed(key, v string) *Message {
	m.Tokens = append(m.Tokens, Token{Named: true, Key: key, Value: v})
	return m
}

// Positional returns the i-th positional token's value.
func (m *Message) Positional(i int) (string, error) {
	n := 0
	for _, t := range m.Tokens {
		if t.Named {
			continue
		}
		if n == i {
			return t.Value, nil
		}
		n++
	}
	return "", &MissingFieldError{Field: "positional"}
}

// Named returns all values for key in appearance order (nil if absent).
func (m *Message) Named(key string) []string {
	var out []string
	for _, t := range m.Tokens {
		if t.Named && t.Key == key {
			out = append(out, t.Value)
		}
	}
	return out
}

// First returns the first value for key, if any.
func (m *Message) First(key string) (string, bool) {
	for _, t := range m.Tokens {
		if t.Named && t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// NamedKeys returns the set of named keys present in the message.
func (m *Message) NamedKeys() map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range m.Tokens {
		if t.Named {
			out[t.Key] = struct{}{}
		}
	}
	return out
}

// Int decodes the first value of key as a signed integer.
func (m *Message) Int(key string) (int64, bool, error) {
	v, ok := m.First(key)
	if !ok {
		return 0, false, nil
	}
	i, err := types.DecodeInt(v)
	if err != nil {
		return 0, true, &InvalidParameterError{Key: key, Reason: err.Error()}
	}
	return i, true, nil
}

// Base32 decodes the first value of key as a Base32 blob of the given
// declared byte size.
func (m *Message) Base32(key string, size int) (types.Base32Value, bool, error) {
	v, ok := m.First(key)
	if !ok {
		return types.Base32Value{}, false, nil
	}
	b, err := types.ParseBase32(v, size)
	if err != nil {
		return types.Base32Value{}, true, &InvalidParameterError{Key: key, Reason: err.Error()}
	}
	return b, true, nil
}

// String formats the message: header, then positional tokens, then
// named tokens, each separated by a space, with text values escaped.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.Header.String())
	for _, t := range m.Tokens {
		if t.Named {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(types.EscapeText(t.Value))
	}
	for _, t := range m.Tokens {
		if !t.Named {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(t.Key)
		b.WriteString(types.EscapeText(t.Value))
	}
	return b.String()
}

// Equal reports whether two messages carry the same header kind/fields
// and the same multiset of positional and named (key, value) pairs;
// named-key insertion order is not compared.
func (m *Message) Equal(o *Message) bool {
	if !headerEqual(m.Header, o.Header) {
		return false
	}
	var pa, pb []string
	na, nb := map[string]int{}, map[string]int{}
	for _, t := range m.Tokens {
		if t.Named {
			na[t.Key+"\x00"+t.Value]++
		} else {
			pa = append(pa, t.Value)
		}
	}
	for _, t := range o.Tokens {
		if t.Named {
			nb[t.Key+"\x00"+t.Value]++
		} else {
			pb = append(pb, t.Value)
		}
	}
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if pa[i] != pb[i] {
			return false
		}
	}
	if len(na) != len(nb) {
		return false
	}
	for k, v := range na {
		if nb[k] != v {
			return false
		}
	}
	return true
}
