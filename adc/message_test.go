package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePositionalAndNamedAccess(t *testing.T) {
	m := NewMessage(InfoHeader(CmdSTA))
	m.AddPositional("000")
	m.AddPositional("ok")
	m.AddNamed("FC", "STA")
	m.AddNamed("FC", "MSG")

	v, err := m.Positional(0)
	require.NoError(t, err)
	assert.Equal(t, "000", v)

	v, err = m.Positional(1)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = m.Positional(2)
	assert.Error(t, err, "out-of-range positional must report MissingField")

	assert.Equal(t, []string{"STA", "MSG"}, m.Named("FC"))
	first, ok := m.First("FC")
	require.True(t, ok)
	assert.Equal(t, "STA", first)

	keys := m.NamedKeys()
	_, ok = keys["FC"]
	assert.True(t, ok)
	assert.Len(t, keys, 1)
}

func TestMessageMissingNamedReturnsEmptyNotError(t *testing.T) {
	m := NewMessage(InfoHeader(CmdSTA))
	assert.Nil(t, m.Named("XX"))
	_, ok := m.First("XX")
	assert.False(t, ok)
}

func TestMessageIntAndBase32Decode(t *testing.T) {
	m := NewMessage(Broadcast(CmdINF, mustSID(t, "AAAA")))
	m.AddNamed("SS", "1024")
	m.AddNamed("BAD", "notanumber")

	v, ok, err := m.Int("SS")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1024), v)

	_, ok, err = m.Int("ZZ")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = m.Int("BAD")
	assert.True(t, ok)
	var invalid *InvalidParameterError
	assert.ErrorAs(t, err, &invalid)
}

// TestMessageEqualIgnoresNamedKeyOrder exercises the round-trip
// invariant's escape clause: named-key insertion order need not
// survive, only the multiset of (key, value) pairs.
func TestMessageEqualIgnoresNamedKeyOrder(t *testing.T) {
	a := NewMessage(Broadcast(CmdINF, mustSID(t, "AAAA")))
	a.AddNamed("NI", "alice")
	a.AddNamed("SS", "1024")

	b := NewMessage(Broadcast(CmdINF, mustSID(t, "AAAA")))
	b.AddNamed("SS", "1024")
	b.AddNamed("NI", "alice")

	assert.True(t, a.Equal(b))
}

func TestMessageEqualDetectsDifferingPositionalOrder(t *testing.T) {
	a := NewMessage(InfoHeader(CmdSTA)).AddPositional("000").AddPositional("ok")
	b := NewMessage(InfoHeader(CmdSTA)).AddPositional("ok").AddPositional("000")
	assert.False(t, a.Equal(b), "positional order is significant, unlike named-key order")
}
