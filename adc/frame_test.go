package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udoprog/go-adc/adc/types"
	"github.com/udoprog/go-adc/tiger"
)

func mustSID(t *testing.T, s string) types.SID {
	t.Helper()
	sid, err := types.ParseSID(s)
	require.NoError(t, err)
	return sid
}

// TestRoundTripEveryHeaderKind: for every valid message,
// parse(format(m)) yields a message with the same header kind/fields
// and the same multiset of parameters.
func TestRoundTripEveryHeaderKind(t *testing.T) {
	sidA := mustSID(t, "AAAB")
	sidB := mustSID(t, "AABB")

	msgs := []*Message{
		NewMessage(Broadcast(CmdINF, sidA)).AddNamed("NI", "alice").AddNamed("SS", "1024"),
		NewMessage(ClientHeader(CmdSUP)).AddNamed("AD", "BASE"),
		NewMessage(InfoHeader(CmdSUP)).AddNamed("AD", "BASE").AddNamed("AD", "TIGR"),
		NewMessage(HubHeader(CmdPAS)).AddPositional("ABCD"),
		NewMessage(Direct(CmdCTM, sidA, sidB)).AddPositional("ADC/1.0").AddPositional("5000").AddPositional("tok1"),
		NewMessage(Echo(CmdMSG, sidA, sidB)).AddPositional("hello world"),
		NewMessage(FeatureHeader(CmdCMD(), sidA, []FeatureSel{{Add: true, Name: FeaTIGR}, {Add: false, Name: FeaZLIB}})),
		NewMessage(UDPHeader(CmdSCH, fullSizeCID(sidA))),
	}

	for _, m := range msgs {
		line, err := FormatLine(m)
		require.NoError(t, err)
		got, err := ParseLine(line)
		require.NoError(t, err, "line %q", line)
		assert.True(t, m.Equal(got), "round trip mismatch for %q: got %+v", line, got)
	}
}

// CmdCMD is a throwaway 3-letter command used only by this test file
// (a Feature header needs some command, and BASE's real feature
// command names aren't relevant to the round-trip property).
func CmdCMD() Command {
	c, err := ParseCommand("CMD")
	if err != nil {
		panic(err)
	}
	return c
}

// fullSizeCID pads sid's bytes out to a full Tiger-digest-sized CID,
// for header round-trip tests that don't care about CID semantics but
// must match the 24-byte size ParseLine assumes for a U-header.
func fullSizeCID(sid types.SID) types.CID {
	buf := make([]byte, 0, tiger.Size)
	for len(buf) < tiger.Size {
		buf = append(buf, sid[:]...)
	}
	return types.CIDFromBytes(buf[:tiger.Size])
}

func TestParseLineRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"B",
		"BIN",
		"binf AAAA",    // lowercase header kind
		"BINF aaaa",    // lowercase SID
		"BINF AAAA1",   // SID too long
		"XINF AAAA",    // unknown header kind
		"BINF AAA",     // SID too short
		"DINF AAAA",    // direct header missing target sid
		"FINF AAAA +X", // feature selector too short
	}
	for _, line := range cases {
		_, err := ParseLine(line)
		assert.Error(t, err, "expected malformed frame for %q", line)
	}
}

func TestParseLineRejectsOverlongLine(t *testing.T) {
	big := make([]byte, MaxLineLength+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := ParseLine("BMSG AAAA " + string(big))
	require.Error(t, err)
	var tooLong *LineTooLongError
	assert.ErrorAs(t, err, &tooLong)
}

func TestParseLineEscapedParameter(t *testing.T) {
	m, err := ParseLine(`BMSG AAAA Hello\sworld\nnext\\line`)
	require.NoError(t, err)
	text, err := m.Positional(0)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nnext\\line", text)
}

func TestParseLineNamedParameterWithDigitSecondChar(t *testing.T) {
	m, err := ParseLine("BINF AAAA U41234")
	require.NoError(t, err)
	v, ok := m.First("U4")
	require.True(t, ok)
	assert.Equal(t, "1234", v)
}

// TestParseLineFixedPositionalCountBeatsNamedKeyShape guards against a
// real ambiguity in the grammar: CTM's "ADC/1.0" protocol token starts
// with "AD", which would otherwise be misdetected as the named key
// "AD". Knowing CTM always carries 3 positional parameters resolves it
// the way every ADC implementation does.
func TestParseLineFixedPositionalCountBeatsNamedKeyShape(t *testing.T) {
	m, err := ParseLine("DCTM AAAA AABB ADC/1.0 5000 tok1")
	require.NoError(t, err)
	proto, port, token, err := ParseConnectRequest(m)
	require.NoError(t, err)
	assert.Equal(t, "ADC/1.0", proto)
	assert.Equal(t, 5000, port)
	assert.Equal(t, "tok1", token)
}

// TestParseLineToleratesInterleavedPositionalAndNamed exercises an
// INF-style command (no fixed positional parameters) where a token
// without the named-key shape sits between two named tokens: the
// heuristic governs the whole parameter list, token by token.
func TestParseLineToleratesInterleavedPositionalAndNamed(t *testing.T) {
	m, err := ParseLine("BINF AAAA NItest extra SS1024")
	require.NoError(t, err)
	assert.Equal(t, []string{"extra"}, positionalsOf(t, m))
	v, ok := m.First("NI")
	require.True(t, ok)
	assert.Equal(t, "test", v)
	v, ok = m.First("SS")
	require.True(t, ok)
	assert.Equal(t, "1024", v)
}

func positionalsOf(t *testing.T, m *Message) []string {
	t.Helper()
	var out []string
	for i := 0; ; i++ {
		v, err := m.Positional(i)
		if err != nil {
			return out
		}
		out = append(out, v)
	}
}

func TestParseSupportNegotiationLine(t *testing.T) {
	m, err := ParseLine("ISUP ADBASE ADTIGR")
	require.NoError(t, err)
	assert.Equal(t, KindInfo, m.Header.Kind)
	assert.Equal(t, CmdSUP, m.Header.Cmd)
	sels := ParseSupport(m)
	require.Len(t, sels, 2)
	assert.Equal(t, FeaBASE, sels[0].Name)
	assert.True(t, sels[0].Add)
	assert.Equal(t, FeaTIGR, sels[1].Name)
}

func TestParseSIDAssignmentLine(t *testing.T) {
	m, err := ParseLine("ISID AAAB")
	require.NoError(t, err)
	sid, err := ParseSIDAssign(m)
	require.NoError(t, err)
	assert.Equal(t, "AAAB", sid.String())
}

func TestParseEscapedChatLine(t *testing.T) {
	m, err := ParseLine(`BMSG AABB Hello\sworld`)
	require.NoError(t, err)
	text, pm, isPM, err := ParseChat(m)
	require.NoError(t, err)
	assert.False(t, isPM)
	assert.True(t, pm.IsZero())
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "AABB", m.Header.MySID.String())
}

func TestParseFatalStatusLine(t *testing.T) {
	m, err := ParseLine(`ISTA 240 Protocol\serror`)
	require.NoError(t, err)
	st, err := ParseStatusMessage(m)
	require.NoError(t, err)
	assert.Equal(t, Fatal, st.Sev)
	assert.Equal(t, 40, st.Code)
	assert.False(t, st.Ok())
	assert.Error(t, st.Err())
}
