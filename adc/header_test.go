package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderValidateRequiresFields(t *testing.T) {
	sidA := mustSID(t, "AAAA")
	sidB := mustSID(t, "BBBB")

	cases := []struct {
		name string
		h    Header
		ok   bool
	}{
		{"broadcast with sid", Broadcast(CmdINF, sidA), true},
		{"broadcast missing sid", Header{Kind: KindBroadcast, Cmd: CmdINF}, false},
		{"direct complete", Direct(CmdMSG, sidA, sidB), true},
		{"direct missing target", Header{Kind: KindDirect, Cmd: CmdMSG, MySID: sidA}, false},
		{"feature missing selectors", Header{Kind: KindFeature, Cmd: CmdINF, MySID: sidA}, false},
		{"feature with selector", FeatureHeader(CmdINF, sidA, []FeatureSel{{Add: true, Name: FeaBASE}}), true},
		{"client header never needs fields", ClientHeader(CmdSUP), true},
		{"unknown kind", Header{Kind: 'Z', Cmd: CmdINF}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.h.validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHeaderStringVariants(t *testing.T) {
	sidA := mustSID(t, "AAAA")
	sidB := mustSID(t, "BBBB")

	assert.Equal(t, "BINF AAAA", Broadcast(CmdINF, sidA).String())
	assert.Equal(t, "ISUP", InfoHeader(CmdSUP).String())
	assert.Equal(t, "DMSG AAAA BBBB", Direct(CmdMSG, sidA, sidB).String())
	assert.Equal(t, "EMSG AAAA BBBB", Echo(CmdMSG, sidA, sidB).String())

	fh := FeatureHeader(CmdINF, sidA, []FeatureSel{{Add: true, Name: FeaBASE}, {Add: false, Name: FeaTIGR}})
	assert.Equal(t, "FINF AAAA +BASE -TIGR", fh.String())
}

func TestFormatLineRejectsMissingHeaderFields(t *testing.T) {
	m := NewMessage(Header{Kind: KindBroadcast, Cmd: CmdINF})
	_, err := FormatLine(m)
	require.Error(t, err)
	var invalid *InvalidHeaderError
	assert.ErrorAs(t, err, &invalid)
}
