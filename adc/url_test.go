package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHubAddr(t *testing.T) {
	a, err := ParseHubAddr("adc://hub.example.com:1511")
	require.NoError(t, err)
	assert.False(t, a.Secure)
	assert.Equal(t, "hub.example.com", a.Host)
	assert.Equal(t, 1511, a.Port)
	assert.Equal(t, "adc://hub.example.com:1511", a.String())
}

func TestParseHubAddrSecureDefaults(t *testing.T) {
	a, err := ParseHubAddr("adcs://hub.example.com")
	require.NoError(t, err)
	assert.True(t, a.Secure)
	assert.Equal(t, DefaultPortTLS, a.Port)
}

func TestParseHubAddrUserAndKeyprint(t *testing.T) {
	a, err := ParseHubAddr("adcs://alice@hub.example.com:1511?kp=SHA256/ABCD")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.User)
	assert.Equal(t, "SHA256/ABCD", a.Keyprint)
	assert.Contains(t, a.String(), "alice@")
}

func TestParseHubAddrRejectsOtherSchemes(t *testing.T) {
	_, err := ParseHubAddr("http://hub.example.com")
	assert.Error(t, err)
	_, err = ParseHubAddr("adc://")
	assert.Error(t, err)
}
