// Package client implements the ADC client-to-hub connection state
// machine: handshake, roster tracking, and dispatch of broadcast,
// direct, and hub-addressed traffic to event callbacks.
package client

import (
	"errors"

	"github.com/udoprog/go-adc/adc"
	"github.com/udoprog/go-adc/adc/types"
)

// Config describes the identity a client presents to a hub.
type Config struct {
	PID        types.PID
	Name       string
	ShareSize  int64
	Extensions adc.FeatureSet

	// Events, if set, is installed on the connection before the
	// handshake begins, so callbacks (including the GetUser pull) are
	// live from the first frame.
	Events *Events

	// Password, if set, is called to obtain the login password when the
	// hub challenges with GPA during VERIFY.
	Password func() (string, bool)

	// EnableZlib opts into the ZLIB frame-compression feature: when
	// both sides advertise it in SUP, the connection switches to a
	// raw DEFLATE stream as soon as the SUP exchange completes, before
	// the ISID is read.
	EnableZlib bool
}

func (c *Config) validate() error {
	if c.PID.IsZero() {
		return errors.New("adc: client PID must not be empty")
	}
	if c.Name == "" {
		return errors.New("adc: client name must be set")
	}
	return nil
}
