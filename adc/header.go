package adc

import (
	"fmt"
	"strings"

	"github.com/udoprog/go-adc/adc/types"
)

// Kind is the single-letter message-kind byte that selects an ADC
// frame's routing class.
type Kind byte

const (
	KindBroadcast Kind = 'B'
	KindClient    Kind = 'C'
	KindInfo      Kind = 'I'
	KindHub       Kind = 'H'
	KindDirect    Kind = 'D'
	KindEcho      Kind = 'E'
	KindFeature   Kind = 'F'
	KindUDP       Kind = 'U'
)

func (k Kind) valid() bool {
	switch k {
	case KindBroadcast, KindClient, KindInfo, KindHub, KindDirect, KindEcho, KindFeature, KindUDP:
		return true
	}
	return false
}

// FeatureSel is a signed feature selector carried by an F-header:
// "+ABCD" selects clients supporting ABCD, "-ABCD" excludes them.
type FeatureSel struct {
	Add  bool
	Name Feature
}

func (f FeatureSel) String() string {
	sign := "-"
	if f.Add {
		sign = "+"
	}
	return sign + f.Name.String()
}

// Header is the ADC message header: a tagged union over the eight
// header-kind byte variants described by the grammar. No subclassing —
// Kind selects which fields are meaningful.
type Header struct {
	Kind Kind
	Cmd  Command

	// Broadcast, Direct/Echo, Feature
	MySID types.SID
	// Direct, Echo
	TargetSID types.SID
	// Feature
	Sel []FeatureSel
	// UDP
	CID types.CID
}

// Broadcast builds a 'B' header.
func Broadcast(cmd Command, mySID types.SID) Header {
	return Header{Kind: KindBroadcast, Cmd: cmd, MySID: mySID}
}

// ClientHeader builds a 'C' header.
func ClientHeader(cmd Command) Header { return Header{Kind: KindClient, Cmd: cmd} }

// InfoHeader builds an 'I' header.
func InfoHeader(cmd Command) Header { return Header{Kind: KindInfo, Cmd: cmd} }

// HubHeader builds an 'H' header.
func HubHeader(cmd Command) Header { return Header{Kind: KindHub, Cmd: cmd} }

// Direct builds a 'D' header.
func Direct(cmd Command, mySID, targetSID types.SID) Header {
	return Header{Kind: KindDirect, Cmd: cmd, MySID: mySID, TargetSID: targetSID}
}

// Echo builds an 'E' header.
func Echo(cmd Command, mySID, targetSID types.SID) Header {
	return Header{Kind: KindEcho, Cmd: cmd, MySID: mySID, TargetSID: targetSID}
}

// FeatureHeader builds an 'F' header.
func FeatureHeader(cmd Command, mySID types.SID, sel []FeatureSel) Header {
	return Header{Kind: KindFeature, Cmd: cmd, MySID: mySID, Sel: sel}
}

// UDPHeader builds a 'U' header.
func UDPHeader(cmd Command, cid types.CID) Header {
	return Header{Kind: KindUDP, Cmd: cmd, CID: cid}
}

// validate checks that a header about to be formatted carries the
// fields its Kind requires, returning InvalidHeader otherwise.
func (h Header) validate() error {
	if !h.Kind.valid() {
		return &InvalidHeaderError{Reason: fmt.Sprintf("unknown header kind %q", h.Kind)}
	}
	switch h.Kind {
	case KindBroadcast:
		if h.MySID.IsZero() {
			return &InvalidHeaderError{Reason: "broadcast header missing my_sid"}
		}
	case KindDirect, KindEcho:
		if h.MySID.IsZero() {
			return &InvalidHeaderError{Reason: "direct/echo header missing my_sid"}
		}
		if h.TargetSID.IsZero() {
			return &InvalidHeaderError{Reason: "direct/echo header missing target_sid"}
		}
	case KindFeature:
		if h.MySID.IsZero() {
			return &InvalidHeaderError{Reason: "feature header missing my_sid"}
		}
		if len(h.Sel) == 0 {
			return &InvalidHeaderError{Reason: "feature header requires at least one feature selector"}
		}
	case KindUDP:
		if h.CID.IsZero() {
			return &InvalidHeaderError{Reason: "udp header missing cid"}
		}
	}
	return nil
}

// headerEqual compares two headers by value; Header cannot use == directly
// since types.CID embeds a byte slice.
func headerEqual(a, b Header) bool {
	if a.Kind != b.Kind || a.Cmd != b.Cmd || a.MySID != b.MySID || a.TargetSID != b.TargetSID {
		return false
	}
	if !bytesEqual(a.CID.Bytes(), b.CID.Bytes()) {
		return false
	}
	if len(a.Sel) != len(b.Sel) {
		return false
	}
	for i := range a.Sel {
		if a.Sel[i] != b.Sel[i] {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String formats the header (without trailing parameters).
func (h Header) String() string {
	var b strings.Builder
	b.WriteByte(byte(h.Kind))
	b.WriteString(h.Cmd.String())
	switch h.Kind {
	case KindBroadcast:
		b.WriteByte(' ')
		b.WriteString(h.MySID.String())
	case KindDirect, KindEcho:
		b.WriteByte(' ')
		b.WriteString(h.MySID.String())
		b.WriteByte(' ')
		b.WriteString(h.TargetSID.String())
	case KindFeature:
		b.WriteByte(' ')
		b.WriteString(h.MySID.String())
		for _, s := range h.Sel {
			b.WriteByte(' ')
			b.WriteString(s.String())
		}
	case KindUDP:
		b.WriteByte(' ')
		b.WriteString(h.CID.String())
	}
	return b.String()
}
