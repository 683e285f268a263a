package adc

import "fmt"

// Feature is a 4-character uppercase tag announcing an optional ADC
// protocol extension (first char a letter, remaining three alphanumeric).
type Feature [4]byte

func (f Feature) String() string { return string(f[:]) }

// ParseFeature validates and converts a 4-character feature name.
func ParseFeature(s string) (Feature, error) {
	var f Feature
	if len(s) != 4 {
		return f, fmt.Errorf("adc: invalid feature %q: must be 4 characters", s)
	}
	if !isUpperAlpha(s[0]) {
		return f, fmt.Errorf("adc: invalid feature %q", s)
	}
	for i := 1; i < 4; i++ {
		if !isUpperAlnum(s[i]) {
			return f, fmt.Errorf("adc: invalid feature %q", s)
		}
	}
	copy(f[:], s)
	return f, nil
}

func mustFeature(s string) Feature {
	f, err := ParseFeature(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Well-known ADC 1.0 features.
var (
	FeaBASE = mustFeature("BASE")
	FeaTIGR = mustFeature("TIGR")
	FeaBAS0 = mustFeature("BAS0")
	FeaPING = mustFeature("PING")
	FeaZLIB = mustFeature("ZLIB")
	FeaSEGA = mustFeature("SEGA")
	FeaTCP4 = mustFeature("TCP4")
	FeaTCP6 = mustFeature("TCP6")
	FeaUDP4 = mustFeature("UDP4")
	FeaUDP6 = mustFeature("UDP6")
)

// FeatureSet is an unordered collection of negotiated features.
type FeatureSet map[Feature]bool

// NewFeatureSet builds a FeatureSet out of the supplied features.
func NewFeatureSet(f ...Feature) FeatureSet {
	s := make(FeatureSet, len(f))
	for _, v := range f {
		s[v] = true
	}
	return s
}

// Has reports whether f is present in the set.
func (s FeatureSet) Has(f Feature) bool { return s[f] }

// Clone returns an independent copy of the set.
func (s FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Intersect returns the set of features present (and true) in both s
// and o, the rule used to negotiate a mutual feature/hash set in SUP.
func (s FeatureSet) Intersect(o FeatureSet) FeatureSet {
	out := make(FeatureSet)
	for k, v := range s {
		if v && o[k] {
			out[k] = true
		}
	}
	return out
}

// Apply mutates s according to a list of selectors parsed from a SUP
// message (AD adds a feature, RM removes it).
func (s FeatureSet) Apply(sels []FeatureSel) {
	for _, sel := range sels {
		s[sel.Name] = sel.Add
	}
}
