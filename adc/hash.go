package adc

import "github.com/udoprog/go-adc/tiger"

// HashMethod describes a content-hash algorithm negotiable via SUP, its
// digest size, and how to compute it.
type HashMethod struct {
	Feature Feature
	Size    int
	Sum     func([]byte) []byte
}

// hashMethods is the registry of supported hash algorithms, keyed by
// the feature name advertised in SUP. TIGR (Tiger/192) is the only
// method ADC 1.0 mandates; the registry exists so a future extension
// can add another without touching the negotiation logic.
var hashMethods = map[Feature]HashMethod{
	FeaTIGR: {
		Feature: FeaTIGR,
		Size:    tiger.Size,
		Sum: func(b []byte) []byte {
			sum := tiger.Sum(b)
			out := make([]byte, len(sum))
			copy(out, sum[:])
			return out
		},
	},
}

// HashMethodByFeature looks up a registered hash method.
func HashMethodByFeature(f Feature) (HashMethod, bool) {
	m, ok := hashMethods[f]
	return m, ok
}

// NegotiateHash picks the common hash method from two feature sets,
// preferring TIGR since it is the only mandatory method; returns
// a *NoHashOverlapError if none is shared.
func NegotiateHash(a, b FeatureSet) (HashMethod, error) {
	common := a.Intersect(b)
	if common.Has(FeaTIGR) {
		return hashMethods[FeaTIGR], nil
	}
	for f := range common {
		if m, ok := hashMethods[f]; ok {
			return m, nil
		}
	}
	return HashMethod{}, &NoHashOverlapError{}
}
