package adc

import "github.com/udoprog/go-adc/adc/types"

// fieldTable is the two-letter INFO key -> type map, laid out as a
// constant-size array indexed by (first-char, second-char) for O(1)
// lookup. The grammar allows the second character to be a letter or a
// digit (36 possibilities), so the array is 26x36: recognized fields
// only ever use letters in the second position, but an unrecognized
// digit-suffixed key must still resolve (to KindText) instead of
// panicking.
var fieldTable [26][36]types.Kind

func fieldIndex(b byte) (int, bool) {
	switch {
	case b >= 'A' && b <= 'Z':
		return int(b - 'A'), true
	case b >= '0' && b <= '9':
		return 26 + int(b-'0'), true
	default:
		return 0, false
	}
}

func registerField(key string, kind types.Kind) {
	i, ok1 := fieldIndex(key[0])
	j, ok2 := fieldIndex(key[1])
	if !ok1 || !ok2 || i >= 26 {
		panic("adc: invalid field key " + key)
	}
	fieldTable[i][j] = kind
}

// FieldKind returns the declared type of a two-letter INFO key, or
// KindText if the key is unrecognized; unknown keys are stored as raw
// text rather than rejected.
func FieldKind(key string) types.Kind {
	if len(key) != 2 {
		return types.KindText
	}
	i, ok1 := fieldIndex(key[0])
	j, ok2 := fieldIndex(key[1])
	if !ok1 || !ok2 || i >= 26 {
		return types.KindText
	}
	return fieldTable[i][j]
}

func init() {
	ints := []string{
		"U4", "U6", "SS", "SF", "US", "DS", "SL", "AS", "AM",
		"HN", "HR", "HO", "CT", "AW",
	}
	for _, k := range ints {
		registerField(k, types.KindInt)
	}
	registerField("I4", types.KindIP4)
	registerField("I6", types.KindIP6)
	registerField("ID", types.KindBase32)
	registerField("PD", types.KindBase32)
	texts := []string{"NI", "DE", "VE", "EM", "SU", "RF", "KP", "HI", "OP", "TO"}
	for _, k := range texts {
		registerField(k, types.KindText)
	}
}
