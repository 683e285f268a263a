package adc

import (
	"strings"

	"github.com/udoprog/go-adc/adc/types"
	"github.com/udoprog/go-adc/tiger"
)

// MaxLineLength is the default maximum length, in bytes, of a single
// inbound line before ParseLine reports LineTooLongError; a connection
// may override it.
const MaxLineLength = 64 * 1024

// ParseLine parses a single unterminated ADC line into a Message. The
// line must already have had any trailing CR/LF stripped. A line that
// does not match the grammar in full is rejected with
// MalformedFrameError rather than partially accepted: no prefix of a
// bad line is ever treated as good input.
func ParseLine(line string) (*Message, error) {
	if len(line) > MaxLineLength {
		return nil, &LineTooLongError{Max: MaxLineLength}
	}
	fields := splitUnescaped(line)
	if len(fields) == 0 {
		return nil, &MalformedFrameError{Line: line, Reason: "empty line"}
	}
	head := fields[0]
	if len(head) < 4 {
		return nil, &MalformedFrameError{Line: line, Reason: "header too short"}
	}
	kind := Kind(head[0])
	if !kind.valid() {
		return nil, &MalformedFrameError{Line: line, Reason: "unknown header kind"}
	}
	cmd, err := ParseCommand(head[1:4])
	if err != nil {
		return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
	}
	rest := fields[1:]
	h := Header{Kind: kind, Cmd: cmd}
	switch kind {
	case KindBroadcast:
		if len(rest) < 1 {
			return nil, &MalformedFrameError{Line: line, Reason: "broadcast header missing my_sid"}
		}
		sid, err := types.ParseSID(rest[0])
		if err != nil {
			return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
		}
		h.MySID = sid
		rest = rest[1:]
	case KindDirect, KindEcho:
		if len(rest) < 2 {
			return nil, &MalformedFrameError{Line: line, Reason: "direct/echo header missing sid pair"}
		}
		my, err := types.ParseSID(rest[0])
		if err != nil {
			return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
		}
		target, err := types.ParseSID(rest[1])
		if err != nil {
			return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
		}
		h.MySID, h.TargetSID = my, target
		rest = rest[2:]
	case KindFeature:
		if len(rest) < 1 {
			return nil, &MalformedFrameError{Line: line, Reason: "feature header missing my_sid"}
		}
		sid, err := types.ParseSID(rest[0])
		if err != nil {
			return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
		}
		h.MySID = sid
		rest = rest[1:]
		var sels []FeatureSel
		for len(rest) > 0 {
			tok := rest[0]
			if len(tok) != 5 || (tok[0] != '+' && tok[0] != '-') {
				break
			}
			feat, err := ParseFeature(tok[1:])
			if err != nil {
				break
			}
			sels = append(sels, FeatureSel{Add: tok[0] == '+', Name: feat})
			rest = rest[1:]
		}
		if len(sels) == 0 {
			return nil, &MalformedFrameError{Line: line, Reason: "feature header requires at least one selector"}
		}
		h.Sel = sels
	case KindUDP:
		if len(rest) < 1 {
			return nil, &MalformedFrameError{Line: line, Reason: "udp header missing cid"}
		}
		cid, err := types.ParseCID(rest[0], tiger.Size)
		if err != nil {
			return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
		}
		h.CID = cid
		rest = rest[1:]
	case KindClient, KindInfo, KindHub:
		// no addressing fields
	}

	m := &Message{Header: h}
	fixed := fixedPositionalCount(cmd)
	for i, tok := range rest {
		if i >= fixed && len(tok) >= 2 && isNamedKey(tok[0], tok[1]) {
			val, err := types.UnescapeText(tok[2:])
			if err != nil {
				return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
			}
			m.Tokens = append(m.Tokens, Token{Named: true, Key: tok[:2], Value: val})
			continue
		}
		val, err := types.UnescapeText(tok)
		if err != nil {
			return nil, &MalformedFrameError{Line: line, Reason: err.Error()}
		}
		m.Tokens = append(m.Tokens, Token{Value: val})
	}
	return m, nil
}

// fixedPositionalCount is the number of leading parameters a known ADC
// command always carries positionally, regardless of whether they
// happen to match the named-parameter-key shape (e.g. CTM's protocol
// token "ADC/1.0" starts with "AD", which would otherwise be
// misdetected as a named key). The grammar's parameter/parameter_name
// production is ambiguous without this per-command knowledge; ADC
// implementations resolve it the same way, by knowing each command's
// positional arity up front rather than guessing from token shape.
// Commands not listed here are fully heuristic-governed (0), which is
// safe for the field-bag commands (INF, SCH, RES, SUP) that have no
// positional parameters at all.
func fixedPositionalCount(cmd Command) int {
	switch cmd {
	case CmdSID, CmdMSG, CmdQUI, CmdGPA, CmdPAS:
		return 1
	case CmdSTA, CmdRCM:
		return 2
	case CmdCTM:
		return 3
	default:
		return 0
	}
}

// isNamedKey reports whether (a, b) form a valid named-parameter key
// prefix: an uppercase letter followed by an uppercase letter or digit.
func isNamedKey(a, b byte) bool {
	return isUpperAlpha(a) && isUpperAlnum(b)
}

// splitUnescaped splits line on unescaped spaces, leaving "\s"/"\n"/"\\"
// escape sequences intact for the caller to unescape per field.
func splitUnescaped(line string) []string {
	var fields []string
	var b strings.Builder
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			b.WriteByte(c)
			escaped = true
		case c == ' ':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	fields = append(fields, b.String())
	return fields
}

// FormatLine renders m as a wire line (no trailing terminator).
func FormatLine(m *Message) (string, error) {
	if err := m.Header.validate(); err != nil {
		return "", err
	}
	return m.String(), nil
}
