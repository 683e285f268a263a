package adc

import "github.com/udoprog/go-adc/adc/types"

// Well-known message constructors and typed readers, one per command.
// Each Build function returns a ready-to-write *Message; each Parse
// function extracts the typed fields from an already ParseLine-d
// message carrying the matching Cmd.

// SupportMessage builds a SUP frame announcing supported features.
// Each selector renders as an AD (add) or RM (remove) named parameter
// carrying the 4-character feature name, e.g. "HSUP ADBASE ADTIGR".
func SupportMessage(h Header, sels []FeatureSel) *Message {
	m := &Message{Header: h}
	for _, s := range sels {
		key := "RM"
		if s.Add {
			key = "AD"
		}
		m.AddNamed(key, s.Name.String())
	}
	return m
}

// ParseSupport extracts the AD/RM feature selectors from a SUP message,
// skipping malformed feature names and unrelated keys.
func ParseSupport(m *Message) []FeatureSel {
	var sels []FeatureSel
	for _, t := range m.Tokens {
		if !t.Named || (t.Key != "AD" && t.Key != "RM") {
			continue
		}
		f, err := ParseFeature(t.Value)
		if err != nil {
			continue
		}
		sels = append(sels, FeatureSel{Add: t.Key == "AD", Name: f})
	}
	return sels
}

// SIDAssignMessage builds the hub's ISID frame announcing the client's
// newly assigned session id.
func SIDAssignMessage(sid types.SID) *Message {
	m := &Message{Header: InfoHeader(CmdSID)}
	m.AddPositional(sid.String())
	return m
}

// ParseSIDAssign extracts the assigned SID from an ISID message.
func ParseSIDAssign(m *Message) (types.SID, error) {
	v, err := m.Positional(0)
	if err != nil {
		return types.SID{}, err
	}
	return types.ParseSID(v)
}

// InfoMessage wraps an Info record as an outbound BINF/HINF message.
func InfoMessage(h Header, info *Info) *Message {
	return info.ToMessage(h)
}

// ChatMessage builds an MSG frame; if pm is non-zero it is rendered as
// a private-message PM parameter addressed to that SID.
func ChatMessage(h Header, text string, pm types.SID) *Message {
	m := &Message{Header: h}
	m.AddPositional(text)
	if !pm.IsZero() {
		m.AddNamed("PM", pm.String())
	}
	return m
}

// ParseChat extracts the message text and optional PM target.
func ParseChat(m *Message) (text string, pm types.SID, isPM bool, err error) {
	text, err = m.Positional(0)
	if err != nil {
		return "", types.SID{}, false, err
	}
	if v, ok := m.First("PM"); ok {
		sid, err := types.ParseSID(v)
		if err != nil {
			return "", types.SID{}, false, err
		}
		return text, sid, true, nil
	}
	return text, types.SID{}, false, nil
}

// QuitMessage builds a IQUI frame announcing a session's departure.
func QuitMessage(sid types.SID, reason string) *Message {
	m := &Message{Header: InfoHeader(CmdQUI)}
	m.AddPositional(sid.String())
	if reason != "" {
		m.AddNamed("MS", reason)
	}
	return m
}

// StatusMessageFrom builds an I/H/D-framed STA message from a Status.
func StatusMessageFrom(h Header, s Status) *Message {
	m := &Message{Header: h}
	m.AddPositional(s.CodeString())
	m.AddPositional(s.Msg)
	return m
}

// ParseStatusMessage extracts the Status from a STA message, including
// any named flag parameters (FC, RF, TO, ...) appended to it.
func ParseStatusMessage(m *Message) (Status, error) {
	code, err := m.Positional(0)
	if err != nil {
		return Status{}, err
	}
	msg, _ := m.Positional(1)
	st, err := ParseStatus(code, msg)
	if err != nil {
		return Status{}, err
	}
	for _, t := range m.Tokens {
		if !t.Named {
			continue
		}
		if st.Flags == nil {
			st.Flags = make(map[string]string)
		}
		st.Flags[t.Key] = t.Value
	}
	return st, nil
}

// ConnectToMeMessage builds a CTM frame offering a direct connection.
func ConnectToMeMessage(h Header, proto string, port int, token string) *Message {
	m := &Message{Header: h}
	m.AddPositional(proto)
	m.AddPositional(types.EncodeInt(int64(port)))
	m.AddPositional(token)
	return m
}

// ReverseConnectToMeMessage builds an RCM frame requesting the peer
// initiate the direct connection instead.
func ReverseConnectToMeMessage(h Header, proto, token string) *Message {
	m := &Message{Header: h}
	m.AddPositional(proto)
	m.AddPositional(token)
	return m
}

// ParseConnectRequest extracts the protocol, port (0 for RCM), and
// correlation token from a CTM or RCM message.
func ParseConnectRequest(m *Message) (proto string, port int, token string, err error) {
	proto, err = m.Positional(0)
	if err != nil {
		return "", 0, "", err
	}
	switch m.Header.Cmd {
	case CmdCTM:
		portStr, err := m.Positional(1)
		if err != nil {
			return "", 0, "", err
		}
		p, err := types.DecodeInt(portStr)
		if err != nil {
			return "", 0, "", &InvalidParameterError{Key: "port", Reason: err.Error()}
		}
		token, err = m.Positional(2)
		if err != nil {
			return "", 0, "", err
		}
		return proto, int(p), token, nil
	case CmdRCM:
		token, err = m.Positional(1)
		if err != nil {
			return "", 0, "", err
		}
		return proto, 0, token, nil
	default:
		return "", 0, "", &MalformedFrameError{Reason: "not a CTM/RCM message"}
	}
}

// SearchRequestMessage builds a SCH frame carrying the named search
// parameters (TR/AN/LE/EQ/GE/LE etc., left to the caller).
func SearchRequestMessage(h Header, params map[string]string) *Message {
	m := &Message{Header: h}
	for k, v := range params {
		m.AddNamed(k, v)
	}
	return m
}

// SearchResultMessage builds a RES frame carrying the named result
// parameters (FN/SI/SL/TO/TR etc.).
func SearchResultMessage(h Header, params map[string]string) *Message {
	m := &Message{Header: h}
	for k, v := range params {
		m.AddNamed(k, v)
	}
	return m
}

// GetPasswordMessage builds a IGPA frame carrying the login salt.
func GetPasswordMessage(salt types.Base32Value) *Message {
	m := &Message{Header: InfoHeader(CmdGPA)}
	m.AddPositional(salt.String())
	return m
}

// ParseGetPassword extracts the salt from an IGPA message.
func ParseGetPassword(m *Message, saltSize int) (types.Base32Value, error) {
	v, err := m.Positional(0)
	if err != nil {
		return types.Base32Value{}, err
	}
	return types.ParseBase32(v, saltSize)
}

// PasswordMessage builds the client's HPAS reply to a password challenge.
func PasswordMessage(digest []byte) *Message {
	m := &Message{Header: HubHeader(CmdPAS)}
	m.AddPositional(types.Base32Value{Data: digest, Size: len(digest)}.String())
	return m
}
