package adc

import (
	"fmt"
	"strconv"
)

// Severity is the first digit of an ADC status code.
type Severity int

const (
	Success     Severity = 0
	Recoverable Severity = 1
	Fatal       Severity = 2
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// statusTable is a static table of well-known ADC 1.0 status codes,
// built once at start-up and never duplicated per connection.
var statusTable = map[int]string{
	0:  "Success",
	10: "Generic hub error",
	11: "Hub full",
	12: "Hub disabled",
	20: "Generic login error",
	21: "Login: nick missing",
	22: "Login: nick invalid",
	23: "Login: nick taken",
	24: "Login: nick spaces not permitted",
	25: "Login: nick too long",
	26: "Login: password required but not given",
	27: "Login: CID taken",
	30: "Generic ban",
	31: "Temporary ban",
	32: "Permanent ban",
	40: "Generic protocol error",
	41: "Protocol unsupported",
	42: "Protocol: bad state",
	43: "Protocol: feature missing",
	44: "Protocol: bad state (IINF before SID)",
	45: "Protocol: transfer in progress",
	46: "Protocol: bad IP",
	47: "Protocol: no common hash method",
	50: "Generic file transfer error",
	51: "File not available",
	52: "File part not available",
	53: "Slots full",
	54: "No client-to-client connection possible",
}

// Status is an ADC status string: severity, well-known code, and
// free-text description.
type Status struct {
	Sev  Severity
	Code int
	Msg  string
	// Flags carries extra named parameters an ISTA may append (e.g. FC
	// for a flagged command, RF for a reference URL).
	Flags map[string]string
}

// ParseStatus parses a 3-digit severity+code token plus its free-text
// description.
func ParseStatus(codeStr, msg string) (Status, error) {
	if len(codeStr) != 3 {
		return Status{}, &InvalidStatusError{Code: codeStr}
	}
	sevDigit := codeStr[0]
	if sevDigit < '0' || sevDigit > '2' {
		return Status{}, &InvalidStatusError{Code: codeStr}
	}
	sev := Severity(sevDigit - '0')
	code, err := strconv.Atoi(codeStr[1:])
	if err != nil {
		return Status{}, &InvalidStatusError{Code: codeStr}
	}
	if _, ok := statusTable[code]; !ok {
		return Status{}, &InvalidStatusError{Code: codeStr}
	}
	return Status{Sev: sev, Code: code, Msg: msg}, nil
}

// Ok reports whether the status is Success or Recoverable.
func (s Status) Ok() bool { return s.Sev != Fatal }

// Err turns a non-success status into an error.
func (s Status) Err() error {
	if s.Sev == Success {
		return nil
	}
	return &StatusError{Status: s}
}

// Describe returns the well-known description for the status's code,
// falling back to the carried message if the code is somehow unknown.
func (s Status) Describe() string {
	if d, ok := statusTable[s.Code]; ok {
		return d
	}
	return s.Msg
}

// CodeString renders the 3-digit severity+code token.
func (s Status) CodeString() string {
	return fmt.Sprintf("%d%02d", s.Sev, s.Code)
}

// IsPasswordRequired reports whether this is the "password required
// but not given" status (code 26), surfaced distinctly since a client
// bridging NMDC registered-only errors needs to recognize it.
func (s Status) IsPasswordRequired() bool { return s.Code == 26 }

// IsBan reports whether this status represents a ban (codes 30-32).
func (s Status) IsBan() bool { return s.Code >= 30 && s.Code <= 32 }

// StatusError wraps a non-success Status as an error.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("adc: status %s: %s", e.Status.CodeString(), e.Status.Describe())
}

// StatusMessage builds the Status value that StatusMessageFrom turns
// into an outbound ISTA/HSTA message (e.g. a NoHashOverlap reply with
// code 47).
func StatusMessage(sev Severity, code int, msg string) Status {
	return Status{Sev: sev, Code: code, Msg: msg}
}

// ErrNoHashOverlap constructs the Status a hub-facing implementation
// would send for a failed hash negotiation (ADC code 47); a client
// instead simply closes the transport.
func ErrNoHashOverlap() Status {
	return StatusMessage(Fatal, 47, statusTable[47])
}
