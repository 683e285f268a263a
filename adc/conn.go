package adc

import (
	"bufio"
	"bytes"
	"compress/flate"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base32"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// Debug enables wire-level trace logging of every line sent and
// received.
var Debug bool

// DefaultPort is the canonical ADC port.
const DefaultPort = 5000

// DefaultPortTLS is the canonical ADCS port.
const DefaultPortTLS = 5001

var dialer = net.Dialer{}

// Dial connects to addr ("adc://host:port" or "adcs://host:port").
func Dial(addr string) (*Conn, error) {
	return DialContext(context.Background(), addr, nil)
}

// DialContext connects to addr, optionally routing through a SOCKS5
// proxy dialer (nil uses a direct net.Dialer).
func DialContext(ctx context.Context, addr string, px proxy.Dialer) (*Conn, error) {
	u, err := ParseURL(addr)
	if err != nil {
		return nil, err
	}

	var secure bool
	switch u.Scheme {
	case "adc":
	case "adcs":
		secure = true
	default:
		return nil, fmt.Errorf("adc: unsupported scheme %q", u.Scheme)
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		defPort := DefaultPort
		if secure {
			defPort = DefaultPortTLS
		}
		host, port, err = net.SplitHostPort(u.Host + ":" + strconv.Itoa(defPort))
		if err != nil {
			return nil, err
		}
	}
	hostPort := net.JoinHostPort(host, port)

	var conn net.Conn
	if cd, ok := px.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", hostPort)
	} else if px != nil {
		conn, err = px.Dial("tcp", hostPort)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", hostPort)
	}
	if err != nil {
		return nil, err
	}

	var keyprint string
	if secure {
		sconn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
		if err := sconn.HandshakeContext(ctx); err != nil {
			_ = sconn.Close()
			return nil, fmt.Errorf("adc: TLS handshake failed: %w", err)
		}
		conn = sconn
		if exp := u.Query().Get("kp"); exp != "" {
			if err := verifyKeyPrint(sconn, exp); err != nil {
				_ = sconn.Close()
				return nil, err
			}
		}
		keyprint = keyPrintOf(sconn)
	}
	c := NewConn(conn)
	c.keyprint = keyprint
	return c, nil
}

// verifyKeyPrint checks the leaf certificate's SHA-256 fingerprint
// against an "SHA256/<base32>" keyprint string carried in an adcs://
// URL, the same convention NMDC hub-list keyprints use.
func verifyKeyPrint(c *tls.Conn, exp string) error {
	const prefix = "SHA256/"
	if !strings.HasPrefix(exp, prefix) {
		return fmt.Errorf("adc: unsupported keyprint format %q", exp)
	}
	state := c.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return fmt.Errorf("adc: no peer certificate presented")
	}
	got := keyPrintOf(c)
	if !strings.EqualFold(got, exp) {
		return fmt.Errorf("adc: keyprint mismatch: expected %s got %s", exp, got)
	}
	return nil
}

func keyPrintOf(c *tls.Conn) string {
	state := c.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	sum := sha256.Sum256(state.PeerCertificates[0].Raw)
	return "SHA256/" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
}

// LineHook observes a raw line before it is parsed (read side) or
// after it is formatted (write side); returning false suppresses
// default processing of that line.
type LineHook func(line string) (bool, error)

// MessageHook observes a successfully parsed/formatted Message.
type MessageHook func(m *Message) (bool, error)

// Conn is a line-framing ADC connection: it owns the socket, decodes
// and encodes frames, and dispatches hook callbacks, but carries no
// protocol state machine of its own (that lives in package client).
type Conn struct {
	conn net.Conn

	keyprint string

	maxLine int

	wmu    sync.Mutex
	w      *bufio.Writer
	closed bool

	rmu    sync.Mutex
	r      *bufio.Reader
	flateR bool
	flateW *flate.Writer

	onLineR    LineHook
	onLineW    LineHook
	onMessageR MessageHook
	onMessageW MessageHook

	onUnmarshalError func(line string, err error) (bool, error)
}

// NewConn wraps an already-established net.Conn in an ADC frame layer.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:    conn,
		maxLine: MaxLineLength,
		w:       bufio.NewWriter(conn),
		r:       bufio.NewReader(conn),
	}
}

// GetKeyPrint returns the TLS certificate fingerprint observed during
// the handshake, if the connection is secure.
func (c *Conn) GetKeyPrint() string { return c.keyprint }

// OnLineR registers a hook fired for every raw line read.
func (c *Conn) OnLineR(fn LineHook) { c.onLineR = fn }

// OnLineW registers a hook fired for every raw line written.
func (c *Conn) OnLineW(fn LineHook) { c.onLineW = fn }

// OnMessageR registers a hook fired for every successfully parsed message.
func (c *Conn) OnMessageR(fn MessageHook) { c.onMessageR = fn }

// OnMessageW registers a hook fired for every successfully formatted message.
func (c *Conn) OnMessageW(fn MessageHook) { c.onMessageW = fn }

// OnUnmarshalError registers a hook fired when a line fails to parse;
// returning (true, nil) tells ReadMessage to skip the bad line and
// keep reading rather than returning the error to the caller.
func (c *Conn) OnUnmarshalError(fn func(line string, err error) (bool, error)) {
	c.onUnmarshalError = fn
}

// SetMaxLineLength overrides the default inbound line-length limit.
func (c *Conn) SetMaxLineLength(n int) { c.maxLine = n }

// EnableZlib switches both directions of the connection to a raw
// DEFLATE stream, the wire effect of a mutual ZLIB feature
// negotiation in SUP. It may be called only once, after the last
// plain-text frame has been written/read, and before any compressed
// frame is expected.
func (c *Conn) EnableZlib() error {
	c.rmu.Lock()
	if !c.flateR {
		buffered, _ := c.r.Peek(c.r.Buffered())
		pending := append([]byte(nil), buffered...)
		mr := io.MultiReader(bytes.NewReader(pending), c.conn)
		c.r = bufio.NewReader(flate.NewReader(mr))
		c.flateR = true
	}
	c.rmu.Unlock()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.flateW == nil {
		if err := c.w.Flush(); err != nil {
			return err
		}
		fw, err := flate.NewWriter(c.conn, flate.DefaultCompression)
		if err != nil {
			return err
		}
		c.flateW = fw
		c.w = bufio.NewWriter(fw)
	}
	return nil
}

func (c *Conn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// ReadMessage blocks until a full line has been read and parsed.
func (c *Conn) ReadMessage() (*Message, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if Debug {
			log.Printf("adc <- %q", line)
		}
		if c.onLineR != nil {
			ok, err := c.onLineR(line)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		m, err := ParseLine(line)
		if err != nil {
			if c.onUnmarshalError != nil {
				retry, hookErr := c.onUnmarshalError(line, err)
				if hookErr != nil {
					return nil, hookErr
				}
				if retry {
					continue
				}
			}
			return nil, err
		}
		if c.onMessageR != nil {
			ok, err := c.onMessageR(m)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		return m, nil
	}
}

func (c *Conn) readLine() (string, error) {
	var buf []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		n := len(buf)
		if err == nil {
			n-- // the '\n' terminator does not count toward the limit
		}
		if n > c.maxLine {
			return "", &LineTooLongError{Max: c.maxLine}
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return "", err
	}
	s := strings.TrimSuffix(string(buf), "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

// WriteMessage formats and writes m, flushing immediately.
func (c *Conn) WriteMessage(m *Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return fmt.Errorf("adc: connection closed")
	}
	line, err := FormatLine(m)
	if err != nil {
		return err
	}
	if c.onMessageW != nil {
		ok, err := c.onMessageW(m)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	if c.onLineW != nil {
		ok, err := c.onLineW(line)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	if Debug {
		log.Printf("adc -> %q", line)
	}
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\n"); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}
	if c.flateW != nil {
		// Sync-flush: pushes buffered DEFLATE output to the wire
		// without terminating the stream, so the hub can decode
		// each frame as it arrives.
		return c.flateW.Flush()
	}
	return nil
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	c.wmu.Lock()
	c.closed = true
	if c.flateW != nil {
		_ = c.w.Flush()
		_ = c.flateW.Close()
	}
	c.wmu.Unlock()
	return c.conn.Close()
}

// ParseURL parses an adc:// or adcs:// hub address.
func ParseURL(addr string) (*url.URL, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("adc: invalid address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "adc", "adcs":
	default:
		return nil, fmt.Errorf("adc: invalid address %q: unknown scheme", addr)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("adc: invalid address %q: missing host", addr)
	}
	return u, nil
}
