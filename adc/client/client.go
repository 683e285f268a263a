package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/proxy"

	"github.com/udoprog/go-adc/adc"
	"github.com/udoprog/go-adc/adc/types"
	"github.com/udoprog/go-adc/tiger"
)

// ErrPeerOffline is returned when a direct-connect request targets a
// peer that has no current session.
var ErrPeerOffline = errors.New("adc: peer is offline")

// handshakeTimeout bounds the PROTOCOL step (the SUP/SID exchange); the
// IDENTIFY/VERIFY roster read in acceptUsersList uses its own
// one-minute deadline.
const handshakeTimeout = 5 * time.Second

// GeneratePID mints a Private ID by hashing a random 128-bit UUIDv4
// value with Tiger, giving a tiger.Size-byte PID.
func GeneratePID() types.PID {
	u := uuid.New()
	return types.CIDFromHash(tiger.Sum(u[:]))
}

// DialHub connects to addr and performs the client-to-hub handshake.
func DialHub(addr string, conf *Config) (*Conn, error) {
	return DialHubContext(context.Background(), addr, conf, nil)
}

// DialHubContext connects to addr, optionally through a SOCKS5 proxy
// dialer, honoring ctx's cancellation during the dial, and performs
// the client-to-hub handshake.
func DialHubContext(ctx context.Context, addr string, conf *Config, px proxy.Dialer) (*Conn, error) {
	conn, err := adc.DialContext(ctx, addr, px)
	if err != nil {
		return nil, err
	}
	c, err := HubHandshake(conn, conf)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Conn is a client-to-hub ADC connection: the handshake result plus a
// live roster and read loop.
type Conn struct {
	conn *adc.Conn
	conf *Config

	Events Events

	stateMu sync.RWMutex
	state   State

	sid types.SID
	cid types.CID
	fea adc.FeatureSet
	ext adc.FeatureSet

	hub HubInfo

	roster *roster

	tokMu  sync.Mutex
	tokens map[string]chan DirectConnectEvent

	closing chan struct{}
	closed  chan struct{}
}

// SID returns the session id the hub assigned this connection.
func (c *Conn) SID() types.SID { return c.sid }

// CID returns this client's own CID.
func (c *Conn) CID() types.CID { return c.cid }

// State returns the connection's current state-machine position.
func (c *Conn) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Hub returns the hub's own info record.
func (c *Conn) Hub() HubInfo { return c.hub }

// Peers returns a snapshot of the roster entries currently online
// (indexed by SID); peers that have gone offline are not included.
func (c *Conn) Peers() []*Peer { return c.roster.all() }

// Peer looks up a peer by its current session id.
func (c *Conn) Peer(sid types.SID) *Peer { return c.roster.bySIDGet(sid) }

// PeerByNick looks up an online peer by nickname (Unicode-normalized
// comparison).
func (c *Conn) PeerByNick(nick string) *Peer { return c.roster.byNickGet(nick) }

// Close shuts down the connection and waits for the read loop to exit.
func (c *Conn) Close() error {
	select {
	case <-c.closing:
		<-c.closed
		return nil
	default:
	}
	close(c.closing)
	err := c.conn.Close()
	<-c.closed
	return err
}

// HubHandshake runs the PROTOCOL/IDENTIFY/VERIFY sequence on an
// already-dialed transport and, on success, starts the read loop and
// returns a live Conn in the NORMAL state.
func HubHandshake(conn *adc.Conn, conf *Config) (*Conn, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	c := &Conn{
		conn:    conn,
		conf:    conf,
		roster:  newRoster(),
		tokens:  make(map[string]chan DirectConnectEvent),
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	if conf.Events != nil {
		c.Events = *conf.Events
	}
	c.cid = conf.PID.Hash()

	if err := c.protocolToHub(); err != nil {
		return nil, err
	}
	if err := c.identifyToHub(); err != nil {
		return nil, err
	}
	if err := c.acceptUsersList(); err != nil {
		return nil, err
	}
	c.setState(StateNormal)
	_ = conn.SetReadDeadline(time.Time{})
	if c.Events.ConnectionMade != nil {
		c.Events.ConnectionMade(c)
	}
	go c.readLoop()
	return c, nil
}

// protocolToHub negotiates SUP/SID, the PROTOCOL state.
func (c *Conn) protocolToHub() error {
	ours := adc.NewFeatureSet(adc.FeaBASE, adc.FeaTIGR)
	if c.conf.EnableZlib {
		ours[adc.FeaZLIB] = true
	}
	for f := range c.conf.Extensions {
		ours[f] = true
	}

	sup := adc.SupportMessage(adc.HubHeader(adc.CmdSUP), setSelectors(ours))
	if err := c.conn.WriteMessage(sup); err != nil {
		return err
	}

	deadline := time.Now().Add(handshakeTimeout)
	_ = c.conn.SetReadDeadline(deadline)

	msg, err := c.conn.ReadMessage()
	if err != nil {
		return err
	}
	if msg.Header.Kind != adc.KindInfo || msg.Header.Cmd != adc.CmdSUP {
		return fmt.Errorf("adc: expected ISUP, got %s", msg.Header.String())
	}
	hubFea := adc.NewFeatureSet()
	for _, sel := range adc.ParseSupport(msg) {
		hubFea[sel.Name] = sel.Add
	}
	mutual := ours.Intersect(hubFea)
	if !mutual.Has(adc.FeaBASE) {
		return fmt.Errorf("adc: hub does not support BASE")
	}
	if !mutual.Has(adc.FeaTIGR) {
		return &adc.NoHashOverlapError{}
	}
	c.fea = mutual
	c.ext = mutual.Clone()

	if mutual.Has(adc.FeaZLIB) {
		if err := c.conn.EnableZlib(); err != nil {
			return fmt.Errorf("adc: enabling ZLIB: %w", err)
		}
	}

	msg, err = c.conn.ReadMessage()
	if err != nil {
		return err
	}
	if msg.Header.Kind != adc.KindInfo || msg.Header.Cmd != adc.CmdSID {
		return &adc.ProtocolViolationError{Reason: fmt.Sprintf("expected ISID, got %s", msg.Header.String())}
	}
	sid, err := adc.ParseSIDAssign(msg)
	if err != nil {
		return err
	}
	c.sid = sid
	c.setState(StateIdentify)
	return nil
}

func setSelectors(s adc.FeatureSet) []adc.FeatureSel {
	sels := make([]adc.FeatureSel, 0, len(s))
	for f, add := range s {
		sels = append(sels, adc.FeatureSel{Add: add, Name: f})
	}
	return sels
}

// identifyToHub broadcasts our own BINF, possibly answering a GPA
// password challenge first (the VERIFY state).
func (c *Conn) identifyToHub() error {
	nick, share := c.conf.Name, c.conf.ShareSize
	if c.Events.GetUser != nil {
		if n, s, ok := c.Events.GetUser(c); ok {
			nick, share = n, s
		}
	}

	info := adc.NewInfo()
	info.Set("ID", c.cid.String())
	info.Set("PD", c.conf.PID.String())
	info.Set("NI", nick)
	info.Set("SS", types.EncodeInt(share))
	info.Set("VE", "go-adc")

	msg := adc.InfoMessage(adc.Broadcast(adc.CmdINF, c.sid), info)
	if err := c.conn.WriteMessage(msg); err != nil {
		return err
	}
	return nil
}

// answerPasswordChallenge computes HPAS from a server-supplied GPA
// salt: hash(password ‖ PID ‖ salt) under the negotiated hash method.
// An unset Password callback degrades to the anonymous hash(PID ‖ salt)
// form, which is what a hub that challenges unregistered clients
// expects.
func (c *Conn) answerPasswordChallenge(msg *adc.Message) error {
	c.setState(StateVerify)
	salt, err := adc.ParseGetPassword(msg, tiger.Size)
	if err != nil {
		return err
	}
	method, ok := adc.HashMethodByFeature(adc.FeaTIGR)
	if !ok {
		return errors.New("adc: no TIGR hash method registered")
	}
	var buf []byte
	if c.conf.Password != nil {
		pass, ok := c.conf.Password()
		if !ok {
			return errors.New("adc: password callback declined to authenticate")
		}
		buf = append(buf, pass...)
	}
	buf = append(buf, c.conf.PID.Bytes()...)
	buf = append(buf, salt.Data...)
	digest := method.Sum(buf)
	reply := adc.PasswordMessage(digest)
	if err := c.conn.WriteMessage(reply); err != nil {
		return err
	}
	c.setState(StateIdentify)
	return nil
}

// acceptUsersList reads the hub's IINF, optional ISTA/IGPA exchange,
// and the BINF roster, returning once our own entry appears.
func (c *Conn) acceptUsersList() error {
	deadline := time.Now().Add(time.Minute)
	_ = c.conn.SetReadDeadline(deadline)

	const (
		stageHubInfo = iota
		stageOptional
		stageRoster
	)
	stage := stageHubInfo
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		switch msg.Header.Kind {
		case adc.KindInfo:
			switch {
			case msg.Header.Cmd == adc.CmdGPA:
				if err := c.answerPasswordChallenge(msg); err != nil {
					return err
				}
				continue
			case msg.Header.Cmd == adc.CmdSTA:
				st, err := adc.ParseStatusMessage(msg)
				if err != nil {
					return err
				}
				if !st.Ok() {
					return st.Err()
				}
				stage = stageRoster
				continue
			case msg.Header.Cmd == adc.CmdINF && stage == stageHubInfo:
				c.hub = HubInfo{Info: adc.NewInfo()}
				c.hub.Info.ApplyMessage(msg)
				if c.Events.HubIdentified != nil {
					c.Events.HubIdentified(c, &c.hub)
				}
				c.hub.Info.Clean()
				stage = stageOptional
				continue
			default:
				return fmt.Errorf("adc: unexpected hub message %s in stage %d", msg.Header.String(), stage)
			}
		case adc.KindBroadcast:
			if stage == stageHubInfo {
				return fmt.Errorf("adc: unexpected broadcast before hub info")
			}
			stage = stageRoster
			if msg.Header.MySID == c.sid {
				return nil
			}
			cidStr, _ := msg.First("ID")
			c.roster.join(cidStr, msg.Header.MySID, msg)
		default:
			return fmt.Errorf("adc: unexpected message %s during handshake", msg.Header.String())
		}
	}
}

func (c *Conn) readLoop() {
	defer close(c.closed)
	var lastErr error
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			lastErr = err
			break
		}
		if err := c.dispatch(msg); err != nil {
			lastErr = err
			break
		}
	}
	_ = c.conn.Close()
	if c.Events.ConnectionLost != nil {
		c.Events.ConnectionLost(c, lastErr)
	}
}

// dispatch routes one message received in the NORMAL state (the read
// loop starts only after the handshake) by (header kind, command); a
// handler panic or a dispatch error both result in the caller closing
// the transport, the fail-closed policy for the whole read loop.
func (c *Conn) dispatch(msg *adc.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adc: handler panic: %v", r)
		}
	}()
	switch msg.Header.Kind {
	case adc.KindBroadcast:
		return c.dispatchBroadcast(msg)
	case adc.KindInfo:
		return c.dispatchInfo(msg)
	case adc.KindDirect, adc.KindEcho:
		if msg.Header.TargetSID != c.sid {
			return nil
		}
		return c.dispatchDirect(msg)
	case adc.KindFeature:
		for _, sel := range msg.Header.Sel {
			if c.ext.Has(sel.Name) != sel.Add {
				return nil
			}
		}
		return c.dispatchBroadcast(msg)
	default:
		return nil
	}
}

func (c *Conn) dispatchBroadcast(msg *adc.Message) error {
	switch msg.Header.Cmd {
	case adc.CmdINF:
		cid, _ := msg.First("ID")
		p := c.roster.join(cid, msg.Header.MySID, msg)
		if c.Events.UserInfo != nil {
			c.Events.UserInfo(c, p)
		}
		p.cleanInfo()
	case adc.CmdMSG:
		if c.roster.bySIDGet(msg.Header.MySID) == nil {
			log.Printf("adc: dropping chat from unknown SID %s", msg.Header.MySID)
			return nil
		}
		text, _, isPM, err := adc.ParseChat(msg)
		if err != nil {
			return err
		}
		if c.Events.Message != nil {
			c.Events.Message(c, msg.Header.MySID, text, isPM)
		}
	case adc.CmdSCH:
		if c.Events.SearchRequest != nil {
			c.Events.SearchRequest(c, msg.Header.MySID, namedParams(msg))
		}
	case adc.CmdRES:
		if c.Events.SearchResult != nil {
			c.Events.SearchResult(c, msg.Header.MySID, namedParams(msg))
		}
	default:
		// unrecognized broadcast command: logged and ignored
		log.Printf("adc: ignoring broadcast command %s", msg.Header.Cmd)
	}
	return nil
}

func (c *Conn) dispatchInfo(msg *adc.Message) error {
	switch msg.Header.Cmd {
	case adc.CmdSID:
		// The hub assigns a SID exactly once, during PROTOCOL.
		return &adc.ProtocolViolationError{Reason: "duplicate SID assignment"}
	case adc.CmdINF:
		if c.hub.Info == nil {
			c.hub = HubInfo{Info: adc.NewInfo()}
		}
		c.hub.Info.ApplyMessage(msg)
		if c.Events.HubIdentified != nil {
			c.Events.HubIdentified(c, &c.hub)
		}
		c.hub.Info.Clean()
	case adc.CmdMSG:
		text, _, _, err := adc.ParseChat(msg)
		if err != nil {
			return err
		}
		if c.Events.Message != nil {
			c.Events.Message(c, types.SID{}, text, false)
		}
	case adc.CmdQUI:
		sidStr, err := msg.Positional(0)
		if err != nil {
			return err
		}
		sid, err := types.ParseSID(sidStr)
		if err != nil {
			return err
		}
		c.roster.quit(sid)
		if c.Events.UserQuit != nil {
			c.Events.UserQuit(c, sid)
		}
	case adc.CmdSTA:
		st, err := adc.ParseStatusMessage(msg)
		if err != nil {
			return err
		}
		if c.Events.Status != nil {
			c.Events.Status(c, st)
		}
		if st.Sev == adc.Fatal {
			return st.Err()
		}
	default:
		// unrecognized hub-directed command: logged and ignored
		log.Printf("adc: ignoring hub command %s", msg.Header.Cmd)
	}
	return nil
}

func (c *Conn) dispatchDirect(msg *adc.Message) error {
	switch msg.Header.Cmd {
	case adc.CmdMSG:
		text, _, _, err := adc.ParseChat(msg)
		if err != nil {
			return err
		}
		if c.Events.Message != nil {
			c.Events.Message(c, msg.Header.MySID, text, true)
		}
	case adc.CmdCTM, adc.CmdRCM:
		proto, port, token, err := adc.ParseConnectRequest(msg)
		if err != nil {
			var bad *adc.InvalidParameterError
			if errors.As(err, &bad) {
				log.Printf("adc: WARN dropping %s from %s: %v", msg.Header.Cmd, msg.Header.MySID, err)
				return nil
			}
			return err
		}
		p := c.roster.bySIDGet(msg.Header.MySID)
		ev := DirectConnectEvent{Peer: p, Proto: proto, Port: port, Token: token, Reverse: msg.Header.Cmd == adc.CmdRCM}
		c.tokMu.Lock()
		if ch, ok := c.tokens[token]; ok {
			delete(c.tokens, token)
			ch <- ev
			close(ch)
		}
		c.tokMu.Unlock()
		if c.Events.DirectConnect != nil {
			c.Events.DirectConnect(c, ev)
		}
	default:
		// unrecognized direct command: logged and ignored
		log.Printf("adc: ignoring direct command %s", msg.Header.Cmd)
	}
	return nil
}

func namedParams(msg *adc.Message) map[string]string {
	out := make(map[string]string)
	for _, t := range msg.Tokens {
		if t.Named {
			out[t.Key] = t.Value
		}
	}
	return out
}

// newToken mints a random correlation token for a CTM/RCM round trip.
func newToken() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("t%d", n.Int64())
}

// SendChat broadcasts a chat message to the hub's main room, or, if pm
// is non-zero, sends it as a private message to that session.
func (c *Conn) SendChat(text string, pm types.SID) error {
	msg := adc.ChatMessage(adc.Broadcast(adc.CmdMSG, c.sid), text, pm)
	return c.conn.WriteMessage(msg)
}

// ConnectToMe sends a CTM to the given peer and registers a
// correlation channel that fires when the matching RCM (if any)
// arrives, fulfilling the embedder-facing half of the CTM/RCM
// handshake described for direct-connect events.
func (c *Conn) ConnectToMe(target types.SID, proto string, port int) (string, chan DirectConnectEvent, error) {
	tok := newToken()
	ch := make(chan DirectConnectEvent, 1)
	c.tokMu.Lock()
	c.tokens[tok] = ch
	c.tokMu.Unlock()
	msg := adc.ConnectToMeMessage(adc.Direct(adc.CmdCTM, c.sid, target), proto, port, tok)
	if err := c.conn.WriteMessage(msg); err != nil {
		c.tokMu.Lock()
		delete(c.tokens, tok)
		c.tokMu.Unlock()
		return "", nil, err
	}
	return tok, ch, nil
}
