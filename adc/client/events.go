package client

import (
	"github.com/udoprog/go-adc/adc"
	"github.com/udoprog/go-adc/adc/types"
)

// DirectConnectEvent carries a CTM/RCM correlation for the embedder to
// act on; this library never opens the C-C transport itself.
type DirectConnectEvent struct {
	Peer    *Peer
	Proto   string
	Port    int // 0 for a reverse request
	Token   string
	Reverse bool
}

// Events is the set of callbacks a Conn reports activity through. Each
// field may be left nil; a nil callback is simply skipped. A panic in
// a callback run by the read loop is recovered by dispatch and, like a
// frame/parse failure, ends the read loop and closes the transport
// (the fail-closed policy).
type Events struct {
	ConnectionMade func(c *Conn)
	ConnectionLost func(c *Conn, err error)
	HubIdentified  func(c *Conn, hub *HubInfo)

	// GetUser is a pull: right before the login INF is sent, the
	// embedder may supply the nick and share size to advertise,
	// overriding the Config values.
	GetUser func(c *Conn) (nick string, shareSize int64, ok bool)

	UserInfo      func(c *Conn, p *Peer)
	UserQuit      func(c *Conn, sid types.SID)
	Message       func(c *Conn, from types.SID, text string, pm bool)
	Status        func(c *Conn, s adc.Status)
	DirectConnect func(c *Conn, ev DirectConnectEvent)
	SearchRequest func(c *Conn, from types.SID, params map[string]string)
	SearchResult  func(c *Conn, from types.SID, params map[string]string)
}
