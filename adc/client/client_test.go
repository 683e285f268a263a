package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udoprog/go-adc/adc"
	"github.com/udoprog/go-adc/adc/types"
)

func mustSID(t *testing.T, s string) types.SID {
	t.Helper()
	sid, err := types.ParseSID(s)
	require.NoError(t, err)
	return sid
}

// runFakeHub drives the hub side of the PROTOCOL/IDENTIFY/NORMAL
// sequence, then, once the caller signals eventsReady (meaning the
// client Conn's Events are safely installed), sends a roster update
// and a quit notice.
func runFakeHub(t *testing.T, hubConn *adc.Conn, clientSID, peerSID types.SID, eventsReady <-chan struct{}) error {
	t.Helper()

	sup, err := hubConn.ReadMessage()
	if err != nil {
		return err
	}
	if sup.Header.Cmd != adc.CmdSUP {
		return errUnexpected(sup)
	}

	reply := adc.SupportMessage(adc.InfoHeader(adc.CmdSUP), []adc.FeatureSel{
		{Add: true, Name: adc.FeaBASE},
		{Add: true, Name: adc.FeaTIGR},
	})
	if err := hubConn.WriteMessage(reply); err != nil {
		return err
	}
	if err := hubConn.WriteMessage(adc.SIDAssignMessage(clientSID)); err != nil {
		return err
	}

	// identifyToHub's BINF.
	if _, err := hubConn.ReadMessage(); err != nil {
		return err
	}

	hubInfo := adc.NewInfo()
	hubInfo.Set("NI", "TestHub")
	if err := hubConn.WriteMessage(adc.InfoMessage(adc.InfoHeader(adc.CmdINF), hubInfo)); err != nil {
		return err
	}
	okStatus := adc.StatusMessageFrom(adc.InfoHeader(adc.CmdSTA), adc.Status{Sev: adc.Success, Code: 0, Msg: "ok"})
	if err := hubConn.WriteMessage(okStatus); err != nil {
		return err
	}

	peerInfo := adc.NewInfo()
	peerInfo.Set("ID", "PEERCID")
	peerInfo.Set("NI", "bob")
	peerInfo.Set("SS", "1024")
	if err := hubConn.WriteMessage(adc.InfoMessage(adc.Broadcast(adc.CmdINF, peerSID), peerInfo)); err != nil {
		return err
	}

	selfInfo := adc.NewInfo()
	selfInfo.Set("NI", "tester")
	if err := hubConn.WriteMessage(adc.InfoMessage(adc.Broadcast(adc.CmdINF, clientSID), selfInfo)); err != nil {
		return err
	}

	<-eventsReady

	updated := adc.NewInfo()
	updated.Set("ID", "PEERCID")
	updated.Set("NI", "bob")
	updated.Set("SS", "2048")
	if err := hubConn.WriteMessage(adc.InfoMessage(adc.Broadcast(adc.CmdINF, peerSID), updated)); err != nil {
		return err
	}

	quit := adc.NewMessage(adc.InfoHeader(adc.CmdQUI)).AddPositional(peerSID.String()).AddNamed("MS", "bye")
	return hubConn.WriteMessage(quit)
}

func errUnexpected(m *adc.Message) error {
	return &adc.MalformedFrameError{Line: m.Header.String(), Reason: "unexpected message in fake hub script"}
}

// TestHubHandshakeRosterAndQuit exercises feature negotiation, SID
// assignment, hub info, a roster BINF upsert with typed fields, and
// IQUI removal plus the UserQuit event, end to end over a net.Pipe
// transport.
func TestHubHandshakeRosterAndQuit(t *testing.T) {
	clientRaw, hubRaw := net.Pipe()
	hubConn := adc.NewConn(hubRaw)

	clientSID := mustSID(t, "AAAA")
	peerSID := mustSID(t, "BBBB")

	eventsReady := make(chan struct{})
	hubDone := make(chan error, 1)
	go func() {
		hubDone <- runFakeHub(t, hubConn, clientSID, peerSID, eventsReady)
	}()

	conf := &Config{PID: GeneratePID(), Name: "tester"}
	conn, err := HubHandshake(adc.NewConn(clientRaw), conf)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, StateNormal, conn.State())
	assert.Equal(t, "AAAA", conn.SID().String())
	assert.Equal(t, "TestHub", conn.Hub().Info.Nick())

	userInfoCh := make(chan *Peer, 2)
	userQuitCh := make(chan types.SID, 1)
	conn.Events.UserInfo = func(c *Conn, p *Peer) { userInfoCh <- p }
	conn.Events.UserQuit = func(c *Conn, sid types.SID) { userQuitCh <- sid }
	close(eventsReady)

	select {
	case p := <-userInfoCh:
		assert.Equal(t, "bob", p.Info().Nick())
		assert.Equal(t, "2048", mustGet(t, p.Info(), "SS"))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for roster upsert event")
	}

	select {
	case sid := <-userQuitCh:
		assert.Equal(t, peerSID, sid)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for user quit event")
	}

	assert.Nil(t, conn.Peer(peerSID), "roster entry must be removed from the SID index after IQUI")

	require.NoError(t, <-hubDone)
}

func mustGet(t *testing.T, info *adc.Info, key string) string {
	t.Helper()
	v, ok := info.Get(key)
	require.True(t, ok, "missing field %q", key)
	return v
}

// TestDispatchClosure checks that for every (header kind, command)
// pair dispatch registers a handler for, at least one input reaches
// that handler. The info SID handler always returns an error, so it is
// covered by TestDispatchDuplicateSIDAssignmentIsFatal instead.
func TestDispatchClosure(t *testing.T) {
	mySID := mustSID(t, "AAAA")
	peerSID := mustSID(t, "BBBB")

	newConn := func() (*Conn, *[]string) {
		var fired []string
		c := &Conn{
			sid:    mySID,
			ext:    adc.NewFeatureSet(adc.FeaBASE, adc.FeaTIGR),
			roster: newRoster(),
			tokens: make(map[string]chan DirectConnectEvent),
		}
		// The peer must be a known roster entry: chat from an unknown
		// SID is dropped, not dispatched.
		seed := adc.NewMessage(adc.Broadcast(adc.CmdINF, peerSID)).AddNamed("ID", "PEERCID").AddNamed("NI", "bob")
		c.roster.join("PEERCID", peerSID, seed)
		c.Events.UserInfo = func(*Conn, *Peer) { fired = append(fired, "UserInfo") }
		c.Events.HubIdentified = func(*Conn, *HubInfo) { fired = append(fired, "HubIdentified") }
		c.Events.Message = func(*Conn, types.SID, string, bool) { fired = append(fired, "Message") }
		c.Events.SearchRequest = func(*Conn, types.SID, map[string]string) { fired = append(fired, "SearchRequest") }
		c.Events.SearchResult = func(*Conn, types.SID, map[string]string) { fired = append(fired, "SearchResult") }
		c.Events.UserQuit = func(*Conn, types.SID) { fired = append(fired, "UserQuit") }
		c.Events.Status = func(*Conn, adc.Status) { fired = append(fired, "Status") }
		c.Events.DirectConnect = func(*Conn, DirectConnectEvent) { fired = append(fired, "DirectConnect") }
		return c, &fired
	}

	cases := []struct {
		name string
		msg  *adc.Message
		want string
	}{
		{
			"broadcast INF upserts roster",
			adc.NewMessage(adc.Broadcast(adc.CmdINF, peerSID)).AddNamed("ID", "PEERCID").AddNamed("NI", "bob"),
			"UserInfo",
		},
		{
			"broadcast MSG delivers chat",
			adc.NewMessage(adc.Broadcast(adc.CmdMSG, peerSID)).AddPositional("hi"),
			"Message",
		},
		{
			"broadcast SCH delivers search request",
			adc.NewMessage(adc.Broadcast(adc.CmdSCH, peerSID)).AddNamed("AN", "foo"),
			"SearchRequest",
		},
		{
			"broadcast RES delivers search result",
			adc.NewMessage(adc.Broadcast(adc.CmdRES, peerSID)).AddNamed("FN", "file"),
			"SearchResult",
		},
		{
			"info INF updates hub info",
			adc.NewMessage(adc.InfoHeader(adc.CmdINF)).AddNamed("NI", "TestHub"),
			"HubIdentified",
		},
		{
			"info MSG delivers hub chat",
			adc.NewMessage(adc.InfoHeader(adc.CmdMSG)).AddPositional("hub says hi"),
			"Message",
		},
		{
			"info QUI removes roster entry",
			adc.NewMessage(adc.InfoHeader(adc.CmdQUI)).AddPositional(peerSID.String()),
			"UserQuit",
		},
		{
			"info STA delivers status",
			adc.NewMessage(adc.InfoHeader(adc.CmdSTA)).AddPositional("000").AddPositional("ok"),
			"Status",
		},
		{
			"direct MSG addressed to us delivers private chat",
			adc.NewMessage(adc.Direct(adc.CmdMSG, peerSID, mySID)).AddPositional("psst"),
			"Message",
		},
		{
			"direct CTM addressed to us dispatches",
			adc.NewMessage(adc.Direct(adc.CmdCTM, peerSID, mySID)).AddPositional("ADC/1.0").AddPositional("5000").AddPositional("tok1"),
			"DirectConnect",
		},
		{
			"echo RCM addressed to us dispatches",
			adc.NewMessage(adc.Echo(adc.CmdRCM, peerSID, mySID)).AddPositional("ADC/1.0").AddPositional("tok1"),
			"DirectConnect",
		},
		{
			"feature INF with a matching selector still reaches broadcast handling",
			adc.NewMessage(adc.FeatureHeader(adc.CmdINF, peerSID, []adc.FeatureSel{{Add: true, Name: adc.FeaBASE}})).AddNamed("ID", "PEERCID").AddNamed("NI", "carol"),
			"UserInfo",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			conn, fired := newConn()
			err := conn.dispatch(c.msg)
			require.NoError(t, err)
			assert.Contains(t, *fired, c.want)
		})
	}
}

// TestDispatchDropsChatFromUnknownSID: a BMSG whose sender has no
// roster entry is logged and dropped, never surfaced to the embedder.
func TestDispatchDropsChatFromUnknownSID(t *testing.T) {
	fired := false
	c := &Conn{
		sid:    mustSID(t, "AAAA"),
		ext:    adc.NewFeatureSet(adc.FeaBASE),
		roster: newRoster(),
		tokens: make(map[string]chan DirectConnectEvent),
	}
	c.Events.Message = func(*Conn, types.SID, string, bool) { fired = true }

	msg := adc.NewMessage(adc.Broadcast(adc.CmdMSG, mustSID(t, "BBBB"))).AddPositional("hi")
	require.NoError(t, c.dispatch(msg))
	assert.False(t, fired, "chat from a SID the roster has never seen must be dropped")
}

// TestDispatchDuplicateSIDAssignmentIsFatal: the hub assigns a SID
// exactly once; a second ISID is a protocol violation that must tear
// the connection down.
func TestDispatchDuplicateSIDAssignmentIsFatal(t *testing.T) {
	c := &Conn{
		sid:    mustSID(t, "AAAA"),
		ext:    adc.NewFeatureSet(adc.FeaBASE),
		roster: newRoster(),
		tokens: make(map[string]chan DirectConnectEvent),
	}

	msg := adc.NewMessage(adc.InfoHeader(adc.CmdSID)).AddPositional("BBBB")
	err := c.dispatch(msg)
	require.Error(t, err)
	var violation *adc.ProtocolViolationError
	assert.ErrorAs(t, err, &violation)
}

func TestRosterNickIndex(t *testing.T) {
	r := newRoster()
	sid := types.SID{'B', 'B', 'B', 'B'}

	join := adc.NewMessage(adc.Broadcast(adc.CmdINF, sid)).AddNamed("ID", "PEERCID").AddNamed("NI", "alice")
	p := r.join("PEERCID", sid, join)
	require.Same(t, p, r.byNickGet("alice"))

	rename := adc.NewMessage(adc.Broadcast(adc.CmdINF, sid)).AddNamed("ID", "PEERCID").AddNamed("NI", "bob")
	r.join("PEERCID", sid, rename)
	assert.Nil(t, r.byNickGet("alice"), "old nick must be unindexed after a rename")
	require.Same(t, p, r.byNickGet("bob"))

	r.quit(sid)
	assert.Nil(t, r.byNickGet("bob"), "nick index must not outlive the session")
}

// TestDispatchIgnoresDirectMessagesNotAddressedToUs guards the
// TargetSID filter: a D/E frame addressed to a different session must
// never reach a handler.
func TestDispatchIgnoresDirectMessagesNotAddressedToUs(t *testing.T) {
	mySID := mustSID(t, "AAAA")
	otherSID := mustSID(t, "CCCC")
	peerSID := mustSID(t, "BBBB")

	fired := false
	c := &Conn{
		sid:    mySID,
		ext:    adc.NewFeatureSet(adc.FeaBASE),
		roster: newRoster(),
		tokens: make(map[string]chan DirectConnectEvent),
	}
	c.Events.DirectConnect = func(*Conn, DirectConnectEvent) { fired = true }

	msg := adc.NewMessage(adc.Direct(adc.CmdCTM, peerSID, otherSID)).
		AddPositional("ADC/1.0").AddPositional("5000").AddPositional("tok1")
	require.NoError(t, c.dispatch(msg))
	assert.False(t, fired, "direct message addressed to another SID must not reach our handler")
}

// TestDispatchFeatureHeaderFiltersOnSelectors ensures a feature-framed
// broadcast whose selectors don't match our negotiated extensions is
// silently dropped rather than dispatched.
func TestDispatchFeatureHeaderFiltersOnSelectors(t *testing.T) {
	mySID := mustSID(t, "AAAA")
	peerSID := mustSID(t, "BBBB")

	fired := false
	c := &Conn{
		sid:    mySID,
		ext:    adc.NewFeatureSet(adc.FeaBASE),
		roster: newRoster(),
		tokens: make(map[string]chan DirectConnectEvent),
	}
	c.Events.UserInfo = func(*Conn, *Peer) { fired = true }

	msg := adc.NewMessage(adc.FeatureHeader(adc.CmdINF, peerSID, []adc.FeatureSel{{Add: true, Name: adc.FeaTIGR}})).
		AddNamed("NI", "carol")
	require.NoError(t, c.dispatch(msg))
	assert.False(t, fired, "selector TIGR is not in our extension set, so this message must be dropped")
}

// TestDispatchFatalStatusClosesTransport: a fatal ISTA still reaches
// Events.Status, but dispatch returns an error so the read loop closes
// the transport within the same dispatch step.
func TestDispatchFatalStatusClosesTransport(t *testing.T) {
	mySID := mustSID(t, "AAAA")

	fired := false
	c := &Conn{
		sid:    mySID,
		ext:    adc.NewFeatureSet(adc.FeaBASE),
		roster: newRoster(),
		tokens: make(map[string]chan DirectConnectEvent),
	}
	c.Events.Status = func(*Conn, adc.Status) { fired = true }

	msg := adc.NewMessage(adc.InfoHeader(adc.CmdSTA)).AddPositional("240").AddPositional("Protocol error")
	err := c.dispatch(msg)

	require.Error(t, err, "a fatal ISTA must make dispatch return an error so the read loop closes the transport")
	assert.True(t, fired, "Events.Status must still be notified before closing")

	var statusErr *adc.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, adc.Fatal, statusErr.Status.Sev)
	assert.Equal(t, 40, statusErr.Status.Code)
}

// TestConnectToMeCorrelatesWithIncomingRCM exercises the
// ConnectToMe/token-channel half of the direct-connect handshake the
// embedder relies on.
func TestConnectToMeCorrelatesWithIncomingRCM(t *testing.T) {
	clientRaw, hubRaw := net.Pipe()
	hubConn := adc.NewConn(hubRaw)
	mySID := mustSID(t, "AAAA")
	peerSID := mustSID(t, "BBBB")

	c := &Conn{
		conn:    adc.NewConn(clientRaw),
		sid:     mySID,
		ext:     adc.NewFeatureSet(adc.FeaBASE),
		roster:  newRoster(),
		tokens:  make(map[string]chan DirectConnectEvent),
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}

	readDone := make(chan *adc.Message, 1)
	go func() {
		m, err := hubConn.ReadMessage()
		require.NoError(t, err)
		readDone <- m
	}()

	tok, ch, err := c.ConnectToMe(peerSID, "ADC/1.0", 5000)
	require.NoError(t, err)

	sent := <-readDone
	assert.Equal(t, adc.CmdCTM, sent.Header.Cmd)

	rcm := adc.NewMessage(adc.Echo(adc.CmdRCM, peerSID, mySID)).AddPositional("ADC/1.0").AddPositional(tok)
	require.NoError(t, c.dispatch(rcm))

	select {
	case ev := <-ch:
		assert.True(t, ev.Reverse)
		assert.Equal(t, tok, ev.Token)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlated RCM event")
	}
}
