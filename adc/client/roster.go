package client

import (
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/udoprog/go-adc/adc"
	"github.com/udoprog/go-adc/adc/types"
)

// HubInfo holds the hub's own BINF/HINF record.
type HubInfo struct {
	Info *adc.Info
}

// Peer is a single roster entry: a client's identity plus its current
// (possibly absent) session id. The same Peer survives a user going
// offline and back online under a new SID, keyed internally by CID.
type Peer struct {
	mu   sync.RWMutex
	sid  types.SID
	info *adc.Info

	// nickKey is the normalized nick this peer is currently indexed
	// under; guarded by the owning roster's mutex, not p.mu.
	nickKey string
}

// SID returns the peer's current session id, the zero value if offline.
func (p *Peer) SID() types.SID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sid
}

// Online reports whether the peer currently has an assigned SID.
func (p *Peer) Online() bool {
	return !p.SID().IsZero()
}

// Info returns the peer's user-info record itself, not a copy: later
// INF updates for this peer modify the same record.
func (p *Peer) Info() *adc.Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

func (p *Peer) setOnline(sid types.SID) {
	p.mu.Lock()
	p.sid = sid
	p.mu.Unlock()
}

func (p *Peer) setOffline() {
	p.mu.Lock()
	p.sid = types.SID{}
	p.mu.Unlock()
}

// cleanInfo clears the record's dirty-key set once an update has been
// reacted to, so the next INF burst is observed exactly once.
func (p *Peer) cleanInfo() {
	p.mu.Lock()
	if p.info != nil {
		p.info.Clean()
	}
	p.mu.Unlock()
}

func (p *Peer) applyInfo(msg *adc.Message) {
	p.mu.Lock()
	if p.info == nil {
		p.info = adc.NewInfo()
	}
	p.info.ApplyMessage(msg)
	p.mu.Unlock()
}

// roster tracks all known peers by both CID (stable across
// reconnects within a session) and SID (only valid while online).
type roster struct {
	mu     sync.RWMutex
	byCID  map[string]*Peer
	bySID  map[types.SID]*Peer
	byNick map[string]*Peer
}

func newRoster() *roster {
	return &roster{
		byCID:  make(map[string]*Peer),
		bySID:  make(map[types.SID]*Peer),
		byNick: make(map[string]*Peer),
	}
}

// normNick canonicalizes a nickname for index lookup: hubs and clients
// disagree on Unicode composition, so NFC both sides of the comparison.
func normNick(s string) string {
	return norm.NFC.String(s)
}

func (r *roster) bySIDGet(sid types.SID) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySID[sid]
}

func (r *roster) byNickGet(nick string) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byNick[normNick(nick)]
}

func (r *roster) all() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.bySID))
	for _, p := range r.bySID {
		out = append(out, p)
	}
	return out
}

// join registers sid as online for the peer identified by cid,
// creating a new Peer if this CID has never been seen, and applies
// the INF message's fields.
func (r *roster) join(cid string, sid types.SID, msg *adc.Message) *Peer {
	r.mu.Lock()
	p, ok := r.byCID[cid]
	if !ok {
		p = &Peer{}
		r.byCID[cid] = p
	}
	r.bySID[sid] = p
	r.mu.Unlock()
	p.setOnline(sid)
	p.applyInfo(msg)

	nick := normNick(p.Info().Nick())
	r.mu.Lock()
	if p.nickKey != "" && p.nickKey != nick {
		delete(r.byNick, p.nickKey)
	}
	if nick != "" {
		r.byNick[nick] = p
		p.nickKey = nick
	}
	r.mu.Unlock()
	return p
}

func (r *roster) quit(sid types.SID) *Peer {
	r.mu.Lock()
	p, ok := r.bySID[sid]
	delete(r.bySID, sid)
	if ok && p.nickKey != "" {
		delete(r.byNick, p.nickKey)
		p.nickKey = ""
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	p.setOffline()
	return p
}
