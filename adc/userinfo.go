package adc

import "github.com/udoprog/go-adc/adc/types"

// Info is a user or hub's INF record: the well-known two-letter fields
// ADC 1.0 defines, plus raw storage for any field this library does
// not model explicitly. Values are kept as their already-unescaped
// wire strings; typed accessors decode on demand rather than eagerly,
// since most fields on a roster entry are never read by name.
type Info struct {
	fields map[string]string
	dirty  map[string]struct{}
}

// NewInfo returns an empty Info record.
func NewInfo() *Info {
	return &Info{fields: make(map[string]string)}
}

// Set stores the raw value of key, marking it dirty since the last
// Clean call.
func (u *Info) Set(key, value string) {
	if u.fields == nil {
		u.fields = make(map[string]string)
	}
	u.fields[key] = value
	if u.dirty == nil {
		u.dirty = make(map[string]struct{})
	}
	u.dirty[key] = struct{}{}
}

// Get returns the raw value of key.
func (u *Info) Get(key string) (string, bool) {
	v, ok := u.fields[key]
	return v, ok
}

// ID returns the CID field, decoded as a Base32 blob of tiger-digest size.
func (u *Info) ID(size int) (types.Base32Value, bool, error) {
	v, ok := u.fields["ID"]
	if !ok {
		return types.Base32Value{}, false, nil
	}
	b, err := types.ParseBase32(v, size)
	if err != nil {
		return types.Base32Value{}, true, &InvalidParameterError{Key: "ID", Reason: err.Error()}
	}
	return b, true, nil
}

// Nick returns the NI (nickname) field.
func (u *Info) Nick() string { return u.fields["NI"] }

// Dirty returns the set of field keys changed since the last Clean
// call, used to decide which fields a follow-up INF broadcast must
// repeat.
func (u *Info) Dirty() map[string]struct{} {
	out := make(map[string]struct{}, len(u.dirty))
	for k := range u.dirty {
		out[k] = struct{}{}
	}
	return out
}

// Clean clears the dirty set without touching stored field values.
func (u *Info) Clean() {
	u.dirty = nil
}

// ApplyMessage merges an INF message's named tokens into the record,
// overwriting any existing value for each key present in msg.
func (u *Info) ApplyMessage(msg *Message) {
	for _, t := range msg.Tokens {
		if t.Named {
			u.Set(t.Key, t.Value)
		}
	}
}

// ToMessage builds an outbound INF message carrying every field
// currently set on the record, via the given header (which selects
// broadcast vs. hub-directed framing).
func (u *Info) ToMessage(h Header) *Message {
	m := &Message{Header: h}
	for k, v := range u.fields {
		m.AddNamed(k, v)
	}
	return m
}

// DirtyMessage builds an outbound INF message carrying only the
// fields marked dirty since the last Clean, for an incremental update.
func (u *Info) DirtyMessage(h Header) *Message {
	m := &Message{Header: h}
	for k := range u.dirty {
		m.AddNamed(k, u.fields[k])
	}
	return m
}
