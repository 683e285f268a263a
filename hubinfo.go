// Package dc is the top-level supervisor for one or more ADC hub
// connections: reconnect policy, metrics, and hub-info probing.
package dc

// Software identifies a client or hub implementation and version.
type Software struct {
	Name    string   `json:"name" xml:"Name,attr"`
	Version string   `json:"vers,omitempty" xml:"Version,attr,omitempty"`
	Ext     []string `json:"ext,omitempty" xml:"Ext,attr,omitempty"`
}

// HubUser is one roster entry as surfaced by a hub probe.
type HubUser struct {
	Name   string    `json:"name" xml:"Name,attr"`
	Client *Software `json:"soft,omitempty" xml:"Software,omitempty"`
	Ip4    string    `json:"ip4,omitempty" xml:"IP4,attr,omitempty"`
	Share  uint64    `json:"share,omitempty" xml:"Shared,attr,omitempty"`
	Desc   string    `json:"desc,omitempty" xml:"Description,attr,omitempty"`
	Email  string    `json:"email,omitempty" xml:"Email,attr,omitempty"`
}

// HubInfo is the result of probing a hub: its own INF record plus a
// roster snapshot, in the same JSON/XML-tagged shape a monitoring tool
// would want to serialize.
type HubInfo struct {
	Name     string    `json:"name" xml:"Name,attr"`
	Desc     string    `json:"desc,omitempty" xml:"Description,attr,omitempty"`
	Addr     []string  `json:"addr,omitempty" xml:"Address,attr,omitempty"`
	Enc      string    `json:"encoding,omitempty" xml:"Encoding,attr,omitempty"`
	Server   *Software `json:"soft,omitempty" xml:"Software,omitempty"`
	Users    int       `json:"users" xml:"Users,attr"`
	Share    uint64    `json:"share,omitempty" xml:"Shared,attr,omitempty"`
	UserList []HubUser `json:"userlist,omitempty" xml:"User,attr,omitempty"`
}
