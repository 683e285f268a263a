package adc

import (
	"fmt"
	"net"
	"strconv"
)

// HubAddr is a normalized adc:// or adcs:// hub address.
type HubAddr struct {
	Secure   bool
	Host     string
	Port     int
	User     string
	Keyprint string
}

// String renders the address back to its adc(s):// form.
func (a HubAddr) String() string {
	scheme := "adc"
	if a.Secure {
		scheme = "adcs"
	}
	auth := ""
	if a.User != "" {
		auth = a.User + "@"
	}
	u := fmt.Sprintf("%s://%s%s", scheme, auth, net.JoinHostPort(a.Host, strconv.Itoa(a.Port)))
	if a.Keyprint != "" {
		u += "?kp=" + a.Keyprint
	}
	return u
}

// ParseHubAddr parses and normalizes an adc(s):// hub URL, defaulting
// the port from the scheme when omitted.
func ParseHubAddr(addr string) (HubAddr, error) {
	u, err := ParseURL(addr)
	if err != nil {
		return HubAddr{}, err
	}
	secure := u.Scheme == "adcs"
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		host = u.Host
		portStr = ""
	}
	port := DefaultPort
	if secure {
		port = DefaultPortTLS
	}
	if portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return HubAddr{}, fmt.Errorf("adc: invalid port in %q: %w", addr, err)
		}
	}
	return HubAddr{
		Secure:   secure,
		Host:     host,
		Port:     port,
		User:     u.User.Username(),
		Keyprint: u.Query().Get("kp"),
	}, nil
}
