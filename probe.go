package dc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/udoprog/go-adc/adc/client"
	"github.com/udoprog/go-adc/adc/types"
)

// ProbeConfig controls the identity a probe presents while connecting.
type ProbeConfig struct {
	Name string
}

// Probe connects to addr, performs the handshake, captures the hub's
// own INF record and roster, then disconnects.
func Probe(ctx context.Context, addr string, conf *ProbeConfig) (*HubInfo, error) {
	if conf == nil {
		conf = &ProbeConfig{}
	}
	if conf.Name == "" {
		conf.Name = "probe_" + strconv.FormatInt(time.Now().UnixNano(), 16)
	}

	c, err := client.DialHubContext(ctx, addr, &client.Config{
		PID:  client.GeneratePID(),
		Name: conf.Name,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("adc: probe failed: %w", err)
	}
	defer c.Close()

	hub := c.Hub()
	info := &HubInfo{
		Addr:  []string{addr},
		Users: len(c.Peers()),
	}
	if hub.Info != nil {
		info.Name = hub.Info.Nick()
		if v, ok := hub.Info.Get("DE"); ok {
			info.Desc = v
		}
		if v, ok := hub.Info.Get("VE"); ok {
			info.Server = &Software{Name: "ADC hub", Version: v}
		}
	}
	for _, p := range c.Peers() {
		pi := p.Info()
		if pi == nil {
			continue
		}
		u := HubUser{Name: pi.Nick()}
		if v, ok := pi.Get("DE"); ok {
			u.Desc = v
		}
		if v, ok := pi.Get("EM"); ok {
			u.Email = v
		}
		if v, ok := pi.Get("SS"); ok {
			if n, err := parseUint(v); err == nil {
				u.Share = n
				info.Share += n
			}
		}
		info.UserList = append(info.UserList, u)
	}
	return info, nil
}

func parseUint(s string) (uint64, error) {
	n, err := types.DecodeInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("adc: negative share size %q", s)
	}
	return uint64(n), nil
}
