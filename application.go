package dc

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/udoprog/go-adc/adc/client"
)

// HubDescriptor names one hub an Application should maintain a
// connection to.
type HubDescriptor struct {
	Addr      string
	Name      string
	Password  func() (string, bool)
	Reconnect bool
}

// Metrics are the Application's prometheus collectors, suitable for
// exposing through a /metrics endpoint.
type Metrics struct {
	ConnectionsMade    prometheus.Counter
	ConnectionsLost    prometheus.Counter
	MessagesDispatched prometheus.Counter
}

// NewMetrics builds and registers a Metrics block under a namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adc", Name: "connections_made_total",
			Help: "Total number of successful hub connections.",
		}),
		ConnectionsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adc", Name: "connections_lost_total",
			Help: "Total number of hub connections that were lost or closed.",
		}),
		MessagesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adc", Name: "messages_dispatched_total",
			Help: "Total number of messages dispatched to event handlers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectionsMade, m.ConnectionsLost, m.MessagesDispatched)
	}
	return m
}

// ReconnectInterval is the fixed delay between reconnect attempts.
const ReconnectInterval = 10 * time.Second

// BroadcastRateLimit is the rate (burst 1) of the per-hub limiter that
// Limiter returns. The Application hands that limiter out but does not
// apply it itself: sends made through client.Conn are not throttled.
const BroadcastRateLimit = rate.Limit(2) // messages/sec

// Application supervises a set of hub connections, each with its own
// reconnect policy; a connection failure never brings down the
// others, matching the per-hub isolation requirement.
type Application struct {
	Events  client.Events
	Metrics *Metrics

	mu   sync.Mutex
	hubs map[string]*hubSession

	group *errgroup.Group
	ctx   context.Context
}

type hubSession struct {
	desc    HubDescriptor
	cancel  context.CancelFunc
	limiter *rate.Limiter
	conn    *client.Conn
}

// NewApplication creates an Application bound to ctx; cancel ctx to
// shut down every hub connection.
func NewApplication(ctx context.Context, metrics *Metrics) *Application {
	group, gctx := errgroup.WithContext(ctx)
	return &Application{
		Metrics: metrics,
		hubs:    make(map[string]*hubSession),
		group:   group,
		ctx:     gctx,
	}
}

// AddHub registers a hub and starts (or restarts) its connection
// loop. Calling AddHub again for an address already tracked replaces
// its descriptor and restarts the loop.
func (a *Application) AddHub(desc HubDescriptor) {
	a.mu.Lock()
	if old, ok := a.hubs[desc.Addr]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	sess := &hubSession{
		desc:    desc,
		cancel:  cancel,
		limiter: rate.NewLimiter(BroadcastRateLimit, 1),
	}
	a.hubs[desc.Addr] = sess
	a.mu.Unlock()

	a.group.Go(func() error {
		a.runHub(ctx, sess)
		return nil
	})
}

// RemoveHub stops and forgets a tracked hub connection.
func (a *Application) RemoveHub(addr string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sess, ok := a.hubs[addr]; ok {
		sess.cancel()
		delete(a.hubs, addr)
	}
}

// Limiter returns the per-connection outbound rate limiter for addr,
// or nil if addr is not currently tracked.
func (a *Application) Limiter(addr string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sess, ok := a.hubs[addr]; ok {
		return sess.limiter
	}
	return nil
}

// Conn returns the live connection for addr, or nil if not connected.
func (a *Application) Conn(addr string) *client.Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sess, ok := a.hubs[addr]; ok {
		return sess.conn
	}
	return nil
}

// Wait blocks until every hub loop has returned (normally only after
// the Application's context is canceled).
func (a *Application) Wait() error {
	return a.group.Wait()
}

func (a *Application) runHub(ctx context.Context, sess *hubSession) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events := a.Events
		lost := make(chan struct{})
		events.ConnectionLost = func(c *client.Conn, err error) {
			if err != nil {
				log.Printf("adc: hub %s: connection lost: %v", sess.desc.Addr, err)
			}
			if a.Metrics != nil {
				a.Metrics.ConnectionsLost.Inc()
			}
			if a.Events.ConnectionLost != nil {
				a.Events.ConnectionLost(c, err)
			}
			close(lost)
		}

		conf := &client.Config{
			PID:      client.GeneratePID(),
			Name:     sess.desc.Name,
			Password: sess.desc.Password,
			Events:   &events,
		}

		c, err := client.DialHubContext(ctx, sess.desc.Addr, conf, nil)
		if err != nil {
			log.Printf("adc: hub %s: dial failed: %v", sess.desc.Addr, err)
		} else {
			if a.Metrics != nil {
				a.Metrics.ConnectionsMade.Inc()
			}
			a.mu.Lock()
			sess.conn = c
			a.mu.Unlock()

			select {
			case <-ctx.Done():
				_ = c.Close()
			case <-lost:
			}
			a.mu.Lock()
			sess.conn = nil
			a.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
		}

		if !sess.desc.Reconnect {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(ReconnectInterval):
		}
	}
}
