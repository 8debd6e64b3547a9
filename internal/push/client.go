// Package push maintains the websocket connection to the real-time
// transport and republishes its events on the in-process bus. It
// assumes nothing about delivery order or delivery count; making
// sense of the stream is the reconciler's job.
package push

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/metrics"
	"github.com/pedrohba/convo/internal/status"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Options configures the push client.
type Options struct {
	URL               string
	Token             string
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	MaxReconnectTries int
}

func (o *Options) defaults() {
	if o.ReconnectBase == 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectMax == 0 {
		o.ReconnectMax = 30 * time.Second
	}
	if o.MaxReconnectTries == 0 {
		o.MaxReconnectTries = 10
	}
}

// Client is the websocket push-transport client.
type Client struct {
	opts    Options
	bus     *bus.Bus
	machine *status.Machine
	metrics *metrics.Set
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewClient creates a push client publishing onto b. m may be nil.
func NewClient(opts Options, b *bus.Bus, machine *status.Machine, m *metrics.Set, logger *zap.Logger) *Client {
	opts.defaults()
	return &Client{
		opts:    opts,
		bus:     b,
		machine: machine,
		metrics: m,
		logger:  logger,
	}
}

// Start connects and runs the read loop with reconnection in a
// background goroutine until Stop or ctx cancellation.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop tears the connection down and waits for the loop to exit.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		established, err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		// The try budget is per outage, not per process lifetime: any
		// successful connection restores the full budget.
		if established {
			attempt = 0
		}

		attempt++
		if attempt > c.opts.MaxReconnectTries {
			c.logger.Error("push transport gave up reconnecting",
				zap.Int("attempts", attempt-1), zap.Error(err))
			_ = c.machine.Transition(status.Error)
			return
		}

		_ = c.machine.Transition(status.Reconnecting)
		if c.metrics != nil {
			c.metrics.Reconnects.Inc()
		}
		delay := c.backoff(attempt)
		c.logger.Warn("push transport disconnected, reconnecting",
			zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		c.bus.Emit(bus.KindPushDisconnected, err.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		_ = c.machine.Transition(status.Connecting)
	}
}

// connectAndRead dials, then reads envelopes until the connection
// breaks. established reports whether the dial succeeded; err is what
// ended the connection.
func (c *Client) connectAndRead(ctx context.Context) (established bool, _ error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	conn, _, err := websocket.Dial(dialCtx, c.opts.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return false, fmt.Errorf("dial push transport: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	c.logger.Info("push transport connected", zap.String("url", c.opts.URL))
	c.bus.Emit(bus.KindPushConnected, nil)
	if c.machine.Current() == status.Connecting {
		_ = c.machine.Transition(status.Backfilling)
	}

	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if errors.Is(err, context.Canceled) {
				return true, err
			}
			return true, fmt.Errorf("read push event: %w", err)
		}

		evt, err := Decode(env)
		if err != nil {
			// Unknown or malformed events are dropped, not fatal.
			c.logger.Warn("dropping push event", zap.String("type", env.Type), zap.Error(err))
			continue
		}
		c.bus.Publish(evt)

		if c.machine.Current() == status.Backfilling {
			_ = c.machine.Transition(status.Live)
		}
	}
}

// backoff returns the delay before reconnect attempt n (1-based):
// exponential from ReconnectBase, capped at ReconnectMax, with up to
// 25% jitter so a fleet of clients does not reconnect in lockstep.
func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.opts.ReconnectBase) * math.Pow(2, float64(attempt-1))
	if max := float64(c.opts.ReconnectMax); d > max {
		d = max
	}
	jitter := 1 + 0.25*(rand.Float64()*2-1)
	return time.Duration(d * jitter)
}
