// Package feed owns the live connection to the bridge: connect, receive,
// reconnect on drop, one-shot history fetch per connection, and a snapshot
// of the latest reading plus the bounded series for the presentation layer.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/reading"
	"github.com/chongyong/aquaview/internal/wire"
)

// State is the controller's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// DefaultRetryDelay is the fixed delay between reconnect attempts. Retries
// are unconditional; the loop is bounded only by Close.
const DefaultRetryDelay = 5 * time.Second

// Conn is one live stream connection.
type Conn interface {
	// ReadMessage blocks until the next text message or a connection error.
	ReadMessage() ([]byte, error)
	Close() error
}

// Transport dials the live stream.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// HistorySource fetches the historical batch once per connection.
type HistorySource interface {
	FetchHistory(ctx context.Context) ([]json.RawMessage, error)
}

// Snapshot is the controller state exposed to the presentation layer.
type Snapshot struct {
	State           State             `json:"state"`
	BrokerConnected bool              `json:"broker_connected"`
	Latest          *reading.Reading  `json:"latest,omitempty"`
	Series          []reading.Reading `json:"series"`
}

// Options tunes a controller. Zero fields fall back to defaults.
type Options struct {
	RetryDelay   time.Duration
	HistoryLimit int
	Clock        Clock
}

// Controller runs the live feed state machine. All shared state is mutated
// only by the controller's own loop; readers take a snapshot under the lock.
type Controller struct {
	transport Transport
	history   HistorySource
	clock     Clock
	log       *zap.SugaredLogger

	retryDelay time.Duration
	limit      int

	mu              sync.RWMutex
	state           State
	brokerConnected bool
	latest          *reading.Reading
	series          []reading.Reading
	conn            Conn

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	once    sync.Once
}

// New constructs a controller. Start must be called to begin connecting.
func New(transport Transport, history HistorySource, log *zap.SugaredLogger, opts Options) *Controller {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = reading.DefaultHistoryLimit
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		transport:  transport,
		history:    history,
		clock:      opts.Clock,
		log:        log,
		retryDelay: opts.RetryDelay,
		limit:      opts.HistoryLimit,
		state:      StateDisconnected,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start launches the connect/receive/reconnect loop. Only the first call
// starts the loop.
func (c *Controller) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

// Close tears the controller down: the pending reconnect timer is cancelled
// and the live connection is actively closed. It blocks until the loop has
// exited, and returns immediately when the controller was never started.
func (c *Controller) Close() {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
	if c.started.Load() {
		<-c.done
	}
}

// Snapshot returns a copy of the exposed state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		State:           c.state,
		BrokerConnected: c.brokerConnected,
		Series:          make([]reading.Reading, len(c.series)),
	}
	copy(snap.Series, c.series)
	if c.latest != nil {
		latest := *c.latest
		snap.Latest = &latest
	}
	return snap
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		if c.ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateConnecting)
		conn, err := c.transport.Dial(c.ctx)
		if err != nil {
			c.log.Warnw("live feed connect failed", "error", err)
			c.setState(StateDisconnected)
			if !c.waitRetry() {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)
		c.log.Infow("live feed connected")

		// Exactly one history fetch per connection epoch. A failed fetch is
		// retried naturally on the next epoch.
		if c.history != nil {
			go c.fetchHistory()
		}

		c.receive(conn)

		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)

		if c.ctx.Err() != nil {
			return
		}
		c.log.Warnw("live feed dropped; retrying", "delay", c.retryDelay)
		if !c.waitRetry() {
			return
		}
	}
}

// waitRetry sleeps for the fixed retry delay. It reports false when the
// controller was closed while waiting.
func (c *Controller) waitRetry() bool {
	select {
	case <-c.clock.After(c.retryDelay):
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Controller) receive(conn Conn) {
	for {
		message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage routes one inbound message: status envelopes flip the broker
// flag, history envelopes merge a batch, anything else is normalized as a
// single reading. Malformed payloads are dropped without touching state.
func (c *Controller) handleMessage(message []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(message, &env); err == nil {
		switch env.Type {
		case wire.TypeStatus:
			if env.MQTTConnected != nil {
				c.mu.Lock()
				c.brokerConnected = *env.MQTTConnected
				c.mu.Unlock()
			}
			return
		case wire.TypeHistory:
			c.applyBatch(env.Data)
			return
		}
	}

	r, err := reading.NormalizeJSON(message)
	if err != nil {
		c.log.Debugw("dropping malformed payload", "error", err)
		return
	}
	c.apply([]reading.Reading{r})
}

func (c *Controller) fetchHistory() {
	entries, err := c.history.FetchHistory(c.ctx)
	if err != nil {
		c.log.Warnw("history fetch failed", "error", err)
		return
	}
	c.applyBatch(entries)
	c.log.Infow("history loaded", "entries", len(entries))
}

func (c *Controller) applyBatch(entries []json.RawMessage) {
	batch := make([]reading.Reading, 0, len(entries))
	for _, entry := range entries {
		r, err := reading.NormalizeJSON(entry)
		if err != nil {
			c.log.Debugw("dropping malformed history entry", "error", err)
			continue
		}
		batch = append(batch, r)
	}
	if len(batch) > 0 {
		c.apply(batch)
	}
}

// apply folds normalized readings into the series and advances the latest
// reading monotonically: out-of-order delivery never regresses the display.
func (c *Controller) apply(batch []reading.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.series = reading.Merge(c.series, batch, c.limit)
	for i := range batch {
		r := batch[i]
		if c.latest == nil || !r.Timestamp.Before(c.latest.Timestamp) {
			c.latest = &r
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
