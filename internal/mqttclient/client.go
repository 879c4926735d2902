// Package mqttclient wraps paho.golang with the session maintenance this
// system needs: connect, subscribe, and an unconditional fixed-delay
// reconnect loop bounded only by Close.
package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

// DefaultRetryDelay is the fixed delay between reconnect attempts.
const DefaultRetryDelay = 5 * time.Second

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// MessageHandler receives one inbound PUBLISH.
type MessageHandler func(topic string, payload []byte)

// Options configures a Client.
type Options struct {
	// Server is the broker address as host:port.
	Server string
	// ClientID identifies this client to the broker.
	ClientID string
	// Topics to subscribe to at QoS 1 on every (re)connect.
	Topics []string
	// KeepAlive in seconds; defaults to 60.
	KeepAlive uint16
	// RetryDelay between reconnect attempts; defaults to DefaultRetryDelay.
	RetryDelay time.Duration

	// OnMessage is invoked for every inbound message on subscribed topics.
	OnMessage MessageHandler
	// OnConnect is invoked after a successful connect and subscribe.
	OnConnect func()
	// OnDisconnect is invoked when an established connection drops.
	OnDisconnect func(err error)
}

// Client maintains one MQTT connection.
type Client struct {
	opts Options
	log  *zap.SugaredLogger

	connected atomic.Bool

	mu   sync.Mutex
	paho *paho.Client

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	once    sync.Once
}

// New constructs a client. Start must be called to begin connecting.
func New(log *zap.SugaredLogger, opts Options) *Client {
	if opts.KeepAlive == 0 {
		opts.KeepAlive = 60
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:   opts,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the connection maintenance loop. Only the first call starts
// the loop.
func (c *Client) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.maintain()
}

// Close shuts the client down and blocks until the loop exits. It returns
// immediately when the client was never started.
func (c *Client) Close() {
	c.once.Do(c.cancel)

	c.mu.Lock()
	client := c.paho
	c.mu.Unlock()
	if client != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}
	if c.started.Load() {
		<-c.done
	}
}

// Connected reports whether the broker connection is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Publish sends one message at QoS 1.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	client := c.paho
	c.mu.Unlock()

	if client == nil || !c.connected.Load() {
		return ErrNotConnected
	}
	_, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) maintain() {
	defer close(c.done)

	for {
		if c.ctx.Err() != nil {
			return
		}

		dropped, err := c.connect()
		if err != nil {
			c.log.Warnw("mqtt connect failed", "server", c.opts.Server, "error", err)
		} else {
			c.log.Infow("mqtt connected", "server", c.opts.Server, "client_id", c.opts.ClientID)
			if c.opts.OnConnect != nil {
				c.opts.OnConnect()
			}

			select {
			case err := <-dropped:
				c.connected.Store(false)
				c.log.Warnw("mqtt connection dropped", "error", err)
				if c.opts.OnDisconnect != nil {
					c.opts.OnDisconnect(err)
				}
			case <-c.ctx.Done():
				c.connected.Store(false)
				return
			}
		}

		select {
		case <-time.After(c.opts.RetryDelay):
		case <-c.ctx.Done():
			return
		}
	}
}

// connect establishes one connection epoch. The returned channel yields the
// error that ends the epoch.
func (c *Client) connect() (<-chan error, error) {
	var d net.Dialer
	conn, err := d.DialContext(c.ctx, "tcp", c.opts.Server)
	if err != nil {
		return nil, err
	}

	dropped := make(chan error, 1)
	drop := func(err error) {
		select {
		case dropped <- err:
		default:
		}
	}

	config := paho.ClientConfig{
		ClientID: c.opts.ClientID,
		Conn:     conn,
		OnClientError: func(err error) {
			drop(err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			drop(fmt.Errorf("server disconnect, reason code %d", d.ReasonCode))
		},
	}
	if c.opts.OnMessage != nil {
		config.OnPublishReceived = []func(paho.PublishReceived) (bool, error){
			func(pub paho.PublishReceived) (bool, error) {
				c.opts.OnMessage(pub.Packet.Topic, pub.Packet.Payload)
				return true, nil
			},
		}
	}

	client := paho.NewClient(config)

	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	_, err = client.Connect(ctx, &paho.Connect{
		ClientID:   c.opts.ClientID,
		KeepAlive:  c.opts.KeepAlive,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	if len(c.opts.Topics) > 0 {
		subs := make([]paho.SubscribeOptions, 0, len(c.opts.Topics))
		for _, topic := range c.opts.Topics {
			subs = append(subs, paho.SubscribeOptions{Topic: topic, QoS: 1})
		}
		if _, err := client.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
			_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}

	c.mu.Lock()
	c.paho = client
	c.mu.Unlock()
	c.connected.Store(true)

	return dropped, nil
}
