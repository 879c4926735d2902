package mqttclient

import (
	"context"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startBroker(t *testing.T, addr string) {
	t.Helper()

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))

	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: addr,
	})
	require.NoError(t, server.AddListener(tcp))

	go func() { _ = server.Serve() }()
	t.Cleanup(func() { _ = server.Close() })
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	const addr = "127.0.0.1:18831"
	startBroker(t, addr)

	log := zap.NewNop().Sugar()
	received := make(chan []byte, 1)

	subscriber := New(log, Options{
		Server:     addr,
		ClientID:   "test-subscriber",
		Topics:     []string{"group1/water_quality"},
		RetryDelay: 100 * time.Millisecond,
		OnMessage: func(topic string, payload []byte) {
			assert.Equal(t, "group1/water_quality", topic)
			select {
			case received <- payload:
			default:
			}
		},
	})
	subscriber.Start()
	t.Cleanup(subscriber.Close)

	publisher := New(log, Options{
		Server:     addr,
		ClientID:   "test-publisher",
		RetryDelay: 100 * time.Millisecond,
	})
	publisher.Start()
	t.Cleanup(publisher.Close)

	require.Eventually(t, subscriber.Connected, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, publisher.Connected, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload := []byte(`{"timestamp": "2025-01-01T00:00:00Z", "turbidity": 1.5}`)
	require.NoError(t, publisher.Publish(ctx, "group1/water_quality", payload))

	select {
	case got := <-received:
		assert.JSONEq(t, string(payload), string(got))
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never received the message")
	}
}

func TestPublishBeforeConnectReturnsNotConnected(t *testing.T) {
	client := New(zap.NewNop().Sugar(), Options{
		Server:   "127.0.0.1:18832",
		ClientID: "test-offline",
	})

	err := client.Publish(context.Background(), "any/topic", []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseBeforeStartReturns(t *testing.T) {
	client := New(zap.NewNop().Sugar(), Options{
		Server:   "127.0.0.1:18834",
		ClientID: "test-never-started",
	})

	done := make(chan struct{})
	go func() {
		client.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a client that was never started")
	}
}

func TestClientConnectsOnceBrokerAppears(t *testing.T) {
	const addr = "127.0.0.1:18833"

	log := zap.NewNop().Sugar()
	connects := make(chan struct{}, 1)

	client := New(log, Options{
		Server:     addr,
		ClientID:   "test-late-broker",
		RetryDelay: 100 * time.Millisecond,
		OnConnect: func() {
			select {
			case connects <- struct{}{}:
			default:
			}
		},
	})
	client.Start()
	t.Cleanup(client.Close)

	// The first attempts fail; the fixed-delay retry picks the broker up
	// once it starts listening.
	time.Sleep(250 * time.Millisecond)
	assert.False(t, client.Connected())

	startBroker(t, addr)

	select {
	case <-connects:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected after the broker came up")
	}
	require.Eventually(t, client.Connected, 2*time.Second, 10*time.Millisecond)
}
