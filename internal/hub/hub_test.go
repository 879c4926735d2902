package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (c *captureConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.messages = append(c.messages, buf)
	return nil
}

func (c *captureConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *captureConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// blockedConn never completes a write, simulating a stalled client.
type blockedConn struct {
	release chan struct{}
	once    sync.Once
}

func newBlockedConn() *blockedConn {
	return &blockedConn{release: make(chan struct{})}
}

func (c *blockedConn) WriteMessage(messageType int, data []byte) error {
	<-c.release
	return fmt.Errorf("write on closed connection")
}

func (c *blockedConn) Close() error {
	c.once.Do(func() { close(c.release) })
	return nil
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	h := New(zap.NewNop().Sugar())
	defer h.Close()

	first := &captureConn{}
	second := &captureConn{}
	h.Add(first)
	h.Add(second)
	require.Equal(t, 2, h.Count())

	h.Broadcast([]byte(`{"n": 1}`))
	h.Broadcast([]byte(`{"n": 2}`))

	for _, conn := range []*captureConn{first, second} {
		require.Eventually(t, func() bool {
			return len(conn.received()) == 2
		}, 2*time.Second, 5*time.Millisecond)
		got := conn.received()
		assert.Equal(t, []byte(`{"n": 1}`), got[0])
		assert.Equal(t, []byte(`{"n": 2}`), got[1])
	}
}

func TestHubRemoveStopsDelivery(t *testing.T) {
	h := New(zap.NewNop().Sugar())
	defer h.Close()

	conn := &captureConn{}
	client := h.Add(conn)
	h.Remove(client)
	assert.Equal(t, 0, h.Count())

	h.Broadcast([]byte(`ignored`))

	require.Eventually(t, conn.isClosed, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, conn.received())
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	h := New(zap.NewNop().Sugar())
	defer h.Close()

	client := h.Add(&captureConn{})
	h.Remove(client)
	h.Remove(client)
	assert.Equal(t, 0, h.Count())
}

func TestHubDropsStalledClient(t *testing.T) {
	h := New(zap.NewNop().Sugar())
	defer h.Close()

	stalled := newBlockedConn()
	defer stalled.Close()
	healthy := &captureConn{}
	h.Add(stalled)
	h.Add(healthy)

	// One message sits in the blocked write, sendBuffer more fill the queue,
	// and the next broadcast finds the stalled client's buffer full.
	for i := 0; i < sendBuffer+2; i++ {
		h.Broadcast([]byte(`{"seq": 1}`))
	}

	require.Eventually(t, func() bool {
		return h.Count() == 1
	}, 2*time.Second, 5*time.Millisecond, "stalled client never dropped")

	require.Eventually(t, func() bool {
		return len(healthy.received()) == sendBuffer+2
	}, 2*time.Second, 5*time.Millisecond, "healthy client lost messages")
}

func TestHubCloseDropsEveryClient(t *testing.T) {
	h := New(zap.NewNop().Sugar())

	first := &captureConn{}
	second := &captureConn{}
	h.Add(first)
	h.Add(second)

	h.Close()
	assert.Equal(t, 0, h.Count())

	require.Eventually(t, func() bool {
		return first.isClosed() && second.isClosed()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClientIDsAreUnique(t *testing.T) {
	h := New(zap.NewNop().Sugar())
	defer h.Close()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		client := h.Add(&captureConn{})
		require.False(t, seen[client.ID], "duplicate client id %s", client.ID)
		seen[client.ID] = true
	}
}
