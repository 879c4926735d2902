package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chongyong/aquaview/internal/wire"
)

// WebsocketTransport dials the bridge's websocket endpoint.
type WebsocketTransport struct {
	URL    string
	Dialer *websocket.Dialer
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, message, err := c.conn.ReadMessage()
	return message, err
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}

// Dial opens the live stream connection.
func (t *WebsocketTransport) Dial(ctx context.Context) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.URL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &websocketConn{conn: conn}, nil
}

// HTTPHistorySource fetches the bridge's one-shot history batch.
type HTTPHistorySource struct {
	URL    string
	Client *http.Client
}

// FetchHistory retrieves the buffered history entries.
func (s *HTTPHistorySource) FetchHistory(ctx context.Context) ([]json.RawMessage, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload wire.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return payload.Data, nil
}
