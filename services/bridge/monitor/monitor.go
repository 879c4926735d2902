// Package monitor maintains the bridge's in-memory view of the sensor feed:
// the latest reading, the bounded history, and broker connectivity. It feeds
// every accepted reading to the websocket hub.
package monitor

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/hub"
	"github.com/chongyong/aquaview/internal/reading"
	"github.com/chongyong/aquaview/internal/wire"
)

// Monitor is safe for concurrent use by the MQTT callback and HTTP handlers.
type Monitor struct {
	log   *zap.SugaredLogger
	hub   *hub.Hub
	limit int

	mu              sync.RWMutex
	latest          *reading.Reading
	series          []reading.Reading
	brokerConnected bool
}

// New constructs a monitor with an empty history.
func New(log *zap.SugaredLogger, h *hub.Hub, limit int) *Monitor {
	if limit <= 0 {
		limit = reading.DefaultHistoryLimit
	}
	return &Monitor{log: log, hub: h, limit: limit}
}

// HandleMessage normalizes one inbound MQTT payload, folds it into state and
// broadcasts the canonical form. Malformed payloads are dropped; the update
// is atomic, so a payload either fully contributes or contributes nothing.
func (m *Monitor) HandleMessage(topic string, payload []byte) {
	r, err := reading.NormalizeJSON(payload)
	if err != nil {
		m.log.Warnw("dropping malformed payload", "topic", topic, "error", err)
		return
	}

	m.mu.Lock()
	m.series = reading.Merge(m.series, []reading.Reading{r}, m.limit)
	if m.latest == nil || !r.Timestamp.Before(m.latest.Timestamp) {
		m.latest = &r
	}
	m.mu.Unlock()

	message, err := json.Marshal(r)
	if err != nil {
		m.log.Errorw("could not marshal reading", "error", err)
		return
	}
	m.hub.Broadcast(message)
}

// SetBrokerConnected records upstream connectivity and tells every client.
func (m *Monitor) SetBrokerConnected(connected bool) {
	m.mu.Lock()
	m.brokerConnected = connected
	m.mu.Unlock()

	message, err := json.Marshal(wire.Status(connected))
	if err != nil {
		return
	}
	m.hub.Broadcast(message)
}

// BrokerConnected reports upstream connectivity.
func (m *Monitor) BrokerConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.brokerConnected
}

// History returns a copy of the buffered series, oldest first.
func (m *Monitor) History() []reading.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]reading.Reading, len(m.series))
	copy(out, m.series)
	return out
}

// Latest returns the most recent reading, or nil before the first one.
func (m *Monitor) Latest() *reading.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil
	}
	latest := *m.latest
	return &latest
}

// Limit returns the history cap.
func (m *Monitor) Limit() int {
	return m.limit
}

// Greet sends a newly connected client the current status, the buffered
// history and the latest reading, in that order, so it can render
// immediately.
func (m *Monitor) Greet(client *hub.Client) {
	m.mu.RLock()
	connected := m.brokerConnected
	series := make([]reading.Reading, len(m.series))
	copy(series, m.series)
	latest := m.latest
	m.mu.RUnlock()

	if message, err := json.Marshal(wire.Status(connected)); err == nil {
		client.Send(message)
	}

	if len(series) > 0 {
		entries := make([]json.RawMessage, 0, len(series))
		for _, r := range series {
			entry, err := json.Marshal(r)
			if err != nil {
				continue
			}
			entries = append(entries, entry)
		}
		if message, err := json.Marshal(wire.Envelope{Type: wire.TypeHistory, Data: entries}); err == nil {
			client.Send(message)
		}
	}

	if latest != nil {
		if message, err := json.Marshal(*latest); err == nil {
			client.Send(message)
		}
	}
}
