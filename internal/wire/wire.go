// Package wire defines the envelope shapes exchanged between the bridge and
// its websocket clients. Plain readings travel as bare objects; everything
// else is wrapped in a typed envelope.
package wire

import "encoding/json"

const (
	// TypeHistory wraps a batch of readings delivered over the live stream.
	TypeHistory = "history"
	// TypeStatus reports upstream broker connectivity.
	TypeStatus = "status"
)

// Envelope is a typed message on the live stream. Type is empty for bare
// reading objects.
type Envelope struct {
	Type          string            `json:"type,omitempty"`
	Data          []json.RawMessage `json:"data,omitempty"`
	MQTTConnected *bool             `json:"mqtt_connected,omitempty"`
}

// HistoryResponse is the one-shot history fetch payload, matching the
// history envelope entry shape.
type HistoryResponse struct {
	Data  []json.RawMessage `json:"data"`
	Count int               `json:"count"`
	Limit int               `json:"limit"`
}

// Status builds a status envelope.
func Status(connected bool) Envelope {
	return Envelope{Type: TypeStatus, MQTTConnected: &connected}
}
