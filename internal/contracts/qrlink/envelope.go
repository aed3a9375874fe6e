package qrlink

import "encoding/json"

// EventAck is the reserved envelope event carrying a request acknowledgment.
const EventAck = "ack"

// Envelope is the single wire frame of the event channel, one JSON document
// per websocket text message. Requests carry a fresh ID and get an ack
// envelope back with the same ID; server pushes carry no ID.
type Envelope struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
