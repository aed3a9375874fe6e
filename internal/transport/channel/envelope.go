package channel

import (
	"encoding/json"

	"scc-link-go/internal/contracts/qrlink"
)

// Envelope is the wire frame shared with the backend.
type Envelope = qrlink.Envelope

const eventAck = qrlink.EventAck

func newEnvelope(event, id string, payload any) (Envelope, error) {
	env := Envelope{Event: event, ID: id}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}

// ackResult is the common prefix every ack payload must carry.
type ackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
