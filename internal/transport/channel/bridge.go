package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scc-link-go/internal/platform/errors"
)

// Call wraps the channel's fire-and-forget emit/ack pattern in a blocking
// request with a deterministic timeout. Exactly one of ack delivery or
// timeout settles the call; an ack arriving after the timeout fired finds no
// pending entry and is dropped by the dispatcher.
func (m *Manager) Call(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	const op = "call"

	if err := m.Connect(ctx); err != nil {
		return nil, err
	}

	env, err := newEnvelope(event, uuid.NewString(), payload)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, op, "encode "+event+" payload", err)
	}

	ch := make(chan Envelope, 1)
	m.mu.Lock()
	m.pending[env.ID] = ch
	c := m.conn
	m.mu.Unlock()

	if c == nil || c.IsClosed() {
		m.removePending(env.ID)
		return nil, errors.New(errors.KindTransport, op, "channel not connected")
	}
	if err := c.WriteEnvelope(env); err != nil {
		m.removePending(env.ID)
		return nil, errors.Wrap(errors.KindTransport, op, "emit "+event, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		var res ackResult
		if len(ack.Payload) > 0 {
			if err := json.Unmarshal(ack.Payload, &res); err != nil {
				return nil, errors.Wrap(errors.KindTransport, op, "decode "+event+" ack", err)
			}
		}
		if !res.Success {
			msg := res.Message
			if msg == "" {
				msg = fmt.Sprintf("request %s rejected by server", event)
			}
			return nil, errors.New(errors.KindRejected, op, msg)
		}
		return ack.Payload, nil

	case <-timer.C:
		m.removePending(env.ID)
		return nil, errors.New(errors.KindTimeout, op,
			fmt.Sprintf("no response to %s within %s", event, timeout))

	case <-ctx.Done():
		m.removePending(env.ID)
		return nil, errors.Wrap(errors.KindTransport, op, event+" aborted", ctx.Err())
	}
}

func (m *Manager) removePending(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}
