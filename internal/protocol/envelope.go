// Package protocol describes the messages exchanged with the Bull game
// server. Every frame is a JSON text message:
//
//	{"event": "join_lobby", "data": {"code": "ABC123", "playerName": "Ana"}}
//
// Outbound frames carry an Intent, inbound frames decode into an Event.
package protocol

import (
	"encoding/json"
	"fmt"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope. A nil payload is sent as {}.
func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload == nil {
		data = json.RawMessage(`{}`)
	} else {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: event", ErrMissingField)
	}
	return env, nil
}
