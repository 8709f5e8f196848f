// Package pushchan maintains the single push-channel connection to the
// backend: connect, receive, dispatch-by-type, detect close, and reconnect
// with exponential backoff up to an attempt ceiling.
package pushchan

import (
	"encoding/json"
	"fmt"
)

// Message types the manager handles natively. Any other type is dispatched to
// registered handlers only; unknown types are not an error.
const (
	TypeStatus = "status"
	TypeJob    = "job"
	TypeAlert  = "alert"
)

// Envelope is the canonical shape every inbound push message is normalized
// into before any consumer sees it.
type Envelope struct {
	Type    string
	Payload json.RawMessage
}

// wireMessage mirrors the JSON frames on the wire. Older backends put the
// payload under "data" instead of "payload"; both are accepted inbound.
type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope normalizes a raw push frame. The "payload" field wins when
// both payload fields are present.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode push message: %w", err)
	}
	if w.Type == "" {
		return Envelope{}, fmt.Errorf("push message has no type")
	}
	payload := w.Payload
	if len(payload) == 0 {
		payload = w.Data
	}
	return Envelope{Type: w.Type, Payload: payload}, nil
}

// EncodeMessage builds the outbound frame for a typed payload.
func EncodeMessage(msgType string, payload any) ([]byte, error) {
	var body json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q payload: %w", msgType, err)
		}
		body = raw
	}
	raw, err := json.Marshal(wireMessage{Type: msgType, Payload: body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q message: %w", msgType, err)
	}
	return raw, nil
}
