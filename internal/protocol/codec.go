package protocol

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Marshal creates a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType MessageType, sessionID string, payload interface{}) ([]byte, error) {
	env := Envelope{
		Type:      msgType,
		SessionID: sessionID,
		TsMs:      time.Now().UnixMilli(),
	}
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal payload for %q: %w", msgType, err)
		}
		env.Payload = b
	}
	return sonic.Marshal(env)
}

// Unmarshal parses a JSON-encoded Envelope.
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("protocol: envelope missing type field")
	}
	return env, nil
}

// UnmarshalPayload decodes a raw JSON payload into a typed struct.
func UnmarshalPayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, nil
	}
	if err := sonic.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("protocol: unmarshal %q payload: %w", env.Type, err)
	}
	return v, nil
}
