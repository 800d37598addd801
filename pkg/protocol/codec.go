package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps every frame on the wire so a single decoder can route by
// event name. Data holds the event payload untouched until the handler
// binds it to a concrete type.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps a payload into an Envelope and marshals it to a JSON frame.
func Encode(evt EventType, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", evt, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: evt, Data: raw})
}

// Decode unmarshals a raw frame into an Envelope.
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// Bind unmarshals the envelope payload into v.
func (e *Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}
