package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/simbridge/internal/msgs"
)

// Envelope is a serialised message as it leaves the publisher. Payload is the
// message's JSON encoding, taken at publish time.
type Envelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	StampNs int64           `json:"stamp_ns"` // 0 for messages without a header
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope serialises msg for topic.
func NewEnvelope(topic string, msg msgs.Message) (Envelope, error) {
	if msg == nil {
		return Envelope{}, fmt.Errorf("nil message for topic %q", topic)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", msg.TypeName(), err)
	}
	env := Envelope{Topic: topic, Type: msg.TypeName(), Payload: payload}
	if s, ok := msg.(msgs.Stamped); ok {
		env.StampNs = s.GetHeader().Stamp.UnixNano()
	}
	return env, nil
}

// Decode unmarshals the payload into dst.
func (e Envelope) Decode(dst msgs.Message) error {
	if dst.TypeName() != e.Type {
		return fmt.Errorf("decode %s payload into %s", e.Type, dst.TypeName())
	}
	return json.Unmarshal(e.Payload, dst)
}

// Struct converts the envelope into a protobuf Struct of the form
// {topic, type, stamp_ns, payload}. stamp_ns is carried as a string because
// Struct numbers are doubles.
func (e Envelope) Struct() (*structpb.Struct, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"topic":    e.Topic,
		"type":     e.Type,
		"stamp_ns": fmt.Sprintf("%d", e.StampNs),
		"payload":  payload,
	})
}

// EnvelopeFromStruct reverses Envelope.Struct.
func EnvelopeFromStruct(s *structpb.Struct) (Envelope, error) {
	f := s.GetFields()
	env := Envelope{
		Topic: f["topic"].GetStringValue(),
		Type:  f["type"].GetStringValue(),
	}
	if ns := f["stamp_ns"].GetStringValue(); ns != "" {
		if _, err := fmt.Sscanf(ns, "%d", &env.StampNs); err != nil {
			return Envelope{}, fmt.Errorf("bad stamp_ns %q: %w", ns, err)
		}
	}
	payload, err := json.Marshal(f["payload"].GetStructValue().AsMap())
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	env.Payload = payload
	return env, nil
}
