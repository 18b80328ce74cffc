// Package codec decodes push-channel messages and REST snapshots into reconcile types.
//
// Wire shape of a notification:
//
//	{"type": "CREATE"|"UPDATE"|"DELETE"|"BATCH", "data": <entity> | {"id": ID} | [ {type, data}, ... ]}
//
// Numbers are decoded as json.Number so large integer ids keep their exact text.
// Unknown type strings are passed through; the reconciler decides what to do with them.
// Inside a BATCH, an item that cannot be decoded is kept as an entity-less
// notification so only that item is skipped.
//
// Feeds whose push channel sends bare entities instead of envelopes use DecodeEntity.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"livesync/core/reconcile"
)

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed message")

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses one push-channel message.
func Decode(data []byte) (reconcile.Notification, error) {
	var env envelope
	if err := unmarshal(data, &env); err != nil {
		return reconcile.Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return decodeEnvelope(env, true)
}

// DecodeEntity parses a push message that is a bare entity object and treats it
// as a CREATE.
func DecodeEntity(data []byte) (reconcile.Notification, error) {
	var entity reconcile.Entity
	if err := unmarshal(data, &entity); err != nil {
		return reconcile.Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if entity == nil {
		return reconcile.Notification{}, fmt.Errorf("%w: entity is null", ErrMalformed)
	}
	return reconcile.Create(entity), nil
}

// Format names the shape of push-channel messages.
type Format string

const (
	// FormatEnvelope is {"type": ..., "data": ...}.
	FormatEnvelope Format = "envelope"
	// FormatEntity is a bare entity object, applied as a CREATE.
	FormatEntity Format = "entity"
)

// DecoderFor returns the decode function for a message format. Unknown formats
// fall back to envelopes.
func DecoderFor(f Format) func([]byte) (reconcile.Notification, error) {
	if f == FormatEntity {
		return DecodeEntity
	}
	return Decode
}

func decodeEnvelope(env envelope, top bool) (reconcile.Notification, error) {
	if env.Type == "" {
		return reconcile.Notification{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	kind := reconcile.Kind(env.Type)

	switch kind {
	case reconcile.KindBatch:
		if !top {
			// Nested batches are handed to the reconciler, which skips them.
			return reconcile.Notification{Kind: kind}, nil
		}
		var items []json.RawMessage
		if err := unmarshal(env.Data, &items); err != nil || items == nil {
			return reconcile.Notification{}, fmt.Errorf("%w: batch data is not an array", ErrMalformed)
		}
		batch := make([]reconcile.Notification, 0, len(items))
		for _, raw := range items {
			var (
				item envelope
				n    reconcile.Notification
			)
			err := unmarshal(raw, &item)
			if err == nil {
				n, err = decodeEnvelope(item, false)
			}
			if err != nil {
				// A bad item carries no entity. The reconciler skips it and still
				// applies the rest of the batch.
				n = reconcile.Notification{Kind: reconcile.Kind(item.Type)}
			}
			batch = append(batch, n)
		}
		return reconcile.Batch(batch...), nil

	case reconcile.KindCreate, reconcile.KindUpdate, reconcile.KindDelete:
		var entity reconcile.Entity
		if err := unmarshal(env.Data, &entity); err != nil || entity == nil {
			return reconcile.Notification{}, fmt.Errorf("%w: %s data is not an object", ErrMalformed, kind)
		}
		return reconcile.Notification{Kind: kind, Entity: entity}, nil

	default:
		return reconcile.Notification{Kind: kind}, nil
	}
}

// DecodeSnapshot parses a full listing. The body is either a JSON array or an object
// whose itemsField holds the array.
func DecodeSnapshot(data []byte, itemsField string) ([]reconcile.Entity, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && itemsField != "" {
		var wrapper map[string]json.RawMessage
		if err := unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		inner, ok := wrapper[itemsField]
		if !ok {
			return nil, fmt.Errorf("%w: expected entity list in %q", ErrMalformed, itemsField)
		}
		trimmed = inner
	}

	var entities []reconcile.Entity
	if err := unmarshal(trimmed, &entities); err != nil {
		return nil, fmt.Errorf("%w: expected entity list: %v", ErrMalformed, err)
	}
	if entities == nil {
		return nil, fmt.Errorf("%w: expected entity list, got null", ErrMalformed)
	}
	return entities, nil
}

// Encode renders a notification in wire form.
func Encode(n reconcile.Notification) ([]byte, error) {
	return json.Marshal(toWire(n))
}

type wireMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func toWire(n reconcile.Notification) wireMessage {
	if n.Kind == reconcile.KindBatch {
		items := make([]wireMessage, len(n.Batch))
		for i, inner := range n.Batch {
			items[i] = toWire(inner)
		}
		return wireMessage{Type: string(n.Kind), Data: items}
	}
	return wireMessage{Type: string(n.Kind), Data: n.Entity}
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
