package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the raw shape shared by requests and notifications. ID is a
// pointer so that an absent id (notification) is distinguishable from an
// explicit null id (request).
type envelope struct {
	JSONRPC string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params"`
	ID      *json.RawMessage `json:"id"`
}

// DecodeMessage decodes one raw JSON-RPC message into a Request,
// BatchRequest or Notification. Failures wrap one of ErrParse,
// ErrInvalidRequest or ErrMethodNotFound for classification by the caller.
func DecodeMessage(raw []byte) (Message, error) {
	trimmed := bytes.TrimLeft(raw, " \t\n\r") // Trim space, tab, newline, and carriage return, see RFC 8259.
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty message: %w", ErrParse)
	}

	switch trimmed[0] {
	case '[': // Batch request.
		return decodeBatch(trimmed)
	case '{': // Single request or notification.
		return decodeSingle(trimmed)
	default:
		return nil, fmt.Errorf("message must be an object or an array: %w", ErrInvalidRequest)
	}
}

func decodeBatch(raw []byte) (Message, error) {
	var envelopes []json.RawMessage
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", ErrParse)
	}

	if len(envelopes) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmptyBatch, ErrInvalidRequest)
	}

	batch := make(BatchRequest, 0, len(envelopes))

	for _, element := range envelopes {
		msg, err := decodeSingle(element)
		if err != nil {
			return nil, err
		}

		req, ok := msg.(Request)
		if !ok {
			return nil, fmt.Errorf("batch elements must be requests: %w", ErrInvalidRequest)
		}

		batch = append(batch, req)
	}

	return batch, nil
}

func decodeSingle(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid message: %w", ErrParse)
	}

	if env.JSONRPC != JSONRPCVersion {
		return nil, fmt.Errorf("only JSON-RPC %q is supported, got %q: %w", JSONRPCVersion, env.JSONRPC, ErrInvalidRequest)
	}

	if env.Method == "" {
		return nil, fmt.Errorf("method is empty: %w", ErrInvalidRequest)
	}

	if env.ID == nil { // No id: a notification.
		method, err := decodeNotificationMethod(env.Method, env.Params)
		if err != nil {
			return nil, err
		}

		return Notification{Method: method}, nil
	}

	var id RequestID
	if err := id.UnmarshalJSON(*env.ID); err != nil {
		return nil, err
	}

	method, err := decodeRequestMethod(env.Method, env.Params)
	if err != nil {
		return nil, err
	}

	return Request{ID: id, Method: method}, nil
}

// RecoverID extracts a best-effort request id from a raw message that failed
// to decode. It returns the null id when the message holds no usable id, and
// an ErrParse error when the bytes are not JSON at all.
func RecoverID(raw []byte) (RequestID, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return NullID(), fmt.Errorf("unparseable message: %w", ErrParse)
	}

	var probe struct {
		ID *json.RawMessage `json:"id"`
	}

	if err := json.Unmarshal(raw, &probe); err != nil {
		return NullID(), nil // Valid JSON, but not an object: no id to recover.
	}

	if probe.ID == nil {
		return NullID(), nil
	}

	var id RequestID
	if err := id.UnmarshalJSON(*probe.ID); err != nil {
		return NullID(), nil // Unusable id shapes fall back to null.
	}

	return id, nil
}

// outboundNotification is the wire shape of a server-initiated notification.
type outboundNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// MarshalJSON encodes the notification with its method tag and params.
func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(outboundNotification{
		JSONRPC: JSONRPCVersion,
		Method:  n.Method.Name(),
		Params:  n.Method.params(),
	})
}
