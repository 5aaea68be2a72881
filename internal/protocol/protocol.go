// Package protocol implements the JSON-RPC 2.0 envelope used by the
// language server: requests, batches, notifications, responses and the
// error-code vocabulary shared with LSP clients.
//
// Reference: https://www.jsonrpc.org/specification
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const JSONRPCVersion = "2.0" // Must be "2.0" for all JSON-RPC 2.0 messages.

// JSON-RPC error codes, plus the LSP-reserved lifecycle codes.
const (
	ParseError               = -32700 // Invalid JSON was received by the server.
	InvalidRequest           = -32600 // The JSON sent is not a valid Request object.
	MethodNotFound           = -32601 // The method does not exist / is not available.
	InvalidParams            = -32602 // Invalid method parameter(s).
	InternalError            = -32603 // Internal JSON-RPC error.
	ServerNotInitialised     = -32002 // Request received before "initialize".
	ServerAlreadyInitialised = -32003 // "initialize" received twice.
)

var (
	ErrParse          = errors.New("failed to parse JSON-RPC message") // Parse error
	ErrInvalidRequest = errors.New("invalid JSON-RPC request")         // Invalid request
	ErrEmptyBatch     = errors.New("empty JSON-RPC batch")             // A batch must hold at least one request.
	ErrMethodNotFound = errors.New("method not found")                 // Unknown method tag.
)

// idKind discriminates the three shapes a request id may take.
type idKind uint8

const (
	idNull idKind = iota
	idString
	idNumber
)

// RequestID is a JSON-RPC request identifier: a string, a number, or null.
// The zero value is the null id. RequestID is comparable; equal ids compare
// equal with ==.
type RequestID struct {
	kind idKind
	str  string
	num  uint32
}

// NullID returns the null request id, used when no id could be recovered.
func NullID() RequestID { return RequestID{} }

// StringID returns a string request id.
func StringID(s string) RequestID { return RequestID{kind: idString, str: s} }

// NumberID returns a numeric request id.
func NumberID(n uint32) RequestID { return RequestID{kind: idNumber, num: n} }

// IsNull reports whether the id is the null id.
func (id RequestID) IsNull() bool { return id.kind == idNull }

func (id RequestID) String() string {
	switch id.kind {
	case idString:
		return id.str
	case idNumber:
		return fmt.Sprintf("%d", id.num)
	default:
		return "null"
	}
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idString:
		return json.Marshal(id.str)
	case idNumber:
		return json.Marshal(id.num)
	default:
		return []byte("null"), nil
	}
}

func (id *RequestID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = RequestID{}

		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = StringID(s)

		return nil
	}

	var n uint32
	if err := json.Unmarshal(b, &n); err == nil {
		*id = NumberID(n)

		return nil
	}

	return fmt.Errorf("id must be a string, a number or null: %w", ErrInvalidRequest)
}

// Message is one decoded inbound JSON-RPC message: a Request, a BatchRequest
// or a Notification.
type Message interface {
	isMessage()
}

// Request is a JSON-RPC call expecting a response with a matching id.
type Request struct {
	ID     RequestID
	Method RequestMethod
}

func (Request) isMessage() {}

// BatchRequest is an ordered, non-empty sequence of requests. Responses are
// returned in request order.
type BatchRequest []Request

func (BatchRequest) isMessage() {}

// Notification is a JSON-RPC call with no id; no response is ever produced.
type Notification struct {
	Method NotificationMethod
}

func (Notification) isMessage() {}

// Error is the JSON-RPC error object. Data is always serialized, as null
// when absent.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// NewError returns an error object with the given code and message. data may
// be nil.
func NewError(code int, message string, data any) Error {
	return Error{Code: code, Message: message, Data: data}
}

// Response is an outbound JSON-RPC response: a Success, an ErrorResponse or
// a BatchResponse.
type Response interface {
	isResponse()
}

// Success carries the result of a completed request. Result serializes as
// null when nil.
type Success struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result"`
	ID      RequestID `json:"id"`
}

func (Success) isResponse() {}

// NewSuccess returns a success response echoing id.
func NewSuccess(id RequestID, result any) Success {
	return Success{JSONRPC: JSONRPCVersion, Result: result, ID: id}
}

// ErrorResponse carries a request failure. The id echoes the originating
// request, or is null when no id was recoverable.
type ErrorResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Error   Error     `json:"error"`
	ID      RequestID `json:"id"`
}

func (ErrorResponse) isResponse() {}

// NewErrorResponse returns an error response echoing id.
func NewErrorResponse(id RequestID, err Error) ErrorResponse {
	return ErrorResponse{JSONRPC: JSONRPCVersion, Error: err, ID: id}
}

// BatchResponse is the ordered response to a BatchRequest.
type BatchResponse []Response

func (BatchResponse) isResponse() {}
