package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/sarsapar1lla/cfn-lsp/internal/lsp"
)

// Request method names.
const (
	MethodInitialise      = "initialize"
	MethodShutdown        = "shutdown"
	MethodPullDiagnostics = "textDocument/diagnostic"
)

// Notification method names.
const (
	MethodExit               = "exit"
	MethodInitialised        = "initialized"
	MethodDidOpen            = "textDocument/didOpen"
	MethodDidSave            = "textDocument/didSave"
	MethodDidChange          = "textDocument/didChange"
	MethodDidClose           = "textDocument/didClose"
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
)

// RequestMethod is the tagged union of methods a client may call as a
// request. Decoding fails closed: an unknown tag is an error, never a
// silent default.
type RequestMethod interface {
	Name() string
}

// Initialise is the "initialize" request.
type Initialise struct {
	Params lsp.InitialiseParams
}

func (Initialise) Name() string { return MethodInitialise }

// Shutdown is the "shutdown" request. It carries no params.
type Shutdown struct{}

func (Shutdown) Name() string { return MethodShutdown }

// PullDiagnostics is the "textDocument/diagnostic" request.
type PullDiagnostics struct {
	Params lsp.PullDiagnosticsParams
}

func (PullDiagnostics) Name() string { return MethodPullDiagnostics }

// NotificationMethod is the tagged union of methods arriving or leaving as
// notifications.
type NotificationMethod interface {
	Name() string
	params() any
}

// Exit terminates the process.
type Exit struct{}

func (Exit) Name() string { return MethodExit }
func (Exit) params() any  { return nil }

// Initialised acknowledges the initialize handshake.
type Initialised struct{}

func (Initialised) Name() string { return MethodInitialised }
func (Initialised) params() any  { return struct{}{} }

// DidOpen reports a document opened in the client.
type DidOpen struct {
	Params lsp.DidOpenParams
}

func (DidOpen) Name() string  { return MethodDidOpen }
func (n DidOpen) params() any { return n.Params }

// DidSave reports a document saved in the client.
type DidSave struct {
	Params lsp.DidSaveParams
}

func (DidSave) Name() string  { return MethodDidSave }
func (n DidSave) params() any { return n.Params }

// DidChange reports a document edited in the client.
type DidChange struct {
	Params lsp.DidChangeParams
}

func (DidChange) Name() string  { return MethodDidChange }
func (n DidChange) params() any { return n.Params }

// DidClose reports a document closed in the client.
type DidClose struct {
	Params lsp.DidCloseParams
}

func (DidClose) Name() string  { return MethodDidClose }
func (n DidClose) params() any { return n.Params }

// PublishDiagnostics is the outbound diagnostics push. It is never decoded
// from the wire.
type PublishDiagnostics struct {
	Params lsp.PublishDiagnosticsParams
}

func (PublishDiagnostics) Name() string  { return MethodPublishDiagnostics }
func (n PublishDiagnostics) params() any { return n.Params }

// decodeRequestMethod decodes the method tag and its params into the
// matching RequestMethod variant.
func decodeRequestMethod(method string, params json.RawMessage) (RequestMethod, error) {
	switch method {
	case MethodInitialise:
		var p lsp.InitialiseParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}

		return Initialise{Params: p}, nil
	case MethodShutdown:
		return Shutdown{}, nil
	case MethodPullDiagnostics:
		var p lsp.PullDiagnosticsParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}

		return PullDiagnostics{Params: p}, nil
	default:
		return nil, fmt.Errorf("request method %q: %w", method, ErrMethodNotFound)
	}
}

// decodeNotificationMethod decodes the method tag and its params into the
// matching NotificationMethod variant.
func decodeNotificationMethod(method string, params json.RawMessage) (NotificationMethod, error) {
	switch method {
	case MethodExit:
		return Exit{}, nil
	case MethodInitialised:
		return Initialised{}, nil
	case MethodDidOpen:
		var p lsp.DidOpenParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}

		return DidOpen{Params: p}, nil
	case MethodDidSave:
		var p lsp.DidSaveParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}

		return DidSave{Params: p}, nil
	case MethodDidChange:
		var p lsp.DidChangeParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}

		return DidChange{Params: p}, nil
	case MethodDidClose:
		var p lsp.DidCloseParams
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}

		return DidClose{Params: p}, nil
	default:
		return nil, fmt.Errorf("notification method %q: %w", method, ErrMethodNotFound)
	}
}

func unmarshalParams(params json.RawMessage, into any) error {
	if len(params) == 0 {
		return fmt.Errorf("missing params: %w", ErrInvalidRequest)
	}

	if err := json.Unmarshal(params, into); err != nil {
		return fmt.Errorf("invalid params: %w: %w", ErrInvalidRequest, err)
	}

	return nil
}
