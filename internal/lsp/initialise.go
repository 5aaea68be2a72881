// Package lsp holds the Language Server Protocol payload types exchanged
// with the client: initialize negotiation, text-document events and
// diagnostics.
package lsp

import "encoding/json"

// PositionEncodingUTF16 is the only position encoding the server offers.
const PositionEncodingUTF16 = "utf-16"

// SyncFull asks the client to send the whole document on change.
const SyncFull = 1

// InitialiseParams is the client side of the "initialize" handshake.
type InitialiseParams struct {
	ProcessID             *int               `json:"processId"`
	ClientInfo            *ClientInfo        `json:"clientInfo"`
	Locale                *string            `json:"locale"`
	InitialisationOptions json.RawMessage    `json:"initializationOptions"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	Trace                 string             `json:"trace"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders"`
}

type ClientInfo struct {
	Name    string  `json:"name"`
	Version *string `json:"version"`
}

// Display returns a printable label for the client, "unknown client" when
// the client sent no info.
func (c *ClientInfo) Display() string {
	if c == nil || c.Name == "" {
		return "unknown client"
	}
	if c.Version == nil {
		return c.Name
	}

	return c.Name + " " + *c.Version
}

type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument"`
	General      *GeneralClientCapabilities      `json:"general"`
}

type TextDocumentClientCapabilities struct {
	Diagnostic *DiagnosticClientCapabilities `json:"diagnostic"`
}

type DiagnosticClientCapabilities struct {
	DynamicRegistration    *bool `json:"dynamicRegistration"`
	RelatedDocumentSupport *bool `json:"relatedDocumentSupport"`
}

type GeneralClientCapabilities struct {
	PositionEncodings []string `json:"positionEncodings"`
}

type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitialiseResult is the server side of the "initialize" handshake.
type InitialiseResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   ServerInfo         `json:"serverInfo"`
}

type ServerCapabilities struct {
	PositionEncoding   string            `json:"positionEncoding"`
	TextDocumentSync   TextDocumentSync  `json:"textDocumentSync"`
	DiagnosticProvider DiagnosticOptions `json:"diagnosticProvider"`
}

type TextDocumentSync struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
	Save      bool `json:"save"`
}

type DiagnosticOptions struct {
	Identifier            string `json:"identifier"`
	InterFileDependencies bool   `json:"interFileDependencies"`
	WorkspaceDiagnostics  bool   `json:"workspaceDiagnostics"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewInitialiseResult returns the fixed capability set advertised by the
// server identified by name and version.
func NewInitialiseResult(name, version string) InitialiseResult {
	return InitialiseResult{
		Capabilities: ServerCapabilities{
			PositionEncoding: PositionEncodingUTF16,
			TextDocumentSync: TextDocumentSync{OpenClose: true, Change: SyncFull, Save: true},
			DiagnosticProvider: DiagnosticOptions{
				Identifier:            name,
				InterFileDependencies: false,
				WorkspaceDiagnostics:  false,
			},
		},
		ServerInfo: ServerInfo{Name: name, Version: version},
	}
}
