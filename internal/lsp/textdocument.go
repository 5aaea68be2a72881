package lsp

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier names a document by URI at a specific
// version.
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentItem is the full document carried by "textDocument/didOpen".
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// DidOpenParams is the "textDocument/didOpen" payload.
type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidSaveParams is the "textDocument/didSave" payload.
type DidSaveParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidChangeParams is the "textDocument/didChange" payload. Content changes
// are not tracked; the server re-lints from disk.
type DidChangeParams struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`
}

// DidCloseParams is the "textDocument/didClose" payload.
type DidCloseParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}
