package lsp

import "encoding/json"

// DiagnosticSeverity is encoded on the wire as 1-4.
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// DiagnosticTag is encoded on the wire as 1-2.
type DiagnosticTag int

const (
	TagUnnecessary DiagnosticTag = 1
	TagDeprecated  DiagnosticTag = 2
)

// Position is a 0-based line/character pair.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Diagnostic is a single finding reported to the client.
type Diagnostic struct {
	Range              Range                `json:"range"`
	Severity           DiagnosticSeverity   `json:"severity"`
	Code               string               `json:"code"`
	CodeDescription    *CodeDescription     `json:"codeDescription,omitempty"`
	Source             string               `json:"source,omitempty"`
	Message            string               `json:"message"`
	Tags               []DiagnosticTag      `json:"tags"`
	RelatedInformation []RelatedInformation `json:"relatedInformation"`
	Data               json.RawMessage      `json:"data,omitempty"`
}

type CodeDescription struct {
	HRef string `json:"href"`
}

type RelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// Report kinds for a document diagnostic report.
const (
	ReportKindFull      = "full"
	ReportKindUnchanged = "unchanged"
)

// FullDiagnosticReport answers a pull request with the complete set of
// current findings.
type FullDiagnosticReport struct {
	Kind     string       `json:"kind"`
	ResultID string       `json:"resultId"`
	Items    []Diagnostic `json:"items"`
}

// UnchangedDiagnosticReport tells the client to reuse the cached results
// identified by ResultID.
type UnchangedDiagnosticReport struct {
	Kind     string `json:"kind"`
	ResultID string `json:"resultId"`
}

// FullReport returns a full report carrying items. A nil items slice is
// reported as an empty list, not null.
func FullReport(resultID string, items []Diagnostic) FullDiagnosticReport {
	if items == nil {
		items = []Diagnostic{}
	}

	return FullDiagnosticReport{Kind: ReportKindFull, ResultID: resultID, Items: items}
}

// UnchangedReport returns a report telling the client to reuse resultID.
func UnchangedReport(resultID string) UnchangedDiagnosticReport {
	return UnchangedDiagnosticReport{Kind: ReportKindUnchanged, ResultID: resultID}
}

// PullDiagnosticsParams is the "textDocument/diagnostic" request payload.
type PullDiagnosticsParams struct {
	TextDocument     TextDocumentIdentifier `json:"textDocument"`
	Identifier       *string                `json:"identifier"`
	PreviousResultID *string                `json:"previousResultId"`
}

// PublishDiagnosticsParams is the outbound "textDocument/publishDiagnostics"
// payload.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}
