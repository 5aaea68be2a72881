// Package lint turns CloudFormation templates into LSP diagnostics. The
// real implementation shells out to cfn-lint; Stub provides fixed output
// for tests.
package lint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sarsapar1lla/cfn-lsp/internal/lsp"
)

const cfnLint = "cfn-lint"

// Linter produces the ordered diagnostics for the document at uri. A clean
// document yields an empty slice, not an error.
type Linter interface {
	Lint(uri string) ([]lsp.Diagnostic, error)
}

// CfnLint invokes the cfn-lint executable and parses its JSON output.
type CfnLint struct {
	log zerolog.Logger
}

// NewCfnLint returns a linter logging through log.
func NewCfnLint(log zerolog.Logger) *CfnLint {
	return &CfnLint{log: log}
}

// Lint runs cfn-lint against the file behind uri. cfn-lint exits non-zero
// when it has findings; a zero exit means a clean template.
func (l *CfnLint) Lint(uri string) ([]lsp.Diagnostic, error) {
	path := FilePath(uri)
	l.log.Debug().Str("path", path).Msg("invoking cfn-lint")

	out, err := exec.Command(cfnLint, "--template", path, "--format", "json").Output()
	if err == nil {
		return []lsp.Diagnostic{}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to invoke %q: %w", cfnLint, err)
	}

	var findings []lintDiagnostic
	if err := json.Unmarshal(out, &findings); err != nil {
		return nil, fmt.Errorf("linter response did not match expected structure: %w", err)
	}

	diagnostics := make([]lsp.Diagnostic, 0, len(findings))

	for _, finding := range findings {
		diagnostic, err := finding.diagnostic()
		if err != nil {
			return nil, err
		}

		diagnostics = append(diagnostics, diagnostic)
	}

	return diagnostics, nil
}

// FilePath resolves a file:// URI to a local path. Windows-style URIs keep
// only the segment after the drive-letter colon.
func FilePath(uri string) string {
	path := strings.ReplaceAll(uri, "file://", "")
	segments := strings.Split(path, ":")

	return segments[len(segments)-1]
}

// lintDiagnostic mirrors one element of cfn-lint's JSON output.
type lintDiagnostic struct {
	ID       string       `json:"Id"`
	Level    string       `json:"Level"`
	Location lintLocation `json:"Location"`
	Message  string       `json:"Message"`
	Rule     lintRule     `json:"Rule"`
}

type lintLocation struct {
	Start lintPosition `json:"Start"`
	End   lintPosition `json:"End"`
}

// lintPosition is 1-based, unlike LSP positions.
type lintPosition struct {
	LineNumber   uint32 `json:"LineNumber"`
	ColumnNumber uint32 `json:"ColumnNumber"`
}

type lintRule struct {
	ID     string `json:"Id"`
	Source string `json:"Source"`
}

func (d lintDiagnostic) diagnostic() (lsp.Diagnostic, error) {
	severity, err := severityOf(d.Level)
	if err != nil {
		return lsp.Diagnostic{}, err
	}

	return lsp.Diagnostic{
		Range: lsp.Range{
			Start: d.Location.Start.position(),
			End:   d.Location.End.position(),
		},
		Severity:           severity,
		Code:               d.Rule.ID,
		CodeDescription:    &lsp.CodeDescription{HRef: d.Rule.Source},
		Source:             cfnLint,
		Message:            d.Message,
		Tags:               []lsp.DiagnosticTag{},
		RelatedInformation: []lsp.RelatedInformation{},
	}, nil
}

func (p lintPosition) position() lsp.Position {
	return lsp.Position{Line: p.LineNumber - 1, Character: p.ColumnNumber - 1}
}

func severityOf(level string) (lsp.DiagnosticSeverity, error) {
	switch level {
	case "Error":
		return lsp.SeverityError, nil
	case "Warning":
		return lsp.SeverityWarning, nil
	case "Information":
		return lsp.SeverityInformation, nil
	default:
		return 0, fmt.Errorf("unknown diagnostic level %q", level)
	}
}

// Stub is a fixed-output Linter for tests.
type Stub struct {
	Diagnostics []lsp.Diagnostic
	Err         error
}

func (s Stub) Lint(string) ([]lsp.Diagnostic, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	return s.Diagnostics, nil
}
