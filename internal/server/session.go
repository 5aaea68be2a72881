// Package server owns the LSP session lifecycle: it decides which methods
// are legal in which state, dispatches them, and shapes diagnostic results
// for the wire.
package server

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/sarsapar1lla/cfn-lsp/internal/lint"
	"github.com/sarsapar1lla/cfn-lsp/internal/lsp"
	"github.com/sarsapar1lla/cfn-lsp/internal/protocol"
	"github.com/sarsapar1lla/cfn-lsp/internal/watch"
)

const (
	// Name identifies the server to clients, in logs and as the diagnostic
	// provider identifier.
	Name = "cfn-lsp"
	// Version is reported in serverInfo.
	Version = "0.1.0"

	// Pull reports carry a fixed result id: the server never answers
	// Unchanged, so clients cannot usefully cache by it.
	resultID = "result"
)

// state is the session lifecycle. Transitions are monotonic: once past a
// state the session never re-enters it.
type state int

const (
	stateUninitialised state = iota
	stateInitialised
	stateShutdown
)

// Outcome is the effect of handling one inbound message.
type Outcome struct {
	// Response to write back, nil for notifications.
	Response protocol.Response
	// Server-initiated notifications to write after the response.
	Notifications []protocol.Notification
	// Exit tells the owning loop to terminate the process.
	Exit bool
	// Documents opened and closed by the client, for optional file watching.
	Opened []Document
	Closed []string
}

// Document pairs an open document's URI with the local path backing it.
type Document struct {
	Path string
	URI  string
}

// Session is the single source of truth for one client connection. The
// serve loop calls it sequentially; the mutex exists for the optional watch
// path, which publishes from its own goroutine.
type Session struct {
	mu              sync.Mutex
	state           state
	params          *lsp.InitialiseParams
	open            map[string]int // open document URI -> last seen version
	clientProcessID string

	linter   lint.Linter
	selector *watch.Selector
	log      zerolog.Logger
}

// Option configures a Session during construction.
type Option func(*Session)

// WithClientProcessID records the client process id passed on the command
// line, for logging.
func WithClientProcessID(id string) Option {
	return func(s *Session) { s.clientProcessID = id }
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithSelector restricts diagnostic publication to matching documents.
func WithSelector(selector *watch.Selector) Option {
	return func(s *Session) { s.selector = selector }
}

// New returns an uninitialised session backed by linter.
func New(linter lint.Linter, opts ...Option) *Session {
	s := &Session{
		state:  stateUninitialised,
		open:   make(map[string]int),
		linter: linter,
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.selector == nil {
		selector, err := watch.NewSelector()
		if err != nil {
			panic(err) // DefaultPatterns always compile.
		}

		s.selector = selector
	}

	return s
}

// Handle dispatches one message against the current lifecycle state.
func (s *Session) Handle(msg protocol.Message) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.Request:
		return Outcome{Response: s.handleRequest(m)}
	case protocol.BatchRequest:
		return Outcome{Response: s.handleBatch(m)}
	case protocol.Notification:
		return s.handleNotification(m)
	default:
		return Outcome{}
	}
}

// handleBatch dispatches every element against the shared session state, in
// order. A state transition made by one element is visible to the elements
// after it.
func (s *Session) handleBatch(batch protocol.BatchRequest) protocol.Response {
	responses := make(protocol.BatchResponse, 0, len(batch))

	for _, req := range batch {
		responses = append(responses, s.handleRequest(req))
	}

	return responses
}

func (s *Session) handleRequest(req protocol.Request) protocol.Response {
	switch s.state {
	case stateUninitialised:
		if init, ok := req.Method.(protocol.Initialise); ok {
			return s.initialise(req.ID, init.Params)
		}

		return uninitialisedRequest(req.ID)
	case stateShutdown:
		return postShutdownRequest(req.ID)
	default:
		switch method := req.Method.(type) {
		case protocol.Shutdown:
			return s.shutdown(req.ID)
		case protocol.PullDiagnostics:
			return s.pullDiagnostics(req.ID, method.Params)
		default:
			return alreadyInitialised(req.ID)
		}
	}
}

func (s *Session) handleNotification(n protocol.Notification) Outcome {
	if s.state != stateInitialised {
		if _, ok := n.Method.(protocol.Exit); ok {
			s.log.Info().Msg("received exit notification, exiting")

			return Outcome{Exit: true}
		}

		return Outcome{}
	}

	switch method := n.Method.(type) {
	case protocol.DidOpen:
		return s.didOpen(method.Params)
	case protocol.DidSave:
		return s.didSave(method.Params)
	case protocol.DidClose:
		return s.didClose(method.Params)
	default:
		// didChange and initialized are tracked no-ops.
		return Outcome{}
	}
}

func (s *Session) initialise(id protocol.RequestID, params lsp.InitialiseParams) protocol.Response {
	s.log.Info().
		Stringer("id", id).
		Str("clientProcessId", s.clientProcessID).
		Msgf("initialising server for client '%s'", params.ClientInfo.Display())

	s.state = stateInitialised
	s.params = &params

	return protocol.NewSuccess(id, lsp.NewInitialiseResult(Name, Version))
}

func (s *Session) shutdown(id protocol.RequestID) protocol.Response {
	s.log.Info().Stringer("id", id).Msg("shutting down server")
	s.state = stateShutdown

	return protocol.NewSuccess(id, nil)
}

func (s *Session) pullDiagnostics(id protocol.RequestID, params lsp.PullDiagnosticsParams) protocol.Response {
	uri := params.TextDocument.URI
	s.log.Debug().Stringer("id", id).Msgf("generating diagnostics for file '%s'", uri)

	diagnostics, err := s.linter.Lint(uri)
	if err != nil {
		s.log.Error().Stringer("id", id).Err(err).Msg("failed to generate diagnostics")

		return protocol.NewErrorResponse(id, protocol.NewError(protocol.InternalError, "Failed to generate diagnostics", nil))
	}

	return protocol.NewSuccess(id, lsp.FullReport(resultID, diagnostics))
}

func (s *Session) didOpen(params lsp.DidOpenParams) Outcome {
	doc := params.TextDocument

	path := lint.FilePath(doc.URI)
	if !s.selector.Matches(path) {
		s.log.Debug().Str("uri", doc.URI).Msg("document does not match selector, ignoring")

		return Outcome{}
	}

	s.open[doc.URI] = doc.Version

	version := doc.Version
	outcome := Outcome{Opened: []Document{{Path: path, URI: doc.URI}}}

	if n, ok := s.publish(doc.URI, &version); ok {
		outcome.Notifications = append(outcome.Notifications, n)
	}

	return outcome
}

func (s *Session) didSave(params lsp.DidSaveParams) Outcome {
	uri := params.TextDocument.URI

	path := lint.FilePath(uri)
	if !s.selector.Matches(path) {
		return Outcome{}
	}

	var outcome Outcome

	if n, ok := s.publish(uri, nil); ok {
		outcome.Notifications = append(outcome.Notifications, n)
	}

	return outcome
}

func (s *Session) didClose(params lsp.DidCloseParams) Outcome {
	uri := params.TextDocument.URI
	delete(s.open, uri)

	return Outcome{Closed: []string{lint.FilePath(uri)}}
}

// PublishFor re-runs diagnostics for an open document, for the watch path.
// It reports false when the session is not initialised, the document is no
// longer open, or the lint run failed.
func (s *Session) PublishFor(uri string) (protocol.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInitialised {
		return protocol.Notification{}, false
	}

	if _, ok := s.open[uri]; !ok {
		return protocol.Notification{}, false
	}

	return s.publish(uri, nil)
}

// publish runs the linter and wraps the findings as a publishDiagnostics
// notification. A lint failure produces no notification: the notification
// path has no response channel to surface it on.
func (s *Session) publish(uri string, version *int) (protocol.Notification, bool) {
	s.log.Debug().Str("uri", uri).Msg("generating diagnostics for publication")

	diagnostics, err := s.linter.Lint(uri)
	if err != nil {
		s.log.Error().Str("uri", uri).Err(err).Msg("failed to generate diagnostics")

		return protocol.Notification{}, false
	}

	if diagnostics == nil {
		diagnostics = []lsp.Diagnostic{}
	}

	return protocol.Notification{
		Method: protocol.PublishDiagnostics{
			Params: lsp.PublishDiagnosticsParams{URI: uri, Version: version, Diagnostics: diagnostics},
		},
	}, true
}

func uninitialisedRequest(id protocol.RequestID) protocol.Response {
	return protocol.NewErrorResponse(id, protocol.NewError(protocol.ServerNotInitialised, "Server not initialised", nil))
}

func alreadyInitialised(id protocol.RequestID) protocol.Response {
	return protocol.NewErrorResponse(id, protocol.NewError(protocol.ServerAlreadyInitialised, "Server already initialised", nil))
}

func postShutdownRequest(id protocol.RequestID) protocol.Response {
	return protocol.NewErrorResponse(id, protocol.NewError(protocol.InvalidRequest, "Server has been shutdown", nil))
}
