// Package frame reads and writes JSON-RPC frames: a CRLF-terminated header
// block carrying Content-Length, followed by exactly that many bytes of
// JSON body.
package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarsapar1lla/cfn-lsp/internal/protocol"
)

const (
	contentLengthPrefix = "Content-Length: "
	contentTypePrefix   = "Content-Type: "

	defaultContentType = "application/vscode-jsonrpc"
	defaultCharset     = "utf-8"
)

// ReadErrorKind classifies a failed read.
type ReadErrorKind int

const (
	// MalformedHeaders: the header block could not be parsed.
	MalformedHeaders ReadErrorKind = iota
	// InvalidMessage: the body was read but is not a valid message; Code and
	// ID carry the classification and the best-effort recovered id.
	InvalidMessage
	// Internal: an I/O failure on the channel, fatal to the connection.
	Internal
)

// ReadError describes why a frame could not be turned into a message.
type ReadError struct {
	Kind   ReadErrorKind
	ID     protocol.RequestID
	Code   int
	Detail string
}

func (e *ReadError) Error() string {
	switch e.Kind {
	case MalformedHeaders:
		return "malformed headers"
	case Internal:
		return fmt.Sprintf("i/o failure: %s", e.Detail)
	default:
		return fmt.Sprintf("invalid message (code %d): %s", e.Code, e.Detail)
	}
}

// Fatal reports whether the connection is unusable after this error.
func (e *ReadError) Fatal() bool { return e.Kind == Internal }

// Response converts the error into the JSON-RPC error response owed to the
// client. It must not be called for fatal errors, which have no response.
func (e *ReadError) Response() protocol.Response {
	switch e.Kind {
	case MalformedHeaders:
		return protocol.NewErrorResponse(
			protocol.NullID(),
			protocol.NewError(protocol.InvalidRequest, "Malformed headers", nil),
		)
	default:
		var message string

		switch e.Code {
		case protocol.ParseError:
			message = "Invalid JSON"
		case protocol.MethodNotFound:
			message = "Method not found"
		default:
			message = "Invalid request"
		}

		return protocol.NewErrorResponse(e.ID, protocol.NewError(e.Code, message, nil))
	}
}

// contentType is the parsed value of an optional Content-Type header.
type contentType struct {
	mime    string
	charset string
}

func defaultType() contentType {
	return contentType{mime: defaultContentType, charset: defaultCharset}
}

type headers struct {
	contentLength int
	contentType   contentType
}

// Reader extracts one message per Read call from the underlying stream,
// consuming exactly the bytes of one frame. warnLog receives advisory
// findings such as unexpected content types; it never blocks a read.
type Reader struct {
	r       *bufio.Reader
	warnLog func(string, ...any)
}

// NewReader wraps r. warnLog may be nil.
func NewReader(r io.Reader, warnLog func(string, ...any)) *Reader {
	if warnLog == nil {
		warnLog = func(string, ...any) {}
	}

	return &Reader{r: bufio.NewReader(r), warnLog: warnLog}
}

// Read consumes one frame and decodes its body. All failures are returned
// as *ReadError.
func (r *Reader) Read() (protocol.Message, error) {
	block, err := r.readHeaderBlock()
	if err != nil {
		return nil, err
	}

	hdrs, err := parseHeaders(block)
	if err != nil {
		return nil, err
	}

	if hdrs.contentType != defaultType() {
		r.warnLog("unexpected content type %q with charset %q", hdrs.contentType.mime, hdrs.contentType.charset)
	}

	body := make([]byte, hdrs.contentLength)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, &ReadError{Kind: Internal, Detail: fmt.Sprintf("failed to read body: %v", err)}
	}

	return decodeBody(body)
}

// readHeaderBlock accumulates lines until the blank-line terminator.
func (r *Reader) readHeaderBlock() (string, error) {
	var block strings.Builder

	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			return "", &ReadError{Kind: Internal, Detail: fmt.Sprintf("failed to read headers: %v", err)}
		}

		block.WriteString(line)

		if strings.HasSuffix(block.String(), "\r\n\r\n") {
			return block.String(), nil
		}
	}
}

// parseHeaders parses the full header block: a mandatory Content-Length and
// an optional Content-Type, in either order, then the blank-line terminator.
// Header tokens are case-sensitive.
func parseHeaders(block string) (headers, error) {
	lines := strings.Split(block, "\r\n")

	// The terminator leaves two trailing empty segments.
	if len(lines) < 3 || lines[len(lines)-1] != "" || lines[len(lines)-2] != "" {
		return headers{}, &ReadError{Kind: MalformedHeaders}
	}

	hdrs := headers{contentLength: -1, contentType: defaultType()}
	seenType := false

	for _, line := range lines[:len(lines)-2] {
		switch {
		case strings.HasPrefix(line, contentLengthPrefix):
			if hdrs.contentLength >= 0 {
				return headers{}, &ReadError{Kind: MalformedHeaders}
			}

			length, err := parseContentLength(strings.TrimPrefix(line, contentLengthPrefix))
			if err != nil {
				return headers{}, &ReadError{Kind: MalformedHeaders}
			}

			hdrs.contentLength = length
		case strings.HasPrefix(line, contentTypePrefix):
			if seenType {
				return headers{}, &ReadError{Kind: MalformedHeaders}
			}

			ct, err := parseContentType(strings.TrimPrefix(line, contentTypePrefix))
			if err != nil {
				return headers{}, &ReadError{Kind: MalformedHeaders}
			}

			hdrs.contentType = ct
			seenType = true
		default:
			return headers{}, &ReadError{Kind: MalformedHeaders}
		}
	}

	if hdrs.contentLength < 0 {
		return headers{}, &ReadError{Kind: MalformedHeaders}
	}

	return hdrs, nil
}

func parseContentLength(value string) (int, error) {
	length, err := strconv.ParseUint(value, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid content length %q: %w", value, err)
	}

	return int(length), nil
}

// parseContentType parses "<mime>; charset=<charset>".
func parseContentType(value string) (contentType, error) {
	mime, rest, found := strings.Cut(value, "; ")
	if !found || mime == "" {
		return contentType{}, errors.New("missing charset separator")
	}

	charset, ok := strings.CutPrefix(rest, "charset=")
	if !ok || charset == "" {
		return contentType{}, errors.New("missing charset")
	}

	return contentType{mime: mime, charset: charset}, nil
}

// decodeBody decodes the frame body, recovering a best-effort id for the
// error response when the body is not a valid message.
func decodeBody(body []byte) (protocol.Message, error) {
	msg, err := protocol.DecodeMessage(body)
	if err == nil {
		return msg, nil
	}

	id, recoverErr := protocol.RecoverID(body)
	if recoverErr != nil {
		return nil, &ReadError{Kind: InvalidMessage, ID: protocol.NullID(), Code: protocol.ParseError, Detail: err.Error()}
	}

	code := protocol.InvalidRequest
	if errors.Is(err, protocol.ErrMethodNotFound) {
		code = protocol.MethodNotFound
	}

	return nil, &ReadError{Kind: InvalidMessage, ID: id, Code: code, Detail: err.Error()}
}
