package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sarsapar1lla/cfn-lsp/internal/protocol"
)

const contentTypeHeader = "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n"

// WriteErrorKind separates failures to serialize a message from failures to
// put bytes on the channel.
type WriteErrorKind int

const (
	SerialiseFailure WriteErrorKind = iota
	IOFailure
)

// WriteError describes a failed frame write.
type WriteError struct {
	Kind WriteErrorKind
	err  error
}

func (e *WriteError) Error() string {
	if e.Kind == SerialiseFailure {
		return fmt.Sprintf("failed to serialize message: %v", e.err)
	}

	return fmt.Sprintf("failed to write frame: %v", e.err)
}

func (e *WriteError) Unwrap() error { return e.err }

// Fatal reports whether the connection is unusable after this error.
func (e *WriteError) Fatal() bool { return e.Kind == IOFailure }

// Writer serializes messages into frames. Each frame is assembled in full
// and written in a single call so a failure never leaves a partial frame on
// the channel. Safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write frames and writes a response.
func (w *Writer) Write(res protocol.Response) error {
	return w.writeFrame(res)
}

// WriteNotification frames and writes a server-initiated notification.
func (w *Writer) WriteNotification(n protocol.Notification) error {
	return w.writeFrame(n)
}

func (w *Writer) writeFrame(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return &WriteError{Kind: SerialiseFailure, err: err}
	}

	var frame bytes.Buffer

	fmt.Fprintf(&frame, "Content-Length: %d\r\n", len(body))
	frame.WriteString(contentTypeHeader)
	frame.WriteString("\r\n")
	frame.Write(body)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(frame.Bytes()); err != nil {
		return &WriteError{Kind: IOFailure, err: err}
	}

	if flusher, ok := w.w.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return &WriteError{Kind: IOFailure, err: err}
		}
	}

	return nil
}
