package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarsapar1lla/cfn-lsp/internal/frame"
	"github.com/sarsapar1lla/cfn-lsp/internal/lint"
	"github.com/sarsapar1lla/cfn-lsp/internal/server"
)

// client drives the serve loop over in-memory pipes, standing in for an
// editor.
type client struct {
	t      *testing.T
	out    io.Writer
	in     *bufio.Reader
	donec  chan int
	closer func()
}

func newClient(t *testing.T, linter lint.Linter) *client {
	t.Helper()

	clientToServer, serverIn := io.Pipe()
	serverToClient, clientIn := io.Pipe()

	session := server.New(linter, server.WithLogger(zerolog.Nop()))
	reader := frame.NewReader(clientToServer, nil)
	writer := frame.NewWriter(clientIn)

	donec := make(chan int, 1)

	go func() {
		donec <- serve(reader, writer, session, nil, zerolog.Nop())
	}()

	return &client{
		t:     t,
		out:   serverIn,
		in:    bufio.NewReader(serverToClient),
		donec: donec,
		closer: func() {
			serverIn.Close()
			clientIn.Close()
		},
	}
}

// send frames and writes one raw JSON message.
func (c *client) send(body string) {
	c.t.Helper()

	if _, err := fmt.Fprintf(c.out, "Content-Length: %d\r\n\r\n%s", len(body), body); err != nil {
		c.t.Fatalf("unexpected error: %v", err)
	}
}

// sendRaw writes bytes with no framing, for malformed-input scenarios.
func (c *client) sendRaw(raw string) {
	c.t.Helper()

	if _, err := io.WriteString(c.out, raw); err != nil {
		c.t.Fatalf("unexpected error: %v", err)
	}
}

// receive reads one framed message body.
func (c *client) receive() string {
	c.t.Helper()

	lengthLine, err := c.in.ReadString('\n')
	if err != nil {
		c.t.Fatalf("unexpected error: %v", err)
	}

	length, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(lengthLine, "Content-Length: "), "\r\n"))
	if err != nil {
		c.t.Fatalf("invalid content length line %q: %v", lengthLine, err)
	}

	// Content-Type header then the blank-line terminator.
	if _, err := c.in.ReadString('\n'); err != nil {
		c.t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.in.ReadString('\n'); err != nil {
		c.t.Fatalf("unexpected error: %v", err)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.in, body); err != nil {
		c.t.Fatalf("unexpected error: %v", err)
	}

	return string(body)
}

// exitCode waits for the serve loop to return.
func (c *client) exitCode() int {
	c.t.Helper()

	select {
	case code := <-c.donec:
		return code
	case <-time.After(5 * time.Second):
		c.t.Fatal("serve loop did not terminate")

		return -1
	}
}

func TestServe_Lifecycle(t *testing.T) {
	t.Parallel()

	c := newClient(t, lint.Stub{})
	defer c.closer()

	// Requests before initialize are rejected without losing the session.
	c.send(`{"jsonrpc":"2.0","method":"shutdown","id":1}`)

	got := c.receive()
	expected := `{"jsonrpc":"2.0","error":{"code":-32002,"message":"Server not initialised","data":null},"id":1}`
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}

	c.send(`{"jsonrpc":"2.0","method":"initialize","params":{"capabilities":{}},"id":0}`)

	var initialise struct {
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
			Capabilities struct {
				PositionEncoding string `json:"positionEncoding"`
			} `json:"capabilities"`
		} `json:"result"`
		ID int `json:"id"`
	}

	if err := json.Unmarshal([]byte(c.receive()), &initialise); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if initialise.Result.ServerInfo.Name != server.Name {
		t.Errorf("expected server name %q, got %q", server.Name, initialise.Result.ServerInfo.Name)
	}

	if initialise.Result.Capabilities.PositionEncoding != "utf-16" {
		t.Errorf("expected utf-16 position encoding, got %q", initialise.Result.Capabilities.PositionEncoding)
	}

	if initialise.ID != 0 {
		t.Errorf("expected id 0, got %d", initialise.ID)
	}

	c.send(`{"jsonrpc":"2.0","method":"shutdown","id":2}`)

	got = c.receive()
	expected = `{"jsonrpc":"2.0","result":null,"id":2}`
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}

	// Every request after shutdown is rejected.
	c.send(`{"jsonrpc":"2.0","method":"initialize","params":{"capabilities":{}},"id":3}`)

	got = c.receive()
	expected = `{"jsonrpc":"2.0","error":{"code":-32600,"message":"Server has been shutdown","data":null},"id":3}`
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}

	// Exit terminates the loop with no further output.
	c.send(`{"jsonrpc":"2.0","method":"exit"}`)

	if code := c.exitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestServe_MalformedHeadersDoNotKillTheConnection(t *testing.T) {
	t.Parallel()

	c := newClient(t, lint.Stub{})
	defer c.closer()

	c.sendRaw("Bogus: 1\r\n\r\n")

	got := c.receive()
	expected := `{"jsonrpc":"2.0","error":{"code":-32600,"message":"Malformed headers","data":null},"id":null}`
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}

	// The connection is still usable afterwards.
	c.send(`{"jsonrpc":"2.0","method":"initialize","params":{"capabilities":{}},"id":0}`)
	if !strings.Contains(c.receive(), `"serverInfo"`) {
		t.Error("expected the connection to survive malformed headers")
	}

	c.send(`{"jsonrpc":"2.0","method":"exit"}`)

	if code := c.exitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestServe_BatchSharedState(t *testing.T) {
	t.Parallel()

	c := newClient(t, lint.Stub{})
	defer c.closer()

	c.send(`{"jsonrpc":"2.0","method":"initialize","params":{"capabilities":{}},"id":0}`)
	c.receive()

	c.send(`[{"jsonrpc":"2.0","method":"shutdown","id":"a"},{"jsonrpc":"2.0","method":"shutdown","id":"b"}]`)

	got := c.receive()
	expected := `[{"jsonrpc":"2.0","result":null,"id":"a"},` +
		`{"jsonrpc":"2.0","error":{"code":-32600,"message":"Server has been shutdown","data":null},"id":"b"}]`
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}

	c.send(`{"jsonrpc":"2.0","method":"exit"}`)

	if code := c.exitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestServe_ConnectionLossIsFatal(t *testing.T) {
	t.Parallel()

	c := newClient(t, lint.Stub{})

	c.closer() // drop both pipes

	if code := c.exitCode(); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}
