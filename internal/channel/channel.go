// Package channel opens the byte stream the server speaks over: standard
// I/O, or a single accepted TCP connection.
package channel

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/rs/zerolog"
)

// Stdio returns the process's standard input and output as the transport.
func Stdio(log zerolog.Logger) (io.Reader, io.Writer) {
	log.Info().Msg("communicating via stdin/out")

	return os.Stdin, os.Stdout
}

// Socket listens on the loopback interface and blocks until exactly one
// client connects. The listener is closed once the connection is accepted;
// this server speaks to one client per process.
func Socket(port int, log zerolog.Logger) (io.Reader, io.Writer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	defer listener.Close()

	conn, err := listener.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to accept connection: %w", err)
	}

	log.Info().Stringer("address", conn.RemoteAddr()).Msg("accepted connection from client")

	return conn, conn, nil
}
