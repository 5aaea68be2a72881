// Command cfn-lsp is a language server for AWS CloudFormation templates.
// It speaks LSP over stdin/out or a single TCP connection and produces
// diagnostics by invoking cfn-lint.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/sarsapar1lla/cfn-lsp/internal/channel"
	"github.com/sarsapar1lla/cfn-lsp/internal/frame"
	"github.com/sarsapar1lla/cfn-lsp/internal/lint"
	"github.com/sarsapar1lla/cfn-lsp/internal/server"
	"github.com/sarsapar1lla/cfn-lsp/internal/watch"
)

type config struct {
	mode            string
	port            int
	clientProcessID string
	debug           bool
	logFile         string
	watch           bool
	patterns        []string
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closeLog()

	os.Exit(run(cfg, log))
}

func run(cfg config, log zerolog.Logger) int {
	var (
		in  io.Reader
		out io.Writer
		err error
	)

	switch cfg.mode {
	case "stdio":
		in, out = channel.Stdio(log)
	case "socket":
		in, out, err = channel.Socket(cfg.port, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to open socket")

			return 1
		}
	}

	selector, err := watch.NewSelector(cfg.patterns...)
	if err != nil {
		log.Error().Err(err).Msg("invalid document patterns")

		return 1
	}

	session := server.New(
		lint.NewCfnLint(log),
		server.WithLogger(log),
		server.WithSelector(selector),
		server.WithClientProcessID(cfg.clientProcessID),
	)

	reader := frame.NewReader(in, func(format string, args ...any) {
		log.Warn().Msgf(format, args...)
	})
	writer := frame.NewWriter(out)

	var watcher *watch.Watcher

	if cfg.watch {
		watcher, err = watch.Start(log)
		if err != nil {
			log.Error().Err(err).Msg("failed to start file watcher")

			return 1
		}
		defer watcher.Shutdown()

		go republish(watcher, session, writer, log)
	}

	return serve(reader, writer, session, watcher, log)
}

// republish pushes fresh diagnostics whenever a watched file changes on
// disk outside the client.
func republish(watcher *watch.Watcher, session *server.Session, writer *frame.Writer, log zerolog.Logger) {
	for uri := range watcher.Events() {
		notification, ok := session.PublishFor(uri)
		if !ok {
			continue
		}

		if err := writer.WriteNotification(notification); err != nil {
			log.Error().Err(err).Str("uri", uri).Msg("failed to publish diagnostics")
		}
	}
}

func parseArgs(args []string) (config, error) {
	if len(args) == 0 {
		return config{}, errors.New("expected a subcommand: stdio or socket")
	}

	cfg := config{mode: args[0]}

	flags := pflag.NewFlagSet("cfn-lsp", pflag.ContinueOnError)
	flags.SetNormalizeFunc(normalizeFlag)
	flags.StringVar(&cfg.clientProcessID, "client-process-id", "", "LSP client process id")
	flags.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flags.StringVar(&cfg.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.BoolVar(&cfg.watch, "watch", false, "republish diagnostics when open documents change on disk")
	flags.StringSliceVar(&cfg.patterns, "pattern", nil, "glob patterns selecting lintable documents")
	flags.IntVar(&cfg.port, "port", 0, "port to listen on (socket mode)")

	if err := flags.Parse(args[1:]); err != nil {
		return config{}, err
	}

	switch cfg.mode {
	case "stdio":
	case "socket":
		if cfg.port == 0 {
			return config{}, errors.New("socket mode requires --port")
		}
	default:
		return config{}, fmt.Errorf("unknown subcommand %q: expected stdio or socket", cfg.mode)
	}

	return cfg, nil
}

// normalizeFlag accepts the camelCase spellings some LSP clients pass,
// e.g. --clientProcessId.
func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "clientProcessId":
		return pflag.NormalizedName("client-process-id")
	default:
		return pflag.NormalizedName(strings.ToLower(name[:1]) + name[1:])
	}
}

// newLogger builds the process logger. Stdout carries the protocol, so logs
// go to stderr or a file.
func newLogger(cfg config) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if cfg.debug {
		level = zerolog.DebugLevel
	}

	var (
		out      io.Writer
		closeLog = func() {}
	)

	if cfg.logFile != "" {
		file, err := os.OpenFile(cfg.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		out = file
		closeLog = func() { file.Close() }
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	}

	log := zerolog.New(out).Level(level).With().Timestamp().Str("server", server.Name).Logger()

	return log, closeLog, nil
}
