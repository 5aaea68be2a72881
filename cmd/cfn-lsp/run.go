package main

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/sarsapar1lla/cfn-lsp/internal/frame"
	"github.com/sarsapar1lla/cfn-lsp/internal/protocol"
	"github.com/sarsapar1lla/cfn-lsp/internal/server"
	"github.com/sarsapar1lla/cfn-lsp/internal/watch"
)

// serve runs the read-dispatch-write cycle until the client sends exit or
// the connection fails. It returns the process exit code: handling is
// strictly sequential, one frame to completion at a time.
func serve(reader *frame.Reader, writer *frame.Writer, session *server.Session, watcher *watch.Watcher, log zerolog.Logger) int {
	for {
		msg, err := reader.Read()
		if err != nil {
			var readErr *frame.ReadError
			if !errors.As(err, &readErr) || readErr.Fatal() {
				log.Error().Err(err).Msg("connection failure")

				return 1
			}

			log.Warn().Err(err).Msg("rejecting unreadable message")

			if !write(writer, readErr.Response(), log) {
				return 1
			}

			continue
		}

		outcome := session.Handle(msg)

		if outcome.Response != nil {
			if !write(writer, outcome.Response, log) {
				return 1
			}
		}

		for _, notification := range outcome.Notifications {
			if err := writer.WriteNotification(notification); err != nil {
				if fatal(err) {
					log.Error().Err(err).Msg("connection failure")

					return 1
				}

				log.Error().Err(err).Msg("failed to write notification")
			}
		}

		if watcher != nil {
			syncWatches(watcher, outcome, log)
		}

		if outcome.Exit {
			return 0
		}
	}
}

// write sends a response, reporting false when the connection is lost.
// Serialization failures are logged and skipped; the next frame may still
// succeed.
func write(writer *frame.Writer, res protocol.Response, log zerolog.Logger) bool {
	err := writer.Write(res)
	if err == nil {
		return true
	}

	if fatal(err) {
		log.Error().Err(err).Msg("connection failure")

		return false
	}

	log.Error().Err(err).Msg("failed to serialize response")

	return true
}

func fatal(err error) bool {
	var writeErr *frame.WriteError

	return errors.As(err, &writeErr) && writeErr.Fatal()
}

// syncWatches mirrors document opens and closes into the file watcher.
func syncWatches(watcher *watch.Watcher, outcome server.Outcome, log zerolog.Logger) {
	for _, doc := range outcome.Opened {
		if err := watcher.Add(doc.Path, doc.URI); err != nil {
			log.Warn().Err(err).Str("path", doc.Path).Msg("failed to watch document")
		}
	}

	for _, path := range outcome.Closed {
		watcher.Remove(path)
	}
}
