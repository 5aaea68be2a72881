package watch

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports on-disk changes to the files backing open documents.
// Paths are added as documents open and removed as they close; each change
// to a watched file emits the document URI once on Events.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	log      zerolog.Logger

	mu   sync.Mutex
	uris map[string]string // path -> document URI

	eventCh    chan string
	shutdownCh chan struct{}
}

// Start creates a watcher with no paths under watch.
func Start(log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsnotify:   fw,
		log:        log,
		uris:       make(map[string]string),
		eventCh:    make(chan string),
		shutdownCh: make(chan struct{}),
	}

	go w.process()

	return w, nil
}

// Events emits the URI of a watched document each time its file changes.
func (w *Watcher) Events() <-chan string {
	return w.eventCh
}

// Add puts the file at path under watch, reporting changes as uri.
func (w *Watcher) Add(path, uri string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.fsnotify.Add(path); err != nil {
		return err
	}

	w.uris[path] = uri

	return nil
}

// Remove stops watching the file at path. Removing an unwatched path is a
// no-op.
func (w *Watcher) Remove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.uris[path]; !ok {
		return
	}

	delete(w.uris, path)

	if err := w.fsnotify.Remove(path); err != nil {
		w.log.Debug().Err(err).Str("path", path).Msg("failed to remove watch")
	}
}

// Shutdown stops the watcher and closes Events.
func (w *Watcher) Shutdown() {
	close(w.shutdownCh)
}

func (w *Watcher) process() {
	defer close(w.eventCh)
	defer w.fsnotify.Close()

	for {
		select {
		case <-w.shutdownCh:
			return
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}

			w.log.Warn().Err(err).Msg("file watcher error")
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.mu.Lock()
			uri, watched := w.uris[event.Name]
			w.mu.Unlock()

			if !watched {
				continue
			}

			select {
			case w.eventCh <- uri:
			case <-w.shutdownCh:
				return
			}
		}
	}
}
