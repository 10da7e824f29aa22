package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the configuration file when it changes and hands the
// validated result to a callback.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config) error
	onError  func(error)
	logger   zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithErrorHandler is called when a changed file fails to load or validate.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

func NewWatcher(path string, onChange func(*Config) error, logger zerolog.Logger, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		onChange: onChange,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		debounce: time.Second,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the file's directory, since editors often replace files by
// renaming a temporary one over them.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.running = true

	w.logger.Info().Str("config_path", w.path).Msg("config watcher started")
	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug().Str("event", event.Op.String()).Msg("config file event")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("config watcher error")

		case <-w.stopCh:
			w.logger.Info().Msg("config watcher stopped")
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	configPath, err := filepath.Abs(w.path)
	if err != nil {
		return false
	}
	return eventPath == configPath
}

func (w *Watcher) reload() {
	start := time.Now()

	cfg, err := Load(w.path)
	if err == nil {
		err = w.onChange(cfg)
	}
	if err != nil {
		w.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("config reload failed")
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.logger.Info().Dur("duration", time.Since(start)).Msg("config reloaded")
}
