package load

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/syssam/strata/schema"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a schema directory whenever one of its files changes.
type Watcher struct {
	dir      string
	onLoad   func(*schema.Payload)
	logger   *zap.Logger
	debounce time.Duration

	fs   *fsnotify.Watcher
	once sync.Once
	done chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the settle delay between a change and the reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher watches dir and calls onLoad with every successfully reloaded
// payload. A reload that fails is logged and skipped.
func NewWatcher(dir string, onLoad func(*schema.Payload), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		dir:      dir,
		onLoad:   onLoad,
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("load: create file watcher: %w", err)
	}
	for _, path := range []string{dir, filepath.Join(dir, TypesDir), filepath.Join(dir, RelationshipTypesDir)} {
		if err := fsw.Add(path); err != nil {
			if path == dir {
				fsw.Close()
				return nil, fmt.Errorf("load: watch %s: %w", path, err)
			}
			w.logger.Debug("Not watching schema subdirectory", zap.String("path", path), zap.Error(err))
		}
	}
	w.fs = fsw
	return w, nil
}

// Run processes file events until ctx is done or Close is called. Reloads
// run one at a time on a single worker; changes made during a reload
// trigger one more reload once it finishes.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	reloads := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range reloads {
			w.reload(ctx)
		}
	}()
	defer func() {
		close(reloads)
		wg.Wait()
	}()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isYAML(event.Name) && filepath.Base(event.Name) != VersionFile {
				continue
			}
			w.logger.Debug("Schema file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			timer.Reset(w.debounce)
		case <-timer.C:
			select {
			case reloads <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Schema watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	payload, err := Dir(ctx, w.dir)
	if err != nil {
		w.logger.Warn("Schema reload failed, keeping previous schema",
			zap.String("dir", w.dir),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("Schema directory reloaded",
		zap.String("dir", w.dir),
		zap.String("version", payload.Version),
	)
	w.onLoad(payload)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}
