// Package watch re-applies configuration files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/host"
)

// DefaultDebounce is how long the watcher waits after the last change
// before applying.
const DefaultDebounce = 300 * time.Millisecond

// Applier is the part of *applier.Applier the watcher drives.
type Applier interface {
	Apply(ctx context.Context, h *host.Host, paths ...string) error
}

// Watcher applies a fixed list of files to a host whenever one of them is
// written or recreated. Events arriving within the debounce window are
// batched into a single apply. Unchanged content is skipped by the applier's
// digest check, so touching a file is harmless.
type Watcher struct {
	applier  Applier
	host     *host.Host
	paths    []string
	tracked  map[string]struct{}
	debounce time.Duration

	onApply func()
	onError func(error)
	ready   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// OnApply registers a callback run after every successful apply.
func OnApply(fn func()) Option {
	return func(w *Watcher) { w.onApply = fn }
}

// OnError registers a callback run with every apply or watch error.
func OnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// New creates a watcher for paths. Relative paths are made absolute against
// the working directory.
func New(a Applier, h *host.Host, paths []string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		applier:  a,
		host:     h,
		tracked:  make(map[string]struct{}, len(paths)),
		debounce: DefaultDebounce,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		if _, dup := w.tracked[abs]; dup {
			continue
		}
		w.tracked[abs] = struct{}{}
		w.paths = append(w.paths, abs)
	}
	return w, nil
}

// Ready is closed once the watches are installed.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches the parent directories of the tracked files until ctx is
// done. Directories are watched rather than files so editors that replace a
// file by renaming over it keep being observed.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	dirs := make(map[string]struct{})
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}
	logger.Info("Watching configuration files.", "files", len(w.paths), "directories", len(dirs))
	close(w.ready)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watcher.")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, ok := w.tracked[filepath.Clean(event.Name)]; !ok {
				continue
			}
			logger.Debug("Configuration file changed.", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.apply(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error.", "error", err)
			w.report(err)
		}
	}
}

func (w *Watcher) apply(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if err := w.applier.Apply(ctx, w.host, w.paths...); err != nil {
		logger.Error("Re-applying configuration failed.", "error", err)
		w.report(err)
		return
	}
	logger.Debug("Re-applied configuration.", "applied", len(w.host.AppliedHashes()))
	if w.onApply != nil {
		w.onApply()
	}
}

func (w *Watcher) report(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
