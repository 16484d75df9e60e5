// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/matthewpi/wwdrcheck/internal/wait"
)

// WatchOptions controls options for a [Watcher]. Changes to WatchOptions are
// ignored after being provided to a [Watcher].
type WatchOptions struct {
	// Debounce is the duration to wait before triggering a re-check, it's
	// purpose is to ensure that if multiple watched files are updated during
	// it's duration, that multiple checks are not triggered.
	Debounce time.Duration

	// Interval re-checks the certificate periodically even when no file
	// changes, zero disables periodic checks.
	Interval time.Duration

	// OnVerdict is called after every check.
	OnVerdict func(context.Context, Verdict)

	// Logger to use for the [Watcher] instance.
	Logger *slog.Logger
}

// Watcher watches a certificate and its issuer on disk and re-checks the
// revocation status of the certificate whenever either file changes.
type Watcher struct {
	checker *Checker
	options WatchOptions

	mx         sync.Mutex
	certPath   string
	issuerPath string

	verdict  atomic.Pointer[Verdict]
	debounce *debouncer

	fsWatcher *fsnotify.Watcher

	logger *slog.Logger
}

// NewWatcher creates a new [Watcher] performing checks with checker.
//
// After calling NewWatcher, you will want to configure it with
// Watcher.Reconfigure() and then run Watcher.Start().
func NewWatcher(checker *Checker, options WatchOptions) (*Watcher, error) {
	if checker == nil {
		return nil, errors.New("wwdrcheck: a checker is required")
	}
	d := options.Debounce
	if d < 10*time.Millisecond {
		d = 100 * time.Millisecond
	}
	w := &Watcher{
		checker:  checker,
		options:  options,
		logger:   options.Logger,
		debounce: newDebouncer(d),
	}
	if w.logger == nil {
		w.logger = checker.logger
	}

	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "wwdrcheck: failed to create fswatcher")
	}
	return w, nil
}

// Verdict returns the verdict of the latest check, or nil if no check has
// completed yet.
func (w *Watcher) Verdict() *Verdict {
	return w.verdict.Load()
}

// Reconfigure reconfigures the [Watcher] to watch the given `certPath` and
// `issuerPath`, checking the certificate straight away.
//
// The returned error only covers configuring the filesystem watcher, the
// outcome of the check itself is reported through Verdict and OnVerdict.
func (w *Watcher) Reconfigure(ctx context.Context, certPath, issuerPath string) error {
	w.check(ctx, certPath, issuerPath)

	// Configure the filesystem watcher based off the paths given, this will
	// ensure the paths are watched properly. If the paths are changed, this
	// will remove the old paths and start watching only the new ones.
	return w.configureFsWatcher(ctx, certPath, issuerPath)
}

// check runs a check and publishes its verdict.
func (w *Watcher) check(ctx context.Context, certPath, issuerPath string) {
	v := w.checker.CheckPEM(ctx, certPath, issuerPath)

	// We use swap, so we can display a helpful message if this is the first
	// verdict or if the status changed.
	prev := w.verdict.Swap(&v)
	switch {
	case prev == nil:
		w.logger.LogAttrs(ctx, slog.LevelInfo, "certificate checked", slog.String("cert_path", certPath), slog.String("status", v.Status))
	case prev.Status != v.Status:
		w.logger.LogAttrs(
			ctx,
			slog.LevelWarn,
			"certificate status changed",
			slog.String("cert_path", certPath),
			slog.String("from", prev.Status),
			slog.String("to", v.Status),
		)
	}

	if w.options.OnVerdict != nil {
		w.options.OnVerdict(ctx, v)
	}
}

// recheck checks the currently watched paths again.
func (w *Watcher) recheck(ctx context.Context) {
	certPath, issuerPath := w.paths()
	w.check(ctx, certPath, issuerPath)
}

// paths returns the paths currently being watched.
func (w *Watcher) paths() (certPath, issuerPath string) {
	w.mx.Lock()
	defer w.mx.Unlock()
	return w.certPath, w.issuerPath
}

// configureFsWatcher configures the fswatcher to watch the given paths. If any
// files are already being watched, they will be removed from the watcher before
// watching the newly provided paths.
func (w *Watcher) configureFsWatcher(ctx context.Context, certPath, issuerPath string) error {
	// Skip any configuration if the paths haven't changed.
	// (Initial configuration will have both paths empty)
	if cp, ip := w.paths(); cp == certPath && ip == issuerPath {
		return nil
	}

	// Stop watching any existing files.
	if wl := w.fsWatcher.WatchList(); len(wl) > 0 {
		if err := w.forPaths(ctx, w.fsWatcher.Remove, wl...); err != nil {
			return err
		}
	}

	// Start watching the new files. The issuer is optional.
	paths := []string{certPath}
	if issuerPath != "" {
		paths = append(paths, issuerPath)
	}
	if err := w.forPaths(ctx, w.fsWatcher.Add, paths...); err != nil {
		return err
	}

	// Update the paths stored on the struct, these are used to detect if the
	// paths we are watching have changed to avoid unnecessarily reconfiguring
	// the filesystem watcher.
	w.mx.Lock()
	w.certPath = certPath
	w.issuerPath = issuerPath
	w.mx.Unlock()

	return nil
}

// forPaths is used to consistently do actions with paths and the watcher.
//
// Its job is to handle inconsistency with paths that may be in the process of
// being added or removed from the filesystem and may cause errors if we try
// to add or remove from the watcher.
//
// Paths still pending are retried every second until a timeout is reached.
func (w *Watcher) forPaths(ctx context.Context, fn func(string) error, paths ...string) error {
	pending := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		pending[p] = struct{}{}
	}

	var watchErr error
	err := wait.PollUntilContextTimeout(
		ctx,
		1*time.Second,
		10*time.Second,
		true,
		func(_ context.Context) (done bool, err error) {
			for p := range pending {
				if err := fn(p); err != nil {
					watchErr = err
					// We want to keep trying, so don't return the error.
					return false, nil //nolint:nilerr
				}
				// We've successfully done what we needed to do with the path,
				// remove it from the set.
				delete(pending, p)
			}
			return true, nil
		},
	)
	if err != nil {
		return errors.Join(err, watchErr)
	}
	return nil
}

// Start starts listening for fsnotify events and re-checks the certificate
// when necessary. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if w.fsWatcher == nil {
		return errors.New("wwdrcheck: watcher was not created with NewWatcher")
	}

	// Close the filesystem watcher whenever the context is canceled.
	defer w.fsWatcher.Close()
	defer w.debounce.stop()

	var tick <-chan time.Time
	if w.options.Interval > 0 {
		ticker := time.NewTicker(w.options.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Run the watcher, blocks until context is cancelled or until the
	// filesystem watcher is closed.
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			w.recheck(ctx)
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.LogAttrs(ctx, slog.LevelError, "an error occurred while watching files", slog.Any("err", err))
		}
	}
}

// handleEvent handles incoming fsnotify events to detect when we need to
// re-check the watched certificate.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Filter operations that may modify the file's content.
	switch {
	case event.Op.Has(fsnotify.Create):
	case event.Op.Has(fsnotify.Write):
	case event.Op.Has(fsnotify.Remove):
	default:
		// Explicitly ignore all other event types.
		return
	}

	// If the file was removed, re-watch it.
	if event.Op.Has(fsnotify.Remove) {
		// The handles a case where a file is deleted, then replaced with new
		// content.
		if err := w.fsWatcher.Add(event.Name); err != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "failed to re-watch file", slog.Any("err", err))
		}
	}

	// Debounce the check to prevent multiple back-to-back events from
	// triggering more than one check in a small time-frame.
	w.debounce.add(func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.LogAttrs(ctx, slog.LevelInfo, "re-checking certificate...", slog.String("file", event.Name))
		w.recheck(ctx)
	})
}
