// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tenant

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches rapid editor saves into one reload.
const defaultDebounce = 250 * time.Millisecond

// ReloadHandler is called after the store has re-read the profile
// directory. Typical use: invalidate the prompt cache.
type ReloadHandler func()

// Watcher reloads a FileStore when its directory changes.
//
// # Description
//
// fsnotify events are debounced; a burst of writes from an editor or a
// config deploy triggers a single reload. Reload failures are logged
// and the previous profile set stays live.
type Watcher struct {
	store    *FileStore
	onReload ReloadHandler
	debounce time.Duration

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over store's directory. onReload may be
// nil.
func NewWatcher(store *FileStore, onReload ReloadHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(store.dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		store:    store,
		onReload: onReload,
		debounce: defaultDebounce,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Returns immediately; watching runs until Stop
// or context cancellation.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	reload := func() {
		timer = nil
		timerC = nil
		if err := w.store.Load(); err != nil {
			slog.Error("Tenant profile reload failed, keeping previous set", "error", err)
			return
		}
		if w.onReload != nil {
			w.onReload()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isProfileFile(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Tenant directory watch error", "error", err)
		}
	}
}
