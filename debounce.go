// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

package wwdrcheck

import (
	"sync"
	"time"
)

// debouncer delays a function call until it stops being requested for a
// given duration. When requested with different functions, the last one
// wins.
type debouncer struct {
	mx    sync.Mutex
	after time.Duration
	timer *time.Timer
}

// newDebouncer returns a debouncer waiting for after.
func newDebouncer(after time.Duration) *debouncer {
	return &debouncer{after: after}
}

// add schedules f, replacing any call that has not fired yet.
func (d *debouncer) add(f func()) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.after, f)
}

// stop cancels a pending call, if any.
func (d *debouncer) stop() {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
