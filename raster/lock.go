package raster

import (
	"sync"
	"time"
)

// Lock guards the process wide driver registry. Every open and close of a
// data source happens while holding it.
type Lock struct {
	mu      sync.Mutex
	obsMu   sync.RWMutex
	observe func(wait time.Duration)
}

// DriverLock is the lock shared by all raster sources of the process.
var DriverLock = &Lock{}

// Acquire blocks until the lock is held and returns the function that
// releases it. The release function is safe to call more than once.
func (l *Lock) Acquire() func() {
	t0 := time.Now()
	l.mu.Lock()

	l.obsMu.RLock()
	observe := l.observe
	l.obsMu.RUnlock()
	if observe != nil {
		observe(time.Since(t0))
	}

	var once sync.Once
	return func() {
		once.Do(l.mu.Unlock)
	}
}

// Do runs fn while holding the lock.
func (l *Lock) Do(fn func() error) error {
	release := l.Acquire()
	defer release()
	return fn()
}

// Observe registers a callback receiving the time spent waiting for the
// lock on each acquisition.
func (l *Lock) Observe(fn func(wait time.Duration)) {
	l.obsMu.Lock()
	l.observe = fn
	l.obsMu.Unlock()
}
