// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"sync"

	"github.com/rs/zerolog"
)

type namedObserver[T any] struct {
	name     string
	listener EventListener[T]
}

// observerTable is a registration table of named event observers.
// Observers are called in registration order; a panicking observer is
// logged and skipped.
type observerTable[T any] struct {
	mu      sync.Mutex
	entries []namedObserver[T]
	kind    string
	log     zerolog.Logger
}

func newObserverTable[T any](kind string, log zerolog.Logger) *observerTable[T] {
	return &observerTable[T]{kind: kind, log: log}
}

func (t *observerTable[T]) add(name string, l EventListener[T]) bool {
	if l == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.name == name {
			return false
		}
	}
	t.entries = append(t.entries, namedObserver[T]{name: name, listener: l})
	return true
}

func (t *observerTable[T]) remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.name == name {
			t.entries = append(t.entries[:i:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (t *observerTable[T]) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *observerTable[T]) snapshot() []namedObserver[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]namedObserver[T](nil), t.entries...)
}

// notify delivers event to every observer on the calling goroutine
func (t *observerTable[T]) notify(event T) {
	for _, e := range t.snapshot() {
		t.deliver(e, event)
	}
}

func (t *observerTable[T]) deliver(e namedObserver[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Warn().
				Str("observer", e.name).
				Str("kind", t.kind).
				Interface("panic", r).
				Msg("observer panicked")
		}
	}()
	e.listener.OnEvent(event)
}
