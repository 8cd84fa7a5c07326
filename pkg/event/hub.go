// Package event implements a small typed publish/subscribe hub.
//
// Each component declares a closed set of event types sharing one kind
// enumeration and exposes a Hub over them. Listeners are grouped by kind,
// a kind may have any number of listeners and removal is idempotent.
package event

import (
	"sync"
	"sync/atomic"
)

// Kinded is anything that knows its own event kind.
type Kinded[K comparable] interface{ Kind() K }

// Handle identifies one subscription.
type Handle uint64

var handles atomic.Uint64

type listener[E any] struct {
	id Handle
	fn func(E)
}

// Hub fans out events to the listeners registered for their kind.
// The zero value is ready to use.
type Hub[K comparable, E Kinded[K]] struct {
	mu        sync.RWMutex
	listeners map[K][]listener[E]
	index     map[Handle]K
}

// On registers fn for events of the kind k.
func (h *Hub[K, E]) On(k K, fn func(E)) Handle {
	id := Handle(handles.Add(1))
	h.mu.Lock()
	if h.listeners == nil {
		h.listeners = make(map[K][]listener[E])
		h.index = make(map[Handle]K)
	}
	h.listeners[k] = append(h.listeners[k], listener[E]{id: id, fn: fn})
	h.index[id] = k
	h.mu.Unlock()
	return id
}

// Off removes the subscription, unknown handles are ignored.
func (h *Hub[K, E]) Off(id Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.index[id]
	if !ok {
		return
	}
	delete(h.index, id)
	ls := h.listeners[k]
	for i := range ls {
		if ls[i].id == id {
			// copy so that concurrent Emit snapshots stay intact
			next := make([]listener[E], 0, len(ls)-1)
			next = append(next, ls[:i]...)
			h.listeners[k] = append(next, ls[i+1:]...)
			break
		}
	}
	if len(h.listeners[k]) == 0 {
		delete(h.listeners, k)
	}
}

// Emit calls every listener of the event's kind synchronously in
// the caller's goroutine.
func (h *Hub[K, E]) Emit(e E) {
	h.mu.RLock()
	ls := h.listeners[e.Kind()]
	h.mu.RUnlock()
	for _, l := range ls {
		l.fn(e)
	}
}

// Len returns the number of listeners of the kind k.
func (h *Hub[K, E]) Len(k K) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[k])
}

// Clear drops all subscriptions.
func (h *Hub[K, E]) Clear() {
	h.mu.Lock()
	h.listeners, h.index = nil, nil
	h.mu.Unlock()
}
