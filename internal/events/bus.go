// Package events provides the in-process bus that carries workspace
// mutations to every open window. Stores publish after each committed
// mutation and each window's directory subscribes.
package events

import "sync"

// Kind identifies an event.
type Kind string

// Event kinds.
const (
	WorkspaceUpdated Kind = "workspace-updated"
	WorkspaceRemoved Kind = "workspace-removed"
	BookmarksUpdated Kind = "workspace-bookmarks-updated"
	SyncFinished     Kind = "sync-finished"
)

// Event describes one committed change. WorkspaceIDs lists every workspace
// the change touched; it may be empty for wholesale changes.
type Event struct {
	Kind         Kind
	WorkspaceIDs []string
	// Origin is an opaque id of the publisher, so subscribers can skip
	// their own events.
	Origin string
}

// Handler receives events. Handlers run synchronously on the publishing
// goroutine and must not publish on the same bus.
type Handler func(Event)

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it. The
// returned function is idempotent.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every current subscriber. The subscriber list is
// snapshotted first, so handlers may subscribe or unsubscribe freely.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs))
	for i, s := range b.subs {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
