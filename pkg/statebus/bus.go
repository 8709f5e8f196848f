// Package statebus is a synchronous, single-writer-many-reader fact store.
// Components publish facts as key/value pairs; the rendering layer subscribes
// to change notifications. There is no batching: every Set call produces at
// most one notification round.
package statebus

import (
	"reflect"
	"sort"
	"sync"
)

// Well-known fact keys.
const (
	KeyServices     = "services"
	KeyConnection   = "connection"
	KeyLastUpdate   = "last-update"
	KeyNotification = "notification"
	KeyJobs         = "jobs"
	KeyConsole      = "console"
	KeyHistory      = "history"
)

// Callback receives the sorted list of changed keys and a snapshot copy of the
// full state. The snapshot is the callback's to keep; mutating it does not
// affect the bus.
type Callback func(changed []string, state map[string]any)

// Subscription is the handle returned by Subscribe. Unsubscribe detaches the
// callback; it is safe to call more than once.
type Subscription struct {
	bus *Bus
	id  uint64
}

func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.unsubscribe(s.id)
	}
}

type subscriber struct {
	id uint64
	fn Callback
}

// Bus holds the current fact state and the registered subscribers.
type Bus struct {
	mu     sync.Mutex
	state  map[string]any
	subs   []subscriber
	nextID uint64
}

func New() *Bus {
	return &Bus{state: make(map[string]any)}
}

// Set applies every key of update whose value differs from the stored value
// and, if anything changed, synchronously invokes each subscriber exactly once
// with the changed keys. Values are compared by deep equality so republished
// but identical maps do not fan out.
func (b *Bus) Set(update map[string]any) {
	b.mu.Lock()
	var changed []string
	for key, value := range update {
		if current, ok := b.state[key]; ok && reflect.DeepEqual(current, value) {
			continue
		}
		b.state[key] = value
		changed = append(changed, key)
	}
	if len(changed) == 0 {
		b.mu.Unlock()
		return
	}
	sort.Strings(changed)

	view := make(map[string]any, len(b.state))
	for k, v := range b.state {
		view[k] = v
	}
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may call Get or Set.
	for _, s := range subs {
		s.fn(changed, view)
	}
}

// Get returns the current value for key, or nil when the key has never been
// set. It never blocks on subscribers.
func (b *Bus) Get(key string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state[key]
}

// Subscribe registers a callback for future change notifications, in
// registration order relative to other subscribers.
func (b *Bus) Subscribe(fn Callback) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return &Subscription{bus: b, id: b.nextID}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
