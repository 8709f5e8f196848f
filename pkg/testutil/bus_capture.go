package testutil

import (
	"sync"

	"fleetpulse/pkg/statebus"
)

// Notification is one captured bus callback invocation.
type Notification struct {
	Changed []string
	State   map[string]any
}

// CapturingSubscriber collects bus notifications for assertions in tests.
type CapturingSubscriber struct {
	mu            sync.Mutex
	Notifications []Notification
}

func NewCapturingSubscriber() *CapturingSubscriber { return &CapturingSubscriber{} }

// Callback is the function to pass to Bus.Subscribe.
func (c *CapturingSubscriber) Callback(changed []string, state map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications = append(c.Notifications, Notification{Changed: changed, State: state})
}

// Snapshot returns a copy of the captured notifications.
func (c *CapturingSubscriber) Snapshot() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.Notifications))
	copy(out, c.Notifications)
	return out
}

// ChangedKeys returns every changed key across all notifications, in order.
func (c *CapturingSubscriber) ChangedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	for _, n := range c.Notifications {
		keys = append(keys, n.Changed...)
	}
	return keys
}

// Saw reports whether any notification included the given key.
func (c *CapturingSubscriber) Saw(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.Notifications {
		for _, k := range n.Changed {
			if k == key {
				return true
			}
		}
	}
	return false
}

var _ statebus.Callback = NewCapturingSubscriber().Callback
