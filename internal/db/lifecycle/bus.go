// Package lifecycle publishes before/after events around entity operations.
// Subscribers are keyed by (model UID, action) and run in registration
// order; a subscriber failure aborts the publishing operation and surfaces
// to its caller unless the bus is configured for isolation.
package lifecycle

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Action identifies a lifecycle event around one repository operation
type Action string

const (
	BeforeCreate   Action = "beforeCreate"
	AfterCreate    Action = "afterCreate"
	BeforeFindOne  Action = "beforeFindOne"
	AfterFindOne   Action = "afterFindOne"
	BeforeFindMany Action = "beforeFindMany"
	AfterFindMany  Action = "afterFindMany"
	BeforeCount    Action = "beforeCount"
	AfterCount     Action = "afterCount"
	BeforeUpdate   Action = "beforeUpdate"
	AfterUpdate    Action = "afterUpdate"
	BeforeDelete   Action = "beforeDelete"
	AfterDelete    Action = "afterDelete"
)

// Event carries the context of one lifecycle notification. State is shared
// between the before and after events of a single operation so subscribers
// can hand values forward.
type Event struct {
	UID    string
	Action Action
	Data   map[string]interface{} // input record or filter shape, when applicable
	Result interface{}            // resolved result, set on after events
	State  map[string]interface{}
}

// Subscriber handles one lifecycle event
type Subscriber func(ctx context.Context, ev *Event) error

// Option configures a Bus
type Option func(*Bus)

// WithIsolation makes subscriber failures log-and-continue instead of
// aborting the triggering operation
func WithIsolation(log *zap.Logger) Option {
	return func(b *Bus) {
		b.isolate = true
		b.log = log
	}
}

type subKey struct {
	uid    string
	action Action
}

type subscription struct {
	id uint64
	fn Subscriber
}

// Bus is the publish/subscribe mechanism for lifecycle events
type Bus struct {
	mu      sync.RWMutex
	subs    map[subKey][]subscription
	nextID  uint64
	isolate bool
	log     *zap.Logger
}

// NewBus creates a new lifecycle bus
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[subKey][]subscription),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn for the (uid, action) pair and returns its
// unsubscribe function
func (b *Bus) Subscribe(uid string, action Action, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	key := subKey{uid: uid, action: action}
	b.subs[key] = append(b.subs[key], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[key]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[key] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes the subscribers for the event's (uid, action) in
// registration order. The first subscriber error stops the run and is
// returned, unless the bus was built with isolation.
func (b *Bus) Publish(ctx context.Context, ev *Event) error {
	b.mu.RLock()
	subs := b.subs[subKey{uid: ev.UID, action: ev.Action}]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		if err := sub.fn(ctx, ev); err != nil {
			if b.isolate {
				b.log.Warn("lifecycle subscriber failed",
					zap.String("uid", ev.UID),
					zap.String("action", string(ev.Action)),
					zap.Error(err))
				continue
			}
			return err
		}
	}
	return nil
}

// Clear deregisters all subscribers. Called during teardown.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[subKey][]subscription)
}
