package session

import (
	"maps"
	"slices"

	"github.com/aussiebroadwan/authsession/pkg/idx"
)

// SubscriptionID identifies a registered callback. IDs sort in registration
// order, which is also the delivery order.
type SubscriptionID string

// Subscribe registers fn to be called with the new identity (nil when signed
// out) after every committed change. fn may read from the coordinator but
// must not call Login, Logout or HandleCallback synchronously.
func (c *Coordinator) Subscribe(fn func(*Identity)) SubscriptionID {
	id := SubscriptionID(idx.New())

	c.subsMu.Lock()
	c.subs[id] = fn
	c.subsMu.Unlock()
	return id
}

func (c *Coordinator) Unsubscribe(id SubscriptionID) {
	c.subsMu.Lock()
	delete(c.subs, id)
	c.subsMu.Unlock()
}

// notify delivers the state committed as version. It is skipped when a newer
// commit exists, so subscribers never see an older state after a newer one.
func (c *Coordinator) notify(version uint64, identity *Identity) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if version <= c.delivered || version != c.version() {
		return
	}
	c.delivered = version

	c.subsMu.RLock()
	fns := maps.Clone(c.subs)
	c.subsMu.RUnlock()

	ids := slices.Sorted(maps.Keys(fns))
	for _, id := range ids {
		c.deliver(id, fns[id], identity)
	}
}

func (c *Coordinator) deliver(id SubscriptionID, fn func(*Identity), identity *Identity) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked", "subscription", id, "panic", r)
		}
	}()
	fn(identity)
}
