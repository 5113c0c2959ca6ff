package relaywire

import (
	"sync"

	"github.com/chainrelay/chainrelay/core"
)

// registry tracks every live connection so an accepted event can be fanned
// out to other clients' open subscriptions.
type registry struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
}

func newRegistry() *registry {
	return &registry{conns: make(map[*conn]struct{})}
}

func (r *registry) add(c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

func (r *registry) remove(c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// broadcast sends ev to every subscription, on every connection, whose
// filter matches it.
func (r *registry) broadcast(ev *core.Event) {
	r.mu.RLock()
	targets := make([]*conn, 0, len(r.conns))
	for c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.forEachSub(func(id string, filters []clientFilter) {
			for _, f := range filters {
				if matches(f, ev) {
					c.send(encodeEvent(id, ev))
					return
				}
			}
		})
	}
}
