package session

import (
	"sync"
	"sync/atomic"

	"livesync/core/reconcile"
)

// Publisher hands the latest snapshot to readers. Readers only ever see immutable
// snapshots; there is no mutable handle to the collection.
type Publisher struct {
	latest atomic.Pointer[reconcile.Snapshot]

	mu   sync.Mutex
	subs map[int]func(*reconcile.Snapshot)
	next int
}

// NewPublisher creates a publisher with no snapshot.
func NewPublisher() *Publisher {
	return &Publisher{subs: map[int]func(*reconcile.Snapshot){}}
}

// Latest returns the most recent snapshot, or nil before the first Initialize.
func (p *Publisher) Latest() *reconcile.Snapshot {
	return p.latest.Load()
}

// Publish stores snap and notifies subscribers. Publishing the snapshot that is
// already current is a no-op, so a change that altered nothing is not re-rendered.
// Subscribers run synchronously on the session goroutine and must not block.
func (p *Publisher) Publish(snap *reconcile.Snapshot) bool {
	if snap == nil || p.latest.Load() == snap {
		return false
	}
	p.latest.Store(snap)

	p.mu.Lock()
	fns := make([]func(*reconcile.Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return true
}

// Subscribe registers fn for every future snapshot. The returned func unsubscribes.
func (p *Publisher) Subscribe(fn func(*reconcile.Snapshot)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}
