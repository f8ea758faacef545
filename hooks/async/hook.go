// Package asynchook moves hook work off the render path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	    HitEvery:      0,  // do not log hits
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	rc, _ := rendercache.New(rendercache.Options[[]byte]{
//	    Namespace: "plots",
//	    Scope:     rendercache.ScopeExternal,
//	    Provider:  provider,
//	    GenStore:  gens,
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rendercache"
)

// Hooks forwards events to inner on a bounded queue. When the queue is full
// events are dropped and counted.
type Hooks struct {
	inner   rendercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ rendercache.Hooks = (*Hooks)(nil)

func New(inner rendercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k rendercache.Key)       { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k rendercache.Key)      { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) Coalesced(k rendercache.Key) { h.try(func() { h.inner.Coalesced(k) }) }
func (h *Hooks) Rendered(k rendercache.Key, d time.Duration) {
	h.try(func() { h.inner.Rendered(k, d) })
}
func (h *Hooks) RenderFailed(k rendercache.Key, err error) {
	h.try(func() { h.inner.RenderFailed(k, err) })
}
func (h *Hooks) SelfHeal(k, r string)         { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) StoreUnavailable(op string, err error) {
	h.try(func() { h.inner.StoreUnavailable(op, err) })
}
func (h *Hooks) GenSnapshotError(n int, err error) {
	h.try(func() { h.inner.GenSnapshotError(n, err) })
}
func (h *Hooks) GenBumpError(k string, err error) { h.try(func() { h.inner.GenBumpError(k, err) }) }
func (h *Hooks) StaleWriteSkipped(k rendercache.Key) {
	h.try(func() { h.inner.StaleWriteSkipped(k) })
}
