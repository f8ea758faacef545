package rendercache

import "sync/atomic"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits         uint64
	Misses       uint64
	Renders      uint64 // successful renderer calls
	RenderErrors uint64
	Coalesced    uint64 // callers served by another caller's render
	SelfHeals    uint64 // entries dropped on read (corrupt, stale, undecodable)
	StaleWrites  uint64 // renders not stored because a generation moved
	Unavailable  uint64 // provider or gen store failures
}

type counters struct {
	hits, misses, renders, renderErrors atomic.Uint64
	coalesced, selfHeals, staleWrites   atomic.Uint64
	unavailable                         atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Renders:      c.renders.Load(),
		RenderErrors: c.renderErrors.Load(),
		Coalesced:    c.coalesced.Load(),
		SelfHeals:    c.selfHeals.Load(),
		StaleWrites:  c.staleWrites.Load(),
		Unavailable:  c.unavailable.Load(),
	}
}
