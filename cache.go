package rendercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/rendercache/codec"
	gen "github.com/unkn0wn-root/rendercache/genstore"
	"github.com/unkn0wn-root/rendercache/internal/keys"
	"github.com/unkn0wn-root/rendercache/internal/wire"
	pr "github.com/unkn0wn-root/rendercache/provider"
	"github.com/unkn0wn-root/rendercache/provider/lru"
)

type cache[A any] struct {
	ns             string
	scope          Scope
	provider       pr.Provider
	codec          codec.Codec[A]
	sizing         SizingPolicy
	gen            gen.GenStore
	log            Logger
	hooks          Hooks
	enabled        bool
	strict         bool
	dedupe         bool
	ttl            time.Duration
	computeSetCost SetCostFunc
	sem            *semaphore.Weighted // nil => unbounded
	now            func() time.Time

	sf     singleflight.Group
	stats  counters
	closed atomic.Bool
}

// resolveCodec falls back to codec.Bytes when A is []byte.
func resolveCodec[A any](c codec.Codec[A]) (codec.Codec[A], error) {
	if c != nil {
		return c, nil
	}
	if bc, ok := any(codec.Bytes{}).(codec.Codec[A]); ok {
		return bc, nil
	}
	return nil, ErrNoCodec
}

func newCache[A any](opts Options[A]) (*cache[A], error) {
	if opts.Namespace == "" {
		return nil, ErrNoNamespace
	}
	cd, err := resolveCodec(opts.Codec)
	if err != nil {
		return nil, err
	}
	if opts.Scope == ScopeExternal && opts.Provider == nil {
		return nil, ErrNoProvider
	}
	if opts.MaxConcurrentRenders < 0 {
		return nil, fmt.Errorf("rendercache: negative MaxConcurrentRenders %d", opts.MaxConcurrentRenders)
	}

	c := &cache[A]{
		ns:      opts.Namespace,
		scope:   opts.Scope,
		codec:   cd,
		enabled: !opts.Disabled,
		strict:  opts.StrictStore,
		dedupe:  !opts.DisableCoalescing,
		ttl:     opts.TTL,
		now:     time.Now,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.sizing = coalesce[SizingPolicy](opts.Sizing, DefaultSizing)

	if opts.Provider != nil {
		c.provider = opts.Provider
	} else {
		c.provider = lru.New(lru.Config{})
	}

	if opts.ComputeSetCost != nil {
		c.computeSetCost = opts.ComputeSetCost
	} else {
		c.computeSetCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	if opts.GenStore != nil {
		c.gen = opts.GenStore
	} else if c.scope == ScopeExternal {
		// generations persist next to the entries they guard
		c.gen = gen.NewProviderGenStore(c.provider)
	} else {
		// no pruning: a pruned counter resets to 0 and could revive old entries
		c.gen = gen.NewLocalGenStore(0, 0)
	}

	if opts.MaxConcurrentRenders > 0 {
		c.sem = semaphore.NewWeighted(opts.MaxConcurrentRenders)
	}

	return c, nil
}

func (c *cache[A]) Scope() Scope  { return c.scope }
func (c *cache[A]) Enabled() bool { return c.enabled }
func (c *cache[A]) Stats() Stats  { return c.stats.snapshot() }

func (c *cache[A]) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Close gen store first (best effort)
	if c.gen != nil {
		_ = c.gen.Close(ctx)
	}
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[A]) KeyFor(fp Fingerprint, width, height float64) (Key, error) {
	rk, err := c.resolve(fp, width, height)
	if err != nil {
		return Key{}, err
	}
	return rk.key, nil
}

func (c *cache[A]) GetOrRender(ctx context.Context, fp Fingerprint, width, height float64, r Renderer[A]) (Entry[A], error) {
	var zero Entry[A]
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if r == nil {
		return zero, ErrNoRenderer
	}
	rk, err := c.resolve(fp, width, height)
	if err != nil {
		return zero, err
	}
	if !c.enabled {
		return c.render(ctx, rk, r)
	}

	gens, err := c.snapshot(ctx, rk.genKeys)
	if err != nil {
		if err := c.unavailable(ctx, "snapshot", err); err != nil {
			return zero, err
		}
		return c.render(ctx, rk, r)
	}

	e, ok, err := c.lookup(ctx, rk, gens)
	if err != nil {
		if err := c.unavailable(ctx, "get", err); err != nil {
			return zero, err
		}
		return c.render(ctx, rk, r)
	}
	if ok {
		c.stats.hits.Add(1)
		c.hooks.Hit(rk.key)
		return e, nil
	}

	c.stats.misses.Add(1)
	c.hooks.Miss(rk.key)

	if !c.dedupe {
		return c.renderAndStore(ctx, rk, r)
	}

	// The leader renders detached from its caller's cancellation so that one
	// abandoned request does not fail every waiter.
	var led bool
	ch := c.sf.DoChan(rk.storageKey, func() (any, error) {
		led = true
		return c.renderAndStore(context.WithoutCancel(ctx), rk, r)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if !led {
			c.stats.coalesced.Add(1)
			c.hooks.Coalesced(rk.key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		e := res.Val.(Entry[A])
		if !led {
			e.Value = detach(e.Value)
		}
		return e, nil
	}
}

func (c *cache[A]) Peek(ctx context.Context, fp Fingerprint, width, height float64) (Entry[A], bool, error) {
	var zero Entry[A]
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	rk, err := c.resolve(fp, width, height)
	if err != nil {
		return zero, false, err
	}
	if !c.enabled {
		return zero, false, nil
	}
	gens, err := c.snapshot(ctx, rk.genKeys)
	if err != nil {
		return zero, false, c.unavailable(ctx, "snapshot", err)
	}
	e, ok, err := c.lookup(ctx, rk, gens)
	if err != nil {
		return zero, false, c.unavailable(ctx, "get", err)
	}
	if ok {
		c.stats.hits.Add(1)
		c.hooks.Hit(rk.key)
	}
	return e, ok, nil
}

func (c *cache[A]) Invalidate(ctx context.Context, prefix Fingerprint) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	prefixes, err := keys.Prefixes(prefix)
	if err != nil {
		return &InvalidKeyError{Err: err}
	}
	gk := c.genKey(prefixes[len(prefixes)-1])
	newGen, err := c.gen.Bump(ctx, gk)
	if err != nil {
		c.hooks.GenBumpError(gk, err)
		c.log.Error("gen bump error", Fields{"prefix": prefix, "err": err})
		return &InvalidateError{Prefix: prefix, BumpErr: err}
	}
	c.log.Debug("invalidated prefix (bumped gen)", Fields{"prefix": prefix, "newGen": newGen})
	return nil
}

func (c *cache[A]) InvalidateAll(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	prefixes, err := keys.Prefixes(nil)
	if err != nil {
		return &InvalidKeyError{Err: err}
	}
	gk := c.genKey(prefixes[0])
	_, bumpErr := c.gen.Bump(ctx, gk)
	if bumpErr != nil {
		c.hooks.GenBumpError(gk, bumpErr)
	}

	// only this namespace; other caches may share the provider
	var clearErr error
	cl, canClear := c.provider.(pr.PrefixClearer)
	if canClear {
		clearErr = cl.ClearPrefix(ctx, c.entryPrefix())
	}

	switch {
	case bumpErr != nil && (!canClear || clearErr != nil):
		c.log.Error("invalidate all failed", Fields{"ns": c.ns, "bumpErr": bumpErr, "clearErr": clearErr})
		return &InvalidateError{BumpErr: bumpErr, ClearErr: clearErr}
	case clearErr != nil:
		// entries are already stale by generation
		c.log.Warn("provider clear failed after invalidate all", Fields{"ns": c.ns, "err": clearErr})
	}
	c.log.Debug("invalidated all", Fields{"ns": c.ns, "cleared": canClear && clearErr == nil})
	return nil
}

// detach copies byte-slice artifacts so coalesced callers never share a
// backing array with the leader. Other types are returned as is.
func detach[A any](v A) A {
	if b, ok := any(v).([]byte); ok {
		return any(bytes.Clone(b)).(A)
	}
	return v
}

// snapshot returns the generation of every prefix in order.
func (c *cache[A]) snapshot(ctx context.Context, genKeys []string) ([]uint64, error) {
	m, err := c.gen.SnapshotMany(ctx, genKeys)
	if err != nil {
		c.hooks.GenSnapshotError(len(genKeys), err)
		return nil, err
	}
	out := make([]uint64, len(genKeys))
	for i, k := range genKeys {
		out[i] = m[k]
	}
	return out, nil
}

// lookup reads and validates the stored entry. Invalid entries are deleted
// and reported as a miss. Only provider errors are returned.
func (c *cache[A]) lookup(ctx context.Context, rk resolved, gens []uint64) (Entry[A], bool, error) {
	var zero Entry[A]
	raw, ok, err := c.provider.Get(ctx, rk.storageKey)
	if err != nil || !ok {
		return zero, false, err
	}
	we, err := wire.DecodeEntry(raw)
	if err != nil {
		c.selfHeal(ctx, rk.storageKey, "corrupt")
		return zero, false, nil
	}
	// validate generations
	if !wire.SameGens(we.Gens, gens) {
		c.selfHeal(ctx, rk.storageKey, "stale")
		return zero, false, nil
	}
	v, err := c.codec.Decode(we.Payload)
	if err != nil {
		c.selfHeal(ctx, rk.storageKey, "value_decode")
		return zero, false, nil
	}
	return Entry[A]{
		Value:     v,
		Key:       rk.key,
		Width:     int(we.Width),
		Height:    int(we.Height),
		CreatedAt: we.CreatedAt,
		Cached:    true,
	}, true, nil
}

func (c *cache[A]) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = c.provider.Del(ctx, storageKey)
	c.stats.selfHeals.Add(1)
	c.hooks.SelfHeal(storageKey, reason)
	c.log.Debug("self-heal", Fields{"key": storageKey, "reason": reason})
}

// renderAndStore is the single-flight leader body: re-check, render, CAS write.
func (c *cache[A]) renderAndStore(ctx context.Context, rk resolved, r Renderer[A]) (Entry[A], error) {
	gens, err := c.snapshot(ctx, rk.genKeys)
	if err != nil {
		if err := c.unavailable(ctx, "snapshot", err); err != nil {
			return Entry[A]{}, err
		}
		return c.render(ctx, rk, r)
	}

	// a previous leader may have stored it between our miss and now
	if e, ok, err := c.lookup(ctx, rk, gens); err == nil && ok {
		return e, nil
	}

	e, err := c.render(ctx, rk, r)
	if err != nil {
		return e, err
	}
	c.store(ctx, rk, e, gens)
	return e, nil
}

func (c *cache[A]) render(ctx context.Context, rk resolved, r Renderer[A]) (Entry[A], error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return Entry[A]{}, err
		}
		defer c.sem.Release(1)
	}

	start := c.now()
	v, err := r.Render(ctx, RenderContext{
		Key:             rk.key,
		Width:           rk.key.Width,
		Height:          rk.key.Height,
		RequestedWidth:  rk.reqW,
		RequestedHeight: rk.reqH,
	})
	if err != nil {
		c.stats.renderErrors.Add(1)
		c.hooks.RenderFailed(rk.key, err)
		c.log.Debug("render failed", Fields{"key": rk.key.String(), "err": err})
		return Entry[A]{}, &RenderError{Key: rk.key, Err: err}
	}
	c.stats.renders.Add(1)
	c.hooks.Rendered(rk.key, c.now().Sub(start))

	return Entry[A]{
		Value:     v,
		Key:       rk.key,
		Width:     rk.key.Width,
		Height:    rk.key.Height,
		CreatedAt: start,
	}, nil
}

// store writes e iff the prefix generations still equal gens. Failures are
// logged only: the artifact is valid and already on its way to the caller.
func (c *cache[A]) store(ctx context.Context, rk resolved, e Entry[A], gens []uint64) {
	now, err := c.snapshot(ctx, rk.genKeys)
	if err != nil {
		_ = c.unavailable(ctx, "snapshot", err)
		return
	}
	if !wire.SameGens(now, gens) {
		// generation moved; skip stale write
		c.stats.staleWrites.Add(1)
		c.hooks.StaleWriteSkipped(rk.key)
		c.log.Debug("store skipped (gen mismatch)", Fields{"key": rk.key.String()})
		return
	}

	payload, err := c.codec.Encode(e.Value)
	if err != nil {
		c.log.Error("artifact encode failed; not stored", Fields{"key": rk.key.String(), "err": err})
		return
	}
	raw, err := wire.EncodeEntry(wire.Entry{
		Gens:      gens,
		Width:     uint32(e.Width),
		Height:    uint32(e.Height),
		CreatedAt: e.CreatedAt,
		Payload:   payload,
	})
	if err != nil {
		c.log.Error("entry encode failed; not stored", Fields{"key": rk.key.String(), "err": err})
		return
	}

	ok, err := c.provider.Set(ctx, rk.storageKey, raw, c.computeSetCost(rk.storageKey, raw), c.ttl)
	if err != nil {
		_ = c.unavailable(ctx, "set", err)
		return
	}
	if !ok {
		c.hooks.ProviderSetRejected(rk.storageKey)
		c.log.Debug("Set rejected by provider (pressure)", Fields{"key": rk.storageKey})
	}
}

// unavailable records a store failure. It returns nil when the cache should
// degrade to uncached rendering, or the error to hand back to the caller.
func (c *cache[A]) unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	c.stats.unavailable.Add(1)
	c.hooks.StoreUnavailable(op, err)
	c.log.Warn("store unavailable", Fields{"ns": c.ns, "op": op, "err": err, "strict": c.strict})
	if c.strict {
		return &CacheUnavailableError{Op: op, Err: err}
	}
	return nil
}
