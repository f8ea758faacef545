// Package lru is a bounded in-process Provider evicting the least recently used
// entry first. It is the default store for shared and session scopes.
package lru

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

const (
	DefaultMaxEntries = 256
	DefaultMaxBytes   = 64 << 20
)

type Config struct {
	MaxEntries int   // 0 => DefaultMaxEntries, <0 => unbounded
	MaxBytes   int64 // 0 => DefaultMaxBytes, <0 => unbounded
	// OnEvict is called (outside the lock) for capacity evictions.
	OnEvict func(key string, size int64)
}

// Provider implements provider.Provider on a map plus a recency list.
type Provider struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	size       int64
	items      map[string]*list.Element
	order      *list.List // front = most recent
	onEvict    func(string, int64)
	now        func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry struct {
	key   string
	value []byte
	cost  int64
	exp   time.Time // zero => no TTL
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Clearer       = (*Provider)(nil)
	_ pr.PrefixClearer = (*Provider)(nil)
	_ pr.Lener         = (*Provider)(nil)
)

func New(cfg Config) *Provider {
	p := &Provider{
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		onEvict:    cfg.OnEvict,
		now:        time.Now,
	}
	if p.maxEntries == 0 {
		p.maxEntries = DefaultMaxEntries
	}
	if p.maxBytes == 0 {
		p.maxBytes = DefaultMaxBytes
	}
	return p
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	el, ok := p.items[key]
	if ok {
		e := el.Value.(*entry)
		if !e.exp.IsZero() && p.now().After(e.exp) {
			p.removeElement(el)
			ok = false
		} else {
			p.order.MoveToFront(el)
			p.mu.Unlock()
			p.hits.Add(1)
			return e.value, true, nil
		}
	}
	p.mu.Unlock()
	p.misses.Add(1)
	return nil, false, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	if p.maxBytes > 0 && cost > p.maxBytes {
		return false, nil // would evict everything and still not fit
	}
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}

	p.mu.Lock()
	if el, ok := p.items[key]; ok {
		e := el.Value.(*entry)
		p.size += cost - e.cost
		e.value, e.cost, e.exp = value, cost, exp
		p.order.MoveToFront(el)
	} else {
		p.items[key] = p.order.PushFront(&entry{key: key, value: value, cost: cost, exp: exp})
		p.size += cost
	}
	evicted := p.evict()
	p.mu.Unlock()

	if p.onEvict != nil {
		for _, e := range evicted {
			p.onEvict(e.key, e.cost)
		}
	}
	return true, nil
}

// evict trims from the back until both bounds hold. Caller holds mu.
func (p *Provider) evict() []*entry {
	var out []*entry
	for p.over() {
		el := p.order.Back()
		if el == nil {
			break
		}
		out = append(out, p.removeElement(el))
		p.evictions.Add(1)
	}
	return out
}

func (p *Provider) over() bool {
	if p.maxEntries > 0 && p.order.Len() > p.maxEntries {
		return true
	}
	return p.maxBytes > 0 && p.size > p.maxBytes
}

func (p *Provider) removeElement(el *list.Element) *entry {
	e := p.order.Remove(el).(*entry)
	delete(p.items, e.key)
	p.size -= e.cost
	return e
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	if el, ok := p.items[key]; ok {
		p.removeElement(el)
	}
	p.mu.Unlock()
	return nil
}

func (p *Provider) Clear(_ context.Context) error {
	p.mu.Lock()
	p.items = make(map[string]*list.Element)
	p.order.Init()
	p.size = 0
	p.mu.Unlock()
	return nil
}

func (p *Provider) ClearPrefix(_ context.Context, prefix string) error {
	p.mu.Lock()
	for k, el := range p.items {
		if strings.HasPrefix(k, prefix) {
			p.removeElement(el)
		}
	}
	p.mu.Unlock()
	return nil
}

func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Size returns the summed cost of all entries.
func (p *Provider) Size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Stats returns hit, miss and eviction counts.
func (p *Provider) Stats() (hits, misses, evictions int64) {
	return p.hits.Load(), p.misses.Load(), p.evictions.Load()
}

func (p *Provider) Close(ctx context.Context) error { return p.Clear(ctx) }
