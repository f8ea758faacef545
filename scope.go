package rendercache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pr "github.com/unkn0wn-root/rendercache/provider"
	"github.com/unkn0wn-root/rendercache/provider/lru"
)

// Scope is the lifetime and sharing boundary of cached entries.
type Scope int

const (
	// ScopeShared lives for the process and is shared by every caller.
	ScopeShared Scope = iota
	// ScopeSession lives from session start to session end.
	ScopeSession
	// ScopeExternal lives in a persistent store and is invalidated explicitly.
	ScopeExternal
)

func (s Scope) String() string {
	switch s {
	case ScopeShared:
		return "shared"
	case ScopeSession:
		return "session"
	case ScopeExternal:
		return "external"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope parses "shared" (or "app"), "session" and "external" (or "persistent").
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shared", "app", "":
		return ScopeShared, nil
	case "session":
		return ScopeSession, nil
	case "external", "persistent":
		return ScopeExternal, nil
	}
	return 0, fmt.Errorf("rendercache: unknown scope %q", s)
}

// ProviderFactory builds a fresh store for a scoped cache instance.
type ProviderFactory func() (pr.Provider, error)

// DefaultProviderFactory returns a bounded LRU with default limits.
func DefaultProviderFactory() (pr.Provider, error) {
	return lru.New(lru.Config{}), nil
}

var errScopedStores = errors.New("rendercache: scoped caches own their stores; set a ProviderFactory instead of Provider/GenStore")

func checkScoped[A any](opts Options[A]) error {
	if opts.Provider != nil || opts.GenStore != nil {
		return errScopedStores
	}
	if opts.Namespace == "" {
		return ErrNoNamespace
	}
	_, err := resolveCodec(opts.Codec)
	return err
}

// Shared is an explicit process-wide cache handle. The cache is built on the
// first Get and destroyed by Teardown; a later Get builds a fresh one.
type Shared[A any] struct {
	opts    Options[A]
	factory ProviderFactory

	mu sync.Mutex
	c  Cache[A]
}

func NewShared[A any](opts Options[A], factory ProviderFactory) (*Shared[A], error) {
	if err := checkScoped(opts); err != nil {
		return nil, err
	}
	opts.Scope = ScopeShared
	return &Shared[A]{opts: opts, factory: coalesceFactory(factory)}, nil
}

func (s *Shared[A]) Get() (Cache[A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return s.c, nil
	}
	p, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("rendercache: shared provider: %w", err)
	}
	opts := s.opts
	opts.Provider = p
	c, err := New(opts)
	if err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	s.c = c
	return c, nil
}

// Teardown closes the current cache and drops every entry it held.
func (s *Shared[A]) Teardown(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close(ctx)
}

// Sessions manages one isolated cache per session id. Each session has its
// own provider, its own generations and namespace "<ns>:session:<id>".
type Sessions[A any] struct {
	opts    Options[A]
	factory ProviderFactory

	mu     sync.Mutex
	m      map[string]Cache[A]
	closed bool
}

func NewSessions[A any](opts Options[A], factory ProviderFactory) (*Sessions[A], error) {
	if err := checkScoped(opts); err != nil {
		return nil, err
	}
	opts.Scope = ScopeSession
	return &Sessions[A]{opts: opts, factory: coalesceFactory(factory), m: make(map[string]Cache[A])}, nil
}

// Open returns the session's cache, creating it on first use.
func (s *Sessions[A]) Open(id string) (Cache[A], error) {
	if id == "" {
		return nil, errors.New("rendercache: empty session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if c, ok := s.m[id]; ok {
		return c, nil
	}
	p, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("rendercache: session provider: %w", err)
	}
	opts := s.opts
	opts.Namespace = s.opts.Namespace + ":session:" + id
	opts.Provider = p
	c, err := New(opts)
	if err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	s.m[id] = c
	return c, nil
}

// Get returns the session's cache if it is open.
func (s *Sessions[A]) Get(id string) (Cache[A], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	return c, ok
}

// End destroys the session's cache. Unknown ids are a no-op.
func (s *Sessions[A]) End(ctx context.Context, id string) error {
	s.mu.Lock()
	c, ok := s.m[id]
	delete(s.m, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(ctx)
}

func (s *Sessions[A]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Close ends every session. Open fails afterwards.
func (s *Sessions[A]) Close(ctx context.Context) error {
	s.mu.Lock()
	all := s.m
	s.m = make(map[string]Cache[A])
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for id, c := range all {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func coalesceFactory(f ProviderFactory) ProviderFactory {
	if f == nil {
		return DefaultProviderFactory
	}
	return f
}
