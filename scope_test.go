package rendercache

import (
	"context"
	"errors"
	"testing"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

func TestParseScope(t *testing.T) {
	cases := map[string]Scope{
		"shared":     ScopeShared,
		"app":        ScopeShared,
		"Session":    ScopeSession,
		"external":   ScopeExternal,
		"persistent": ScopeExternal,
	}
	for in, want := range cases {
		got, err := ParseScope(in)
		if err != nil || got != want {
			t.Fatalf("ParseScope(%q) = %v, %v want %v", in, got, err, want)
		}
		if again, _ := ParseScope(got.String()); again != got {
			t.Fatalf("String round trip failed for %v", got)
		}
	}
	if _, err := ParseScope("galaxy"); err == nil {
		t.Fatalf("unknown scope accepted")
	}
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	ss, err := NewSessions(Options[[]byte]{Namespace: "plots"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ss.Close(ctx) })

	a, err := ss.Open("A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ss.Open("B")
	if err != nil {
		t.Fatal(err)
	}
	if a.Scope() != ScopeSession {
		t.Fatalf("scope=%v", a.Scope())
	}

	r := &counter{}
	mustGet(t, a, Of("carat", "price"), 400, 400, r)
	if _, ok, _ := b.Peek(ctx, Of("carat", "price"), 400, 400); ok {
		t.Fatalf("session B observed session A's entry")
	}
	mustGet(t, b, Of("carat", "price"), 400, 400, r)
	if r.calls() != 2 {
		t.Fatalf("calls=%d want 2", r.calls())
	}

	again, _ := ss.Open("A")
	if again != a {
		t.Fatalf("Open is not idempotent")
	}
	if _, ok, _ := again.Peek(ctx, Of("carat", "price"), 401, 400); !ok {
		t.Fatalf("session A lost its entry")
	}
}

func TestSessionEndDestroysEntries(t *testing.T) {
	ctx := context.Background()
	ss, err := NewSessions(Options[[]byte]{Namespace: "plots"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := ss.Open("A")
	r := &counter{}
	mustGet(t, a, Of("x"), 400, 400, r)

	if err := ss.End(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.GetOrRender(ctx, Of("x"), 400, 400, r); !errors.Is(err, ErrClosed) {
		t.Fatalf("ended session still usable: %v", err)
	}
	if _, ok := ss.Get("A"); ok || ss.Len() != 0 {
		t.Fatalf("session still registered")
	}

	a2, _ := ss.Open("A")
	mustGet(t, a2, Of("x"), 400, 400, r)
	if r.calls() != 2 {
		t.Fatalf("new session reused old entries: calls=%d", r.calls())
	}
	if err := ss.End(ctx, "nope"); err != nil {
		t.Fatalf("End of unknown session: %v", err)
	}

	if err := ss.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := ss.Open("C"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Open after Close: %v", err)
	}
}

func TestSessionsUseFactory(t *testing.T) {
	var made []*memProvider
	factory := func() (pr.Provider, error) {
		p := newMemProvider()
		made = append(made, p)
		return p, nil
	}
	ss, err := NewSessions(Options[[]byte]{Namespace: "plots"}, factory)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close(context.Background())

	a, _ := ss.Open("A")
	_, _ = ss.Open("B")
	mustGet(t, a, Of("x"), 400, 400, &counter{})

	if len(made) != 2 || made[0].len() != 1 || made[1].len() != 0 {
		t.Fatalf("factory providers not used per session")
	}
	k, _ := a.KeyFor(Of("x"), 400, 400)
	if !made[0].has("render:plots:session:A:" + k.String()) {
		t.Fatalf("session namespace not applied")
	}
}

func TestScopedRejectsExplicitStores(t *testing.T) {
	if _, err := NewSessions(Options[[]byte]{Namespace: "n", Provider: newMemProvider()}, nil); err == nil {
		t.Fatalf("Sessions accepted an explicit provider")
	}
	if _, err := NewShared(Options[[]byte]{Namespace: "n", GenStore: &failingGenStore{}}, nil); err == nil {
		t.Fatalf("Shared accepted an explicit gen store")
	}
	if _, err := NewShared(Options[int]{Namespace: "n"}, nil); !errors.Is(err, ErrNoCodec) {
		t.Fatalf("want ErrNoCodec, got %v", err)
	}
}

func TestSharedLifecycle(t *testing.T) {
	ctx := context.Background()
	sh, err := NewShared(Options[[]byte]{Namespace: "plots"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	c1, err := sh.Get()
	if err != nil {
		t.Fatal(err)
	}
	c2, _ := sh.Get()
	if c1 != c2 {
		t.Fatalf("Get returned different instances")
	}
	if c1.Scope() != ScopeShared {
		t.Fatalf("scope=%v", c1.Scope())
	}

	r := &counter{}
	mustGet(t, c1, Of("x"), 400, 400, r)
	if err := sh.Teardown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sh.Teardown(ctx); err != nil {
		t.Fatalf("second Teardown: %v", err)
	}

	c3, _ := sh.Get()
	if c3 == c1 {
		t.Fatalf("Get after Teardown returned the old cache")
	}
	mustGet(t, c3, Of("x"), 400, 400, r)
	if r.calls() != 2 {
		t.Fatalf("entries survived teardown: calls=%d", r.calls())
	}
	_ = sh.Teardown(ctx)
}
