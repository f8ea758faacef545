package rendercache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	Hit(key Key)
	Miss(key Key)

	// A render finished successfully; d is the renderer's wall time.
	Rendered(key Key, d time.Duration)
	RenderFailed(key Key, err error)

	// A caller shared the result of another caller's in-flight render.
	Coalesced(key Key)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "stale", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// A provider or gen store call failed; op as in CacheUnavailableError.
	StoreUnavailable(op string, err error)

	// GenStore errors (snapshot or bump).
	// count is the number of prefixes involved.
	GenSnapshotError(count int, err error)
	GenBumpError(genKey string, err error)

	// A render was not stored because a generation moved while it ran.
	StaleWriteSkipped(key Key)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(Key)                        {}
func (NopHooks) Miss(Key)                       {}
func (NopHooks) Rendered(Key, time.Duration)    {}
func (NopHooks) RenderFailed(Key, error)        {}
func (NopHooks) Coalesced(Key)                  {}
func (NopHooks) SelfHeal(string, string)        {}
func (NopHooks) ProviderSetRejected(string)     {}
func (NopHooks) StoreUnavailable(string, error) {}
func (NopHooks) GenSnapshotError(int, error)    {}
func (NopHooks) GenBumpError(string, error)     {}
func (NopHooks) StaleWriteSkipped(Key)          {}
