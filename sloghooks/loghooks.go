// Package sloghooks implements rendercache.Hooks on log/slog with sampling
// for the high-volume events and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rendercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	// Hits and misses are silent unless set; 1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Renders slower than this are logged at Info; 0 logs every render at Debug.
	SlowRender time.Duration
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
}

var _ rendercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

// optIn is sample for events that are off by default.
func optIn(n uint64, ctr *atomic.Uint64) bool {
	return n != 0 && sample(n, ctr)
}

func (h *Hooks) Hit(k rendercache.Key) {
	if h.l == nil || !optIn(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("rendercache.hit", "key", h.redact(k.String()))
}

func (h *Hooks) Miss(k rendercache.Key) {
	if h.l == nil || !optIn(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("rendercache.miss", "key", h.redact(k.String()))
}

func (h *Hooks) Rendered(k rendercache.Key, d time.Duration) {
	if h.l == nil {
		return
	}
	if h.opts.SlowRender > 0 {
		if d < h.opts.SlowRender {
			return
		}
		h.l.Info("rendercache.slow_render",
			"key", h.redact(k.String()),
			"w", k.Width,
			"h", k.Height,
			"took", d)
		return
	}
	h.l.Debug("rendercache.rendered",
		"key", h.redact(k.String()),
		"took", d)
}

func (h *Hooks) RenderFailed(k rendercache.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rendercache.render_failed",
		"key", h.redact(k.String()),
		"err", err)
}

func (h *Hooks) Coalesced(rendercache.Key) {}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("rendercache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("rendercache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) StoreUnavailable(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("rendercache.store_unavailable",
		"op", op,
		"err", err)
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rendercache.gen_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) GenBumpError(genKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rendercache.gen_bump_error",
		"key", h.redact(genKey),
		"err", err)
}

func (h *Hooks) StaleWriteSkipped(k rendercache.Key) {
	if h.l == nil {
		return
	}
	h.l.Debug("rendercache.stale_write_skipped",
		"key", h.redact(k.String()))
}
