// Package sloghooks reports keyedcache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/keyedcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CorruptEvery uint64
	ChangedEvery uint64
	BackendEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	corruptCtr atomic.Uint64
	changedCtr atomic.Uint64
	backendCtr atomic.Uint64
}

var _ keyedcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if k == "" {
		return ""
	}
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

func (h *Hooks) CorruptEntry(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("keyedcache.corrupt_entry",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) DependencyChanged(storageKey string) {
	if h.l == nil || !sample(h.opts.ChangedEvery, &h.changedCtr) {
		return
	}
	h.l.Debug("keyedcache.dependency_changed",
		"key", h.redact(storageKey))
}

func (h *Hooks) ProviderSetRejected(storageKey, op string) {
	if h.l == nil {
		return
	}
	h.l.Warn("keyedcache.provider_set_rejected",
		"key", h.redact(storageKey),
		"op", op)
}

func (h *Hooks) BackendError(op, storageKey string, err error) {
	if h.l == nil || !sample(h.opts.BackendEvery, &h.backendCtr) {
		return
	}
	h.l.Warn("keyedcache.backend_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) WriteFailed(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("keyedcache.write_failed",
		"key", h.redact(storageKey))
}

func (h *Hooks) GenBumpError(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("keyedcache.gen_bump_error",
		"tag", tag,
		"err", err)
}
