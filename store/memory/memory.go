// Package memory provides an in-process implementation of httpguard's
// CacheStore, dedup.Store, and ratelimit.Store, backed by plain maps
// guarded by a mutex, mirroring the teacher's in-memory map cache idiom.
// It has no eviction policy beyond TTL expiry and is meant for single-
// process deployments and tests, not as a production-scale cache.
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haldane/httpguard/ratelimit"
)

type entry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// Cache is an in-memory httpguard.CacheStore.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache returns an empty in-memory cache store.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.data, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds float64) error {
	var expires time.Time
	if ttlSeconds > 0 {
		expires = time.Now().Add(time.Duration(ttlSeconds * float64(time.Second)))
	}
	c.mu.Lock()
	c.entries[key] = entry{data: value, expires: expires}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// job is the bookkeeping record for a single in-flight or settled dedup key.
type job struct {
	done  chan struct{}
	value []byte
	ok    bool
}

// Dedup is an in-memory dedup.Store. Registration (which job owns a key,
// and its settled value once done) is a plain guarded map, but the actual
// blocking join of concurrent waiters onto one in-flight job is delegated
// to golang.org/x/sync/singleflight: WaitFor calls become Group.DoChan
// calls keyed by the dedup key, so however many callers join a key, only
// one of them actually blocks on the job's done channel and the rest share
// its result via the Group's own broadcast, each still honoring its own
// ctx independently.
type Dedup struct {
	mu    sync.Mutex
	group singleflight.Group
	jobs  map[string]*job
}

// NewDedup returns an empty in-memory dedup store.
func NewDedup() *Dedup {
	return &Dedup{jobs: make(map[string]*job)}
}

func (d *Dedup) IsInProgress(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[key]
	if !ok {
		return false, nil
	}
	select {
	case <-j.done:
		return false, nil
	default:
		return true, nil
	}
}

func (d *Dedup) RegisterOrJoin(_ context.Context, key string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	j, ok := d.jobs[key]
	if ok {
		select {
		case <-j.done:
			// previous job already settled; this caller becomes the new owner
		default:
			return key, false, nil
		}
	}

	j = &job{done: make(chan struct{})}
	d.jobs[key] = j
	return key, true, nil
}

// Register is the non-atomic fallback; the in-memory store's RegisterOrJoin
// is already atomic so Register degrades to a plain registration that never
// reports ownership to its caller.
func (d *Dedup) Register(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.jobs[key]; !ok {
		d.jobs[key] = &job{done: make(chan struct{})}
	}
	return nil
}

func (d *Dedup) Complete(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[key]
	if !ok {
		return nil
	}
	j.value = value
	j.ok = true
	close(j.done)
	return nil
}

func (d *Dedup) Fail(_ context.Context, key string, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[key]
	if !ok {
		return nil
	}
	j.ok = false
	close(j.done)
	return nil
}

func (d *Dedup) WaitFor(ctx context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	j, ok := d.jobs[key]
	d.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	resultCh := d.group.DoChan(key, func() (any, error) {
		<-j.done
		return j, nil
	})

	select {
	case r := <-resultCh:
		settled := r.Val.(*job)
		if !settled.ok {
			return nil, false, nil
		}
		return settled.value, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// window holds one resource's recent admission timestamps, pruned by age,
// the in-process analogue of the sliding-window counters the ratelimit
// package otherwise expects a shared backing store to persist.
type window struct {
	mu    sync.Mutex
	times []time.Time
}

// RateLimit is an in-memory ratelimit.Store counting admissions within a
// trailing window per resource, whose length is set by NewRateLimit.
type RateLimit struct {
	mu        sync.Mutex
	windows   map[string]*window
	limit     int
	winLength time.Duration
}

// NewRateLimit returns a ratelimit.Store admitting up to limit requests
// per resource within a trailing window of the given length.
func NewRateLimit(limit int, window time.Duration) *RateLimit {
	return &RateLimit{
		windows:   make(map[string]*window),
		limit:     limit,
		winLength: window,
	}
}

func (r *RateLimit) windowFor(resource string) *window {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[resource]
	if !ok {
		w = &window{}
		r.windows[resource] = w
	}
	return w
}

func (r *RateLimit) prune(w *window, now time.Time) {
	cutoff := now.Add(-r.winLength)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept
}

func (r *RateLimit) CanProceed(_ context.Context, resource string, _ ratelimit.Priority) (bool, error) {
	w := r.windowFor(resource)
	w.mu.Lock()
	defer w.mu.Unlock()
	r.prune(w, time.Now())
	return len(w.times) < r.limit, nil
}

func (r *RateLimit) Record(_ context.Context, resource string, _ ratelimit.Priority) error {
	w := r.windowFor(resource)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	r.prune(w, now)
	w.times = append(w.times, now)
	return nil
}

func (r *RateLimit) GetWaitTime(_ context.Context, resource string, _ ratelimit.Priority) (time.Duration, error) {
	w := r.windowFor(resource)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	r.prune(w, now)
	if len(w.times) < r.limit {
		return 0, nil
	}
	oldest := w.times[0]
	wait := r.winLength - now.Sub(oldest)
	if wait < 0 {
		wait = 0
	}
	return wait, nil
}
