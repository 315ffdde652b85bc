package httpguard

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/haldane/httpguard/fingerprint"
)

// originIndex tracks which fingerprints were last written for each origin,
// so InvalidateOrigin can evict every entry belonging to it without
// requiring the CacheStore to support enumeration. It is process-local,
// best-effort bookkeeping: entries are only as complete as the writes this
// Client instance has observed.
type originIndex struct {
	mu   sync.Mutex
	byOrigin map[string]map[string]struct{}
}

func newOriginIndex() *originIndex {
	return &originIndex{byOrigin: make(map[string]map[string]struct{})}
}

func (idx *originIndex) record(origin, key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.byOrigin[origin]
	if !ok {
		set = make(map[string]struct{})
		idx.byOrigin[origin] = set
	}
	set[key] = struct{}{}
}

func (idx *originIndex) forget(origin, key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if set, ok := idx.byOrigin[origin]; ok {
		delete(set, key)
	}
}

// snapshot returns the keys currently tracked for origin without forgetting
// them; callers forget each key individually as it is actually deleted, so a
// failure partway through a deletion pass leaves the remaining keys tracked
// instead of orphaning them.
func (idx *originIndex) snapshot(origin string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set := idx.byOrigin[origin]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("httpguard: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("httpguard: url %q is not absolute", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Invalidate removes the cached entry for exactly this URL, per the
// §4-supplement explicit invalidation operation (no extra query params).
func (c *Client) Invalidate(ctx context.Context, rawURL string) error {
	if c.cache == nil {
		return nil
	}
	key, err := fingerprint.Fingerprint(rawURL, nil)
	if err != nil {
		return err
	}
	origin, err := originOf(rawURL)
	if err == nil && c.origins != nil {
		c.origins.forget(origin, key)
	}
	return c.cache.Delete(ctx, key)
}

// InvalidateOrigin removes every cached entry this Client has written for
// rawURL's origin (scheme+host), generalizing the teacher's
// invalidateCache/invalidateURI same-origin invalidation from "automatic
// after a write" to "explicit, caller-driven".
func (c *Client) InvalidateOrigin(ctx context.Context, rawURL string) error {
	if c.cache == nil || c.origins == nil {
		return nil
	}
	origin, err := originOf(rawURL)
	if err != nil {
		return err
	}
	for _, key := range c.origins.snapshot(origin) {
		if err := c.cache.Delete(ctx, key); err != nil {
			return err
		}
		c.origins.forget(origin, key)
	}
	return nil
}
