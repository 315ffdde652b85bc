// Package storetest exercises CacheStore, dedup.Store, and ratelimit.Store
// implementations against the common contract every backend must satisfy,
// mirroring the teacher's test.Cache helper.
package storetest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/haldane/httpguard"
	"github.com/haldane/httpguard/dedup"
	"github.com/haldane/httpguard/ratelimit"
)

// Cache exercises a httpguard.CacheStore implementation's Get/Set/Delete
// contract with a non-expiring entry; CacheTTL covers expiry.
func Cache(t *testing.T, store httpguard.CacheStore) {
	t.Helper()
	ctx := context.Background()
	key := "storetest-key"

	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before adding it")
	}

	val := []byte("some bytes")
	if err := store.Set(ctx, key, val, 0); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	retVal, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve an element we just added")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("retrieved a different value than what we put in")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("error deleting key: %v", err)
	}

	_, ok, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}
}

// CacheTTL exercises a store's handling of a short positive TTL. wait
// should exceed ttl by a safe margin for the backend's clock granularity.
func CacheTTL(t *testing.T, store httpguard.CacheStore, ttlSeconds float64, wait time.Duration) {
	t.Helper()
	ctx := context.Background()
	key := "storetest-ttl-key"

	if err := store.Set(ctx, key, []byte("expires soon"), ttlSeconds); err != nil {
		t.Fatalf("error setting key: %v", err)
	}
	time.Sleep(wait)

	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("key should have expired")
	}
}

// Dedup exercises a dedup.Store implementation's register/complete/fail
// protocol.
func Dedup(t *testing.T, store dedup.Store) {
	t.Helper()
	ctx := context.Background()
	key := "storetest-dedup-key"

	if inProgress, err := store.IsInProgress(ctx, key); err != nil {
		t.Fatalf("error checking in-progress: %v", err)
	} else if inProgress {
		t.Fatal("key reported in progress before registration")
	}

	_, isOwner, err := store.RegisterOrJoin(ctx, key)
	if err != nil {
		t.Fatalf("error registering: %v", err)
	}
	if !isOwner {
		t.Fatal("first registration should be the owner")
	}

	_, isOwner, err = store.RegisterOrJoin(ctx, key)
	if err != nil {
		t.Fatalf("error joining: %v", err)
	}
	if isOwner {
		t.Fatal("second registration should join, not own")
	}

	want := []byte("settled value")
	if err := store.Complete(ctx, key, want); err != nil {
		t.Fatalf("error completing: %v", err)
	}

	got, ok, err := store.WaitFor(ctx, key)
	if err != nil {
		t.Fatalf("error waiting: %v", err)
	}
	if !ok {
		t.Fatal("completed job should be visible to WaitFor")
	}
	if !bytes.Equal(got, want) {
		t.Fatal("WaitFor returned a different value than what was completed")
	}
}

// DedupFail exercises the failure path: a failed job must surface as
// absent to a waiter, never as an error.
func DedupFail(t *testing.T, store dedup.Store) {
	t.Helper()
	ctx := context.Background()
	key := "storetest-dedup-fail-key"

	if _, _, err := store.RegisterOrJoin(ctx, key); err != nil {
		t.Fatalf("error registering: %v", err)
	}
	if err := store.Fail(ctx, key, context.DeadlineExceeded); err != nil {
		t.Fatalf("error failing: %v", err)
	}

	_, ok, err := store.WaitFor(ctx, key)
	if err != nil {
		t.Fatalf("error waiting: %v", err)
	}
	if ok {
		t.Fatal("failed job should surface as absent")
	}
}

// RateLimit exercises a ratelimit.Store implementation's CanProceed/Record
// contract for a resource with a tight limit.
func RateLimit(t *testing.T, store ratelimit.Store, resource string, limit int) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < limit; i++ {
		ok, err := store.CanProceed(ctx, resource, ratelimit.PriorityUser)
		if err != nil {
			t.Fatalf("error checking admission: %v", err)
		}
		if !ok {
			t.Fatalf("admission %d/%d unexpectedly denied", i+1, limit)
		}
		if err := store.Record(ctx, resource, ratelimit.PriorityUser); err != nil {
			t.Fatalf("error recording admission: %v", err)
		}
	}

	ok, err := store.CanProceed(ctx, resource, ratelimit.PriorityUser)
	if err != nil {
		t.Fatalf("error checking admission: %v", err)
	}
	if ok {
		t.Fatal("admission should be denied once the limit is exhausted")
	}

	if wait, err := store.GetWaitTime(ctx, resource, ratelimit.PriorityUser); err != nil {
		t.Fatalf("error getting wait time: %v", err)
	} else if wait <= 0 {
		t.Fatal("exhausted resource should report a positive wait time")
	}
}
