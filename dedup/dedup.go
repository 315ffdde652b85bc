// Package dedup implements the single-flight request coalescer of §4.8: at
// most one in-flight fetch per fingerprint process-wide, with every other
// caller for that fingerprint joining the in-flight attempt instead of
// starting its own.
package dedup

import (
	"context"
	"errors"
)

// ErrUpstreamFailed is surfaced to a joiner when the owner's attempt failed.
// Per the design decision recorded for spec §9's open question, joiners do
// not re-contend for ownership on failure; they propagate this error.
var ErrUpstreamFailed = errors.New("dedup: upstream attempt failed")

// Store is the external dedup backend contract from §6.
type Store interface {
	// WaitFor blocks until key's in-flight job settles, returning the
	// completed value, or ok=false if there is nothing in flight or the
	// job failed.
	WaitFor(ctx context.Context, key string) (value []byte, ok bool, err error)

	// RegisterOrJoin atomically creates a pending job for key if absent,
	// reporting isOwner=true for whichever caller created it.
	RegisterOrJoin(ctx context.Context, key string) (jobID string, isOwner bool, err error)

	// Register is the non-atomic fallback for stores that cannot offer
	// RegisterOrJoin atomically; callers using it must accept the weaker
	// guarantee documented in §5.
	Register(ctx context.Context, key string) error

	// Complete marks key's job as completed with value. It is idempotent:
	// completing an already-settled job is a no-op.
	Complete(ctx context.Context, key string, value []byte) error

	// Fail marks key's job as failed so joined waiters observe absence.
	Fail(ctx context.Context, key string, cause error) error

	// IsInProgress reports whether key currently has a pending job.
	IsInProgress(ctx context.Context, key string) (bool, error)
}

// Coordinator drives the owner/joiner protocol over a Store.
type Coordinator struct {
	store Store
}

// New builds a Coordinator over store.
func New(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Attempt is what the caller returns if it turns out to be the owner.
type Attempt func(ctx context.Context) ([]byte, error)

// Do implements the §4.8 sequence: short-circuit via WaitFor, then
// RegisterOrJoin; owners run attempt and settle the job, joiners wait for
// the owner and either receive its value or ErrUpstreamFailed.
func (c *Coordinator) Do(ctx context.Context, key string, attempt Attempt) ([]byte, error) {
	if value, ok, err := c.store.WaitFor(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return value, nil
	}

	jobID, isOwner, err := c.store.RegisterOrJoin(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = jobID

	if !isOwner {
		value, ok, err := c.store.WaitFor(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUpstreamFailed
		}
		return value, nil
	}

	value, err := attempt(ctx)
	if err != nil {
		if failErr := c.store.Fail(ctx, key, err); failErr != nil {
			return nil, errors.Join(err, failErr)
		}
		return nil, err
	}

	if err := c.store.Complete(ctx, key, value); err != nil {
		return nil, err
	}
	return value, nil
}
