/*
locks.go - Per-resource locking

PURPOSE:
  "Check balance, then debit" and "check remaining, then append" are
  read-then-write sequences. Two requests interleaving between the read and
  the write can overdraw a wallet or over-fund a gift. The Locker serializes
  work per resource key (one key per user, one key per gift).

LOCK ORDER:
  Callers that hold more than one key must acquire them in a fixed order.
  The contribution path always takes the gift key first, then the user key.
  AcquireAll takes keys in the order given and releases everything it took
  if a later key fails.

TIMEOUTS:
  A lock that cannot be taken within Timeout fails with
  ErrConcurrentModification. That error is retryable: the caller retries the
  whole operation, never a single step.

KEYS:
  UserKey("u1")  -> "user:u1"
  GiftKey("g1")  -> "gift:g1"

SEE ALSO:
  - retry.go: RetryOnConflict
  - gifting/engine.go: gift -> user ordering
*/
package generic

import (
	"context"
	"fmt"
	"sync"
	"time"
)

func UserKey(id AccountID) string { return "user:" + string(id) }
func GiftKey(id string) string    { return "gift:" + id }

// Locker hands out mutually exclusive per-key locks.
type Locker struct {
	Timeout time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocker creates a Locker. A zero timeout waits until ctx is done.
func NewLocker(timeout time.Duration) *Locker {
	return &Locker{
		Timeout: timeout,
		locks:   make(map[string]*keyLock),
	}
}

// Acquire blocks until key is held, the timeout passes, or ctx is done.
// The returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	kl := l.ref(key)

	var timeout <-chan time.Time
	if l.Timeout > 0 {
		timer := time.NewTimer(l.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case kl.sem <- struct{}{}:
		return sync.OnceFunc(func() {
			<-kl.sem
			l.unref(key)
		}), nil
	case <-timeout:
		l.unref(key)
		return nil, fmt.Errorf("%w: lock %s not acquired within %s", ErrConcurrentModification, key, l.Timeout)
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	}
}

// AcquireAll takes every key in order. On failure nothing stays held.
func (l *Locker) AcquireAll(ctx context.Context, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range keys {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return sync.OnceFunc(releaseAll), nil
}

// Held returns the number of keys currently tracked (held or awaited).
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[key]
	if !ok {
		return
	}
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
