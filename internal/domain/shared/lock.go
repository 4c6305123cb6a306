package shared

import (
	"context"
	"time"
)

// UserLocker serializes state-changing operations for a single user.
// Outcome writes and recommendation cursor advancement must not interleave
// for the same user; different users never contend.
type UserLocker interface {
	// Lock blocks until the user's lock is held or ctx is done.
	// The returned func releases the lock and is safe to call once.
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// WithWaitTimeout bounds how long Lock waits on top of the caller's ctx.
// A zero or negative timeout returns l unchanged.
func WithWaitTimeout(l UserLocker, timeout time.Duration) UserLocker {
	if timeout <= 0 {
		return l
	}
	return &timeoutLocker{next: l, timeout: timeout}
}

type timeoutLocker struct {
	next    UserLocker
	timeout time.Duration
}

func (t *timeoutLocker) Lock(ctx context.Context, userID string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Lock(waitCtx, userID)
}
