// Package locker provides per-account mutual exclusion for balance mutations.
//
// Callers that need several accounts must acquire them in ascending id order.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-petr/pet-wallet/internal/domain"
)

// Local is an in-process lock table keyed by account id.
type Local struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty lock table.
func NewLocal() *Local {
	return &Local{slots: make(map[int64]*slot)}
}

// Acquire blocks until the account lock is held or ctx is done.
// The returned release func is safe to call more than once.
func (l *Local) Acquire(ctx context.Context, accountID int64) (func(), error) {
	s := l.ref(accountID)

	select {
	case s.ch <- struct{}{}:
		var once sync.Once

		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(accountID, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(accountID, s)

		return nil, waitError(ctx, accountID)
	}
}

func (l *Local) ref(accountID int64) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[accountID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[accountID] = s
	}

	s.refs++

	return s
}

func (l *Local) unref(accountID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, accountID)
	}
}

func waitError(ctx context.Context, accountID int64) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("lock account %d: %w", accountID, ctx.Err())
	}

	return fmt.Errorf("lock account %d: %w", accountID, domain.ErrLockTimeout)
}
