package locker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
)

const (
	keyPrefix  = "wallet:lock:"
	retryDelay = 25 * time.Millisecond
	maxTries   = 1 << 16
)

// Redis is a lock table shared by every process talking to the same Redis.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedis returns a Redis lock table. Locks expire after expiry even when
// their holder never releases them.
func NewRedis(client redis.UniversalClient, expiry time.Duration) *Redis {
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}
}

// Key returns the redis key guarding accountID.
func Key(accountID int64) string {
	return keyPrefix + strconv.FormatInt(accountID, 10)
}

// Acquire retries until the lock is taken or ctx is done.
func (r *Redis) Acquire(ctx context.Context, accountID int64) (func(), error) {
	mutex := r.rs.NewMutex(
		Key(accountID),
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(maxTries),
		redsync.WithRetryDelay(retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, waitError(ctx, accountID)
		}

		return nil, fmt.Errorf("lock account %d: %w: %v", accountID, domain.ErrLockTimeout, err)
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			if ok, err := mutex.UnlockContext(context.Background()); err != nil || !ok {
				zerolog.Ctx(ctx).Warn().Err(err).Int64("account_id", accountID).Msg("cannot release account lock")
			}
		})
	}, nil
}
