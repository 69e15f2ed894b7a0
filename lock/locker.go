/*
Package lock provides non-blocking mutual exclusion for depreciation runs.

PURPOSE:
  Two runs for the same facility and period must not post concurrently.
  The ledger's unique (asset, period) key already makes a second posting
  impossible; the lock stops the second run from doing the work at all and
  reports ErrNotObtained to the caller right away.

IMPLEMENTATIONS:
  Local: in-process map, for a single server or tests
  Redis: bsm/redislock over go-redis, for several servers sharing a store

Locks carry a TTL so a crashed holder cannot wedge a facility forever.
*/
package lock

//go:generate mockgen -source=locker.go -destination=locker_mock.go -package=lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotObtained is returned when the key is already held.
var ErrNotObtained = errors.New("lock not obtained")

// Locker hands out named locks. Obtain never waits for a held key.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held key.
type Lock interface {
	Release(ctx context.Context) error
}
