package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	held  map[string]localEntry
	seq   uint64
	clock func() time.Time
}

type localEntry struct {
	token   uint64
	expires time.Time
}

func NewLocal() *Local {
	return &Local{held: make(map[string]localEntry), clock: time.Now}
}

func (l *Local) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrNotObtained
	}
	l.seq++
	l.held[key] = localEntry{token: l.seq, expires: now.Add(ttl)}
	return &localLock{parent: l, key: key, token: l.seq}, nil
}

type localLock struct {
	parent *Local
	key    string
	token  uint64
}

// Release frees the key unless it has expired and been taken by someone else.
func (ll *localLock) Release(_ context.Context) error {
	ll.parent.mu.Lock()
	defer ll.parent.mu.Unlock()

	if e, ok := ll.parent.held[ll.key]; ok && e.token == ll.token {
		delete(ll.parent.held, ll.key)
	}
	return nil
}
