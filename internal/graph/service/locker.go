package service

import (
	"context"
	"sync"
	"time"
)

// memoryLocker is the single-process fallback for the subject lock. It keeps
// the same contract as the redis locker, including TTL expiry, so a crashed
// goroutine cannot wedge a subject forever.
type memoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *memoryLocker) AcquireFetchLock(_ context.Context, subject string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if expiry, ok := l.held[subject]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[subject] = now.Add(ttl)
	return true, nil
}

func (l *memoryLocker) ReleaseFetchLock(_ context.Context, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, subject)
	return nil
}
