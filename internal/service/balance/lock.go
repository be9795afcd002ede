package balance

import "sync"

// keyLocks serializes assertions per account key. Two concurrent cascades
// on the same key would otherwise interleave their day-by-day writes and
// leave a mixed tail; different keys stay independent.
type keyLocks[K comparable] struct {
	mu sync.Mutex
	m  map[K]*sync.Mutex
}

func newKeyLocks[K comparable]() keyLocks[K] {
	return keyLocks[K]{m: make(map[K]*sync.Mutex)}
}

// lock acquires the mutex for key, creating it on first use, and returns
// the release func. The set of keys is bounded by the account dimension,
// so entries are never evicted.
func (l *keyLocks[K]) lock(key K) func() {
	l.mu.Lock()
	m, ok := l.m[key]
	if !ok {
		m = &sync.Mutex{}
		l.m[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
