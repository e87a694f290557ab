package indexer

import "sync"

// scopeLocks provides non-blocking, per-key lock semantics. Directory runs
// use it so that two walks of the same project never purge and insert the
// same files concurrently.
type scopeLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// tryAcquire attempts to take key without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *scopeLocks) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// release frees key. Must only be called by the holder.
func (l *scopeLocks) release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}
