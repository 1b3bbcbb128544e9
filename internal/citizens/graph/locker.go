package graph

import (
	"slices"
	"sync"
)

type lockKey struct {
	importID  int64
	citizenID int64
}

type keyedMutex struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out per-citizen mutexes so that patches touching the same
// citizens of an import run one at a time. Entries are dropped once no
// goroutine holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[lockKey]*keyedMutex
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[lockKey]*keyedMutex)}
}

// Lock acquires the mutex of every (importID, id) pair and returns the
// release func. Keys are taken in ascending id order so overlapping callers
// cannot deadlock.
func (l *Locker) Lock(importID int64, ids ...int64) (unlock func()) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*keyedMutex, 0, len(sorted))
	for _, id := range sorted {
		km := l.acquire(lockKey{importID: importID, citizenID: id})
		km.mu.Lock()
		held = append(held, km)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(lockKey{importID: importID, citizenID: sorted[i]})
			}
		})
	}
}

func (l *Locker) acquire(key lockKey) *keyedMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	km, ok := l.locks[key]
	if !ok {
		km = &keyedMutex{}
		l.locks[key] = km
	}
	km.refs++
	return km
}

func (l *Locker) release(key lockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	km := l.locks[key]
	km.refs--
	if km.refs == 0 {
		delete(l.locks, key)
	}
}

// size is the number of live entries.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
