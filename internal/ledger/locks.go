package ledger

import (
	"sort"
	"sync"
)

// accountLocks hands out one mutex per account number. Entries are reference
// counted and dropped once nobody holds or waits on them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*lockEntry)}
}

// acquire locks every named account in ascending order and returns the
// matching release. Duplicates are locked once.
func (l *accountLocks) acquire(accountNumbers ...string) func() {
	numbers := make([]string, 0, len(accountNumbers))
	seen := make(map[string]struct{}, len(accountNumbers))
	for _, n := range accountNumbers {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	entries := make([]*lockEntry, 0, len(numbers))
	for _, n := range numbers {
		l.mu.Lock()
		e, ok := l.locks[n]
		if !ok {
			e = &lockEntry{}
			l.locks[n] = e
		}
		e.refs++
		l.mu.Unlock()

		e.mu.Lock()
		entries = append(entries, e)
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		for i, n := range numbers {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(l.locks, n)
			}
		}
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
