package service

import "sync"

// rowLocks hands out one exclusive mutex per row key. Entries for keys
// nobody holds are dropped so the map does not grow with history.
type rowLocks struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

type rowLock struct {
	mu   sync.Mutex
	refs int
}

func newRowLocks() *rowLocks {
	return &rowLocks{rows: make(map[string]*rowLock)}
}

// Lock blocks until key is held and returns its unlock func.
func (l *rowLocks) Lock(key string) func() {
	l.mu.Lock()
	rl, ok := l.rows[key]
	if !ok {
		rl = &rowLock{}
		l.rows[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.rows, key)
		}
		l.mu.Unlock()
	}
}

func entryKey(id string) string   { return "entry:" + id }
func badgeKey(code string) string { return "badge:" + code }
