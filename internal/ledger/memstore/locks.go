package memstore

import (
	"context"
	"sync"

	"github.com/strangelove-ventures/custodian/internal/ledger"
)

// lockEntry is a binary semaphore for one key. Entries are reference counted
// and dropped from the table once nobody holds or waits on them.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

type lockTable struct {
	mu      sync.Mutex
	entries map[ledger.Key]*lockEntry
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[ledger.Key]*lockEntry)}
}

func (lt *lockTable) ref(k ledger.Key) *lockEntry {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	e, ok := lt.entries[k]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		lt.entries[k] = e
	}
	e.refs++
	return e
}

func (lt *lockTable) unref(k ledger.Key, e *lockEntry) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(lt.entries, k)
	}
}

// acquire blocks until k is free or ctx is done.
func (lt *lockTable) acquire(ctx context.Context, k ledger.Key) (*lockEntry, error) {
	e := lt.ref(k)
	select {
	case e.ch <- struct{}{}:
		return e, nil
	case <-ctx.Done():
		lt.unref(k, e)
		return nil, ctx.Err()
	}
}

func (lt *lockTable) tryAcquire(k ledger.Key) (*lockEntry, bool) {
	e := lt.ref(k)
	select {
	case e.ch <- struct{}{}:
		return e, true
	default:
		lt.unref(k, e)
		return nil, false
	}
}

func (lt *lockTable) release(k ledger.Key, e *lockEntry) {
	<-e.ch
	lt.unref(k, e)
}
