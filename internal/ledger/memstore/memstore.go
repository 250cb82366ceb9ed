// Package memstore is an in-process ledger.Store. It backs tests and the
// memory mode of the CLI; nothing it holds survives the process.
package memstore

import (
	"context"
	"sync"

	"github.com/strangelove-ventures/custodian/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps encoded accounts in a map guarded by a per-key lock table.
type Store struct {
	mu        sync.RWMutex
	data      map[ledger.Key][]byte
	transfers []ledger.Transfer

	locks *lockTable
}

func New() *Store {
	return &Store{
		data:  make(map[ledger.Key][]byte),
		locks: newLockTable(),
	}
}

func (s *Store) Update(ctx context.Context, keys []ledger.Key, fn func(ledger.KV) error) error {
	return s.run(ctx, keys, false, fn)
}

func (s *Store) View(ctx context.Context, keys []ledger.Key, fn func(ledger.KV) error) error {
	return s.run(ctx, keys, true, fn)
}

func (s *Store) Close() error {
	return nil
}

// Transfers returns the committed transfer journal in commit order.
func (s *Store) Transfers() []ledger.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Transfer, len(s.transfers))
	copy(out, s.transfers)
	return out
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) run(ctx context.Context, keys []ledger.Key, readOnly bool, fn func(ledger.KV) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kv := &kv{
		store:    s,
		held:     make(map[ledger.Key]*lockEntry),
		writes:   make(map[ledger.Key][]byte),
		readOnly: readOnly,
	}
	defer kv.release()

	for _, k := range ledger.SortedKeys(keys) {
		e, err := s.locks.acquire(ctx, k)
		if err != nil {
			return err
		}
		kv.held[k] = e
	}

	if err := fn(kv); err != nil {
		return err
	}
	if readOnly {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv.writes {
		s.data[k] = v
	}
	s.transfers = append(s.transfers, kv.journal...)
	return nil
}

func (s *Store) lookup(k ledger.Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[k]
	return v, ok
}

// kv stages the writes of one operation until it commits.
type kv struct {
	store    *Store
	held     map[ledger.Key]*lockEntry
	writes   map[ledger.Key][]byte
	journal  []ledger.Transfer
	readOnly bool
}

// Lock never waits: a key held by another operation yields ErrConflict and the
// host retries the whole operation.
func (t *kv) Lock(keys ...ledger.Key) error {
	for _, k := range ledger.SortedKeys(keys) {
		if _, ok := t.held[k]; ok {
			continue
		}
		e, ok := t.store.locks.tryAcquire(k)
		if !ok {
			return ledger.ErrConflict
		}
		t.held[k] = e
	}
	return nil
}

func (t *kv) Get(k ledger.Key) ([]byte, error) {
	v, ok, err := t.read(k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *kv) Has(k ledger.Key) (bool, error) {
	_, ok, err := t.read(k)
	return ok, err
}

func (t *kv) Create(k ledger.Key, data []byte) error {
	if err := t.writable(k); err != nil {
		return err
	}
	if _, ok, _ := t.read(k); ok {
		return ledger.ErrAlreadyExists
	}
	t.writes[k] = clone(data)
	return nil
}

func (t *kv) Put(k ledger.Key, data []byte) error {
	if err := t.writable(k); err != nil {
		return err
	}
	if _, ok, _ := t.read(k); !ok {
		return ledger.ErrNotFound
	}
	t.writes[k] = clone(data)
	return nil
}

func (t *kv) Journal(tr ledger.Transfer) error {
	if t.readOnly {
		return ledger.ErrReadOnly
	}
	t.journal = append(t.journal, tr)
	return nil
}

func (t *kv) read(k ledger.Key) ([]byte, bool, error) {
	if _, ok := t.held[k]; !ok {
		return nil, false, ledger.ErrKeyNotLocked
	}
	if v, ok := t.writes[k]; ok {
		return v, true, nil
	}
	v, ok := t.store.lookup(k)
	return v, ok, nil
}

func (t *kv) writable(k ledger.Key) error {
	if t.readOnly {
		return ledger.ErrReadOnly
	}
	if _, ok := t.held[k]; !ok {
		return ledger.ErrKeyNotLocked
	}
	return nil
}

func (t *kv) release() {
	for k, e := range t.held {
		t.store.locks.release(k, e)
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
