package ledger

import "context"

// Store is account storage with per-key exclusivity. Every Update holds an
// exclusive lock on each key it touches for its whole duration and applies all
// of its writes, or none of them.
type Store interface {
	// Update locks keys, runs fn and commits its writes if fn returns nil.
	Update(ctx context.Context, keys []Key, fn func(KV) error) error
	// View locks keys and runs fn against a read-only view.
	View(ctx context.Context, keys []Key, fn func(KV) error) error
	Close() error
}

// KV is the view of the store handed to a single operation. Accessing a key the
// operation does not hold fails with ErrKeyNotLocked.
type KV interface {
	// Lock extends the set of held keys.
	Lock(keys ...Key) error
	// Get returns the encoded account at k or ErrNotFound.
	Get(k Key) ([]byte, error)
	// Create stores a new account and fails with ErrAlreadyExists if one is present.
	Create(k Key, data []byte) error
	// Put overwrites an existing account and fails with ErrNotFound otherwise.
	Put(k Key, data []byte) error
	Has(k Key) (bool, error)
	// Journal records a committed token movement alongside the writes.
	Journal(t Transfer) error
}
