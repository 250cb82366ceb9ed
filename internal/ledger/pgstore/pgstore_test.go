package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledger/pgstore"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	s, err := pgstore.Open("pgx", dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	k := ledger.RecordKey(ledger.Address("pgstore-test/" + uuid.NewString()))
	boom := errors.New("boom")

	err := s.Update(ctx, []ledger.Key{k}, func(kv ledger.KV) error {
		require.NoError(t, kv.Create(k, []byte(`{"n":1}`)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Update(ctx, []ledger.Key{k}, func(kv ledger.KV) error {
		ok, err := kv.Has(k)
		require.NoError(t, err)
		require.False(t, ok, "rolled back create must not persist")
		return kv.Create(k, []byte(`{"n":1}`))
	}))

	require.NoError(t, s.Update(ctx, []ledger.Key{k}, func(kv ledger.KV) error {
		require.ErrorIs(t, kv.Create(k, []byte(`{}`)), ledger.ErrAlreadyExists)
		return kv.Put(k, []byte(`{"n":2}`))
	}))

	require.NoError(t, s.View(ctx, []ledger.Key{k}, func(kv ledger.KV) error {
		v, err := kv.Get(k)
		require.NoError(t, err)
		require.JSONEq(t, `{"n":2}`, string(v))
		require.ErrorIs(t, kv.Put(k, v), ledger.ErrReadOnly)

		_, err = kv.Get(ledger.RecordKey("elsewhere"))
		require.ErrorIs(t, err, ledger.ErrKeyNotLocked)
		return nil
	}))
}

func TestStoreJournal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	program := "pgstore-test-" + uuid.NewString()
	k := ledger.TokenKey(ledger.Address(program))
	require.NoError(t, s.Update(ctx, []ledger.Key{k}, func(kv ledger.KV) error {
		return kv.Journal(ledger.Transfer{
			ID:      uuid.NewString(),
			Program: program,
			Op:      "transfer",
			From:    "a",
			To:      "b",
			Mint:    "m",
			Amount:  ^uint64(0),
			At:      42,
		})
	}))

	transfers, err := s.Transfers(ctx, program)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, ^uint64(0), transfers[0].Amount)
	require.Equal(t, int64(42), transfers[0].At)
}
