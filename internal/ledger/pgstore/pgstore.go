// Package pgstore is a PostgreSQL backed ledger.Store.
//
// Per-key exclusivity is provided by transaction scoped advisory locks, which
// also cover keys that do not exist yet, so create-once records such as vote
// receipts cannot race. Every Update is a single database transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/lib/pq"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

// Open attempts to connect to the database using the specified driver and connection string.
// driver is a database/sql driver name: "pgx" or "postgres" (lib/pq).
func Open(driver, dsn string, gormLogLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName:           driver,
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize db session, ensure db server is running & check conn string: %w", err)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Record{}, &TransferRow{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Update(ctx context.Context, keys []ledger.Key, fn func(ledger.KV) error) error {
	return s.run(ctx, keys, false, fn)
}

func (s *Store) View(ctx context.Context, keys []ledger.Key, fn func(ledger.KV) error) error {
	return s.run(ctx, keys, true, fn)
}

// Transfers returns the journal entries written by program, oldest first.
func (s *Store) Transfers(ctx context.Context, program string) ([]ledger.Transfer, error) {
	var rows []TransferRow
	q := s.db.WithContext(ctx).Order("at, created_at")
	if program != "" {
		q = q.Where("program = ?", program)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	out := make([]ledger.Transfer, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.Transfer{
			ID:        r.ID,
			Program:   r.Program,
			Op:        r.Op,
			From:      ledger.Address(r.From),
			To:        ledger.Address(r.To),
			Authority: ledger.Address(r.Authority),
			Mint:      ledger.Address(r.Mint),
			Amount:    r.Amount,
			At:        r.At,
		})
	}
	return out, nil
}

func (s *Store) run(ctx context.Context, keys []ledger.Key, readOnly bool, fn func(ledger.KV) error) error {
	lockFn := "pg_advisory_xact_lock"
	if readOnly {
		lockFn = "pg_advisory_xact_lock_shared"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		kv := &kv{tx: tx, held: make(map[ledger.Key]struct{}), readOnly: readOnly}
		for _, k := range ledger.SortedKeys(keys) {
			if err := tx.Exec("SELECT "+lockFn+"(hashtextextended(?, 0))", string(k)).Error; err != nil {
				return err
			}
			kv.held[k] = struct{}{}
		}
		return fn(kv)
	})
	return translate(err)
}

type kv struct {
	tx       *gorm.DB
	held     map[ledger.Key]struct{}
	readOnly bool
}

// Lock never waits; a key held elsewhere yields ErrConflict and the host
// retries the operation from the start.
func (t *kv) Lock(keys ...ledger.Key) error {
	for _, k := range ledger.SortedKeys(keys) {
		if _, ok := t.held[k]; ok {
			continue
		}
		var got bool
		if err := t.tx.Raw("SELECT pg_try_advisory_xact_lock(hashtextextended(?, 0))", string(k)).Scan(&got).Error; err != nil {
			return err
		}
		if !got {
			return ledger.ErrConflict
		}
		t.held[k] = struct{}{}
	}
	return nil
}

func (t *kv) Get(k ledger.Key) ([]byte, error) {
	if err := t.check(k, false); err != nil {
		return nil, err
	}
	var rec Record
	if err := t.tx.Where("key = ?", string(k)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return rec.Data.Bytes, nil
}

func (t *kv) Has(k ledger.Key) (bool, error) {
	if err := t.check(k, false); err != nil {
		return false, err
	}
	var n int64
	if err := t.tx.Model(&Record{}).Where("key = ?", string(k)).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *kv) Create(k ledger.Key, data []byte) error {
	if err := t.check(k, true); err != nil {
		return err
	}
	ok, err := t.Has(k)
	if err != nil {
		return err
	}
	if ok {
		return ledger.ErrAlreadyExists
	}
	return t.tx.Create(&Record{
		Key:       string(k),
		Kind:      k.Kind(),
		Data:      pgtype.JSONB{Bytes: data, Status: pgtype.Present},
		UpdatedAt: time.Now(),
	}).Error
}

func (t *kv) Put(k ledger.Key, data []byte) error {
	if err := t.check(k, true); err != nil {
		return err
	}
	res := t.tx.Model(&Record{}).Where("key = ?", string(k)).Updates(map[string]any{
		"data":       pgtype.JSONB{Bytes: data, Status: pgtype.Present},
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *kv) Journal(tr ledger.Transfer) error {
	if t.readOnly {
		return ledger.ErrReadOnly
	}
	return t.tx.Create(&TransferRow{
		ID:        tr.ID,
		Program:   tr.Program,
		Op:        tr.Op,
		From:      string(tr.From),
		To:        string(tr.To),
		Authority: string(tr.Authority),
		Mint:      string(tr.Mint),
		Amount:    tr.Amount,
		At:        tr.At,
	}).Error
}

func (t *kv) check(k ledger.Key, write bool) error {
	if write && t.readOnly {
		return ledger.ErrReadOnly
	}
	if _, ok := t.held[k]; !ok {
		return ledger.ErrKeyNotLocked
	}
	return nil
}

// translate maps driver failures onto ledger errors. Serialization failures
// and deadlocks become ErrConflict so the host retries them.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return err
	}

	switch code {
	case "40001", "40P01", "55P03":
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	case "23505":
		return fmt.Errorf("%w: %v", ledger.ErrAlreadyExists, err)
	default:
		return err
	}
}
