package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// TokenAccount holds a balance of a single mint on behalf of an owner. Only the
// owner may authorize debits.
type TokenAccount struct {
	Address Address `json:"address" yaml:"address"`
	Mint    Address `json:"mint" yaml:"mint"`
	Owner   Address `json:"owner" yaml:"owner"`
	Amount  uint64  `json:"amount" yaml:"amount"`
}

// Transfer is a journaled token movement.
type Transfer struct {
	ID        string  `json:"id" yaml:"id"`
	Program   string  `json:"program" yaml:"program"`
	Op        string  `json:"op" yaml:"op"`
	From      Address `json:"from" yaml:"from"`
	To        Address `json:"to" yaml:"to"`
	Authority Address `json:"authority" yaml:"authority"`
	Mint      Address `json:"mint" yaml:"mint"`
	Amount    uint64  `json:"amount" yaml:"amount"`
	At        int64   `json:"at" yaml:"at"`
}

// Tx is the typed view of a single atomic operation. It is not safe for use
// outside the function it was handed to.
type Tx struct {
	kv      KV
	program string
	op      string
	now     int64
}

// NewTx wraps kv for an operation of program observed at time now.
func NewTx(kv KV, program, op string, now int64) *Tx {
	return &Tx{kv: kv, program: program, op: op, now: now}
}

// Now is the ledger time of the operation. It does not change while the
// operation runs.
func (t *Tx) Now() int64 {
	return t.now
}

// Lock extends the operation's exclusive set with the records at addrs.
func (t *Tx) Lock(addrs ...Address) error {
	keys := make([]Key, 0, len(addrs))
	for _, a := range addrs {
		keys = append(keys, RecordKey(a))
	}
	return t.kv.Lock(keys...)
}

// LockTokens extends the operation's exclusive set with the token accounts at addrs.
func (t *Tx) LockTokens(addrs ...Address) error {
	keys := make([]Key, 0, len(addrs))
	for _, a := range addrs {
		keys = append(keys, TokenKey(a))
	}
	return t.kv.Lock(keys...)
}

// Load decodes the record at addr into v.
func (t *Tx) Load(addr Address, v any) error {
	return t.get(RecordKey(addr), v)
}

// Insert creates the record at addr. It fails with ErrAlreadyExists if the
// address is taken.
func (t *Tx) Insert(addr Address, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", addr, err)
	}
	return t.kv.Create(RecordKey(addr), data)
}

// Save overwrites the existing record at addr.
func (t *Tx) Save(addr Address, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", addr, err)
	}
	return t.kv.Put(RecordKey(addr), data)
}

// Exists reports whether a record is stored at addr.
func (t *Tx) Exists(addr Address) (bool, error) {
	return t.kv.Has(RecordKey(addr))
}

func (t *Tx) get(k Key, v any) error {
	data, err := t.kv.Get(k)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", k, err)
	}
	return nil
}

// OpenTokenAccount creates an empty token account of mint owned by owner.
func (t *Tx) OpenTokenAccount(addr, mint, owner Address) (TokenAccount, error) {
	if addr == "" || mint == "" || owner == "" {
		return TokenAccount{}, Invalidf("token account requires address, mint and owner")
	}
	acct := TokenAccount{Address: addr, Mint: mint, Owner: owner}
	if err := t.putToken(acct, true); err != nil {
		return TokenAccount{}, err
	}
	return acct, nil
}

// TokenAccount loads the token account at addr.
func (t *Tx) TokenAccount(addr Address) (TokenAccount, error) {
	var acct TokenAccount
	if err := t.get(TokenKey(addr), &acct); err != nil {
		return TokenAccount{}, err
	}
	return acct, nil
}

// BalanceOf returns the balance of the token account at addr.
func (t *Tx) BalanceOf(addr Address) (uint64, error) {
	acct, err := t.TokenAccount(addr)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// Transfer debits from and credits to, authorized by authority. It fails with a
// *TransferError and leaves both accounts untouched when either account is
// missing, the mints differ, authority does not own from, from holds less than
// amount, or the credit would overflow. A zero amount moves nothing.
func (t *Tx) Transfer(from, to, authority Address, amount uint64) error {
	fail := func(err error) error {
		return &TransferError{From: from, To: to, Amount: amount, Err: err}
	}

	src, err := t.TokenAccount(from)
	if err != nil {
		return fail(err)
	}
	dst, err := t.TokenAccount(to)
	if err != nil {
		return fail(err)
	}
	if src.Mint != dst.Mint {
		return fail(ErrMintMismatch)
	}
	if src.Owner != authority {
		return fail(ErrUnauthorized)
	}
	if src.Amount < amount {
		return fail(ErrInsufficientBalance)
	}
	if amount == 0 || from == to {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return fail(ErrOverflow)
	}

	src.Amount -= amount
	dst.Amount += amount

	if err := t.putToken(src, false); err != nil {
		return fail(err)
	}
	if err := t.putToken(dst, false); err != nil {
		return fail(err)
	}

	return t.kv.Journal(Transfer{
		ID:        uuid.NewString(),
		Program:   t.program,
		Op:        t.op,
		From:      from,
		To:        to,
		Authority: authority,
		Mint:      src.Mint,
		Amount:    amount,
		At:        t.now,
	})
}

// MintTo credits addr with newly issued tokens. It is the seeding primitive of
// the token program and is not reachable from the engines.
func (t *Tx) MintTo(addr Address, amount uint64) error {
	acct, err := t.TokenAccount(addr)
	if err != nil {
		return err
	}
	if acct.Amount > math.MaxUint64-amount {
		return ErrOverflow
	}
	acct.Amount += amount
	if err := t.putToken(acct, false); err != nil {
		return err
	}
	return t.kv.Journal(Transfer{
		ID:        uuid.NewString(),
		Program:   t.program,
		Op:        t.op,
		To:        addr,
		Authority: acct.Mint,
		Mint:      acct.Mint,
		Amount:    amount,
		At:        t.now,
	})
}

func (t *Tx) putToken(acct TokenAccount, create bool) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("encoding token account %s: %w", acct.Address, err)
	}
	if create {
		return t.kv.Create(TokenKey(acct.Address), data)
	}
	return t.kv.Put(TokenKey(acct.Address), data)
}

// IsNotFound reports whether err means a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
