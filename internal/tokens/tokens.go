// Package tokens is the administrative token program. It opens token accounts,
// issues balances and moves them between holders, which lets batches seed and
// inspect the accounts the engines work on.
package tokens

import (
	"context"

	"github.com/strangelove-ventures/custodian/internal/ledger"
	"go.uber.org/zap"
)

const ProgramName = "token"

type Engine struct {
	host *ledger.Host
	log  *zap.Logger
}

func New(host *ledger.Host) *Engine {
	return &Engine{
		host: host,
		log:  host.Logger(ProgramName),
	}
}

// OpenAccount creates an empty token account of mint owned by owner.
func (e *Engine) OpenAccount(ctx context.Context, addr, mint, owner ledger.Address) (ledger.TokenAccount, error) {
	var acct ledger.TokenAccount
	err := e.host.Run(ctx, ProgramName, "open_account", ledger.Keys(nil, addr), func(tx *ledger.Tx) error {
		var err error
		acct, err = tx.OpenTokenAccount(addr, mint, owner)
		return err
	})
	return acct, err
}

// MintTo issues amount new tokens into addr.
func (e *Engine) MintTo(ctx context.Context, addr ledger.Address, amount uint64) (ledger.TokenAccount, error) {
	if amount == 0 {
		return ledger.TokenAccount{}, ledger.ErrInvalidAmount
	}
	var acct ledger.TokenAccount
	err := e.host.Run(ctx, ProgramName, "mint_to", ledger.Keys(nil, addr), func(tx *ledger.Tx) error {
		if err := tx.MintTo(addr, amount); err != nil {
			return err
		}
		var err error
		acct, err = tx.TokenAccount(addr)
		return err
	})
	if err != nil {
		return ledger.TokenAccount{}, err
	}

	e.log.Debug("Minted tokens", zap.String("account", addr.String()), zap.Uint64("amount", amount))
	return acct, nil
}

// Transfer moves amount from one holder to another on behalf of authority.
func (e *Engine) Transfer(ctx context.Context, from, to, authority ledger.Address, amount uint64) error {
	return e.host.Run(ctx, ProgramName, "transfer", ledger.Keys(nil, from, to), func(tx *ledger.Tx) error {
		return tx.Transfer(from, to, authority, amount)
	})
}

func (e *Engine) Account(ctx context.Context, addr ledger.Address) (ledger.TokenAccount, error) {
	var acct ledger.TokenAccount
	err := e.host.View(ctx, ledger.Keys(nil, addr), func(tx *ledger.Tx) error {
		var err error
		acct, err = tx.TokenAccount(addr)
		return err
	})
	return acct, err
}

func (e *Engine) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	acct, err := e.Account(ctx, addr)
	return acct.Amount, err
}
