// Package lending implements a single-asset collateralized lending ledger with
// a fixed 50% loan-to-value limit.
package lending

import (
	"context"

	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/safemath"
	"go.uber.org/zap"
)

// maxLTVDivisor caps borrowing at 1/maxLTVDivisor of deposits.
const maxLTVDivisor = 2

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

// Initialize creates a market for mint and opens its vault.
func (e *Engine) Initialize(ctx context.Context, authority, market, mint ledger.Address, interestRate uint16) (Market, error) {
	if authority == "" || market == "" || mint == "" {
		return Market{}, ledger.Invalidf("market, authority and token mint are required")
	}

	m := Market{
		Address:      market,
		Authority:    authority,
		TokenMint:    mint,
		Vault:        VaultAddress(market),
		InterestRate: interestRate,
	}
	err := e.host.Run(ctx, ProgramName, "initialize", ledger.Keys(ledger.Records(market), m.Vault), func(tx *ledger.Tx) error {
		if err := tx.Insert(market, m); err != nil {
			return err
		}
		_, err := tx.OpenTokenAccount(m.Vault, mint, market)
		return err
	})
	if err != nil {
		return Market{}, err
	}

	e.log.Info("Initialized market", zap.String("market", market.String()), zap.String("mint", mint.String()))
	return m, nil
}

// InitUser opens an empty position for user in market.
func (e *Engine) InitUser(ctx context.Context, market, user ledger.Address) (UserAccount, error) {
	addr := UserAccountAddress(market, user)
	ua := UserAccount{Address: addr, Market: market, Owner: user}

	err := e.host.Run(ctx, ProgramName, "init_user", ledger.Keys(ledger.Records(market, addr)), func(tx *ledger.Tx) error {
		var m Market
		if err := tx.Load(market, &m); err != nil {
			return err
		}
		return tx.Insert(addr, ua)
	})
	if err != nil {
		return UserAccount{}, err
	}
	return ua, nil
}

// position is the state an operation on a user's position works with.
type position struct {
	market Market
	user   UserAccount
}

// withPosition runs fn holding the market, the user's position, their token
// account and the vault.
func (e *Engine) withPosition(ctx context.Context, op string, market, user, userToken ledger.Address, fn func(*ledger.Tx, *position) error) (UserAccount, error) {
	addr := UserAccountAddress(market, user)
	keys := ledger.Keys(ledger.Records(market, addr), userToken, VaultAddress(market))

	var out UserAccount
	err := e.host.Run(ctx, ProgramName, op, keys, func(tx *ledger.Tx) error {
		p := &position{}
		if err := tx.Load(market, &p.market); err != nil {
			return err
		}
		if err := tx.Load(addr, &p.user); err != nil {
			return err
		}
		if err := fn(tx, p); err != nil {
			return err
		}
		out = p.user
		return tx.Save(addr, p.user)
	})
	if err != nil {
		return UserAccount{}, err
	}
	return out, nil
}

// Deposit moves amount from the user's token account into the vault as
// collateral.
func (e *Engine) Deposit(ctx context.Context, market, user, userToken ledger.Address, amount uint64) (UserAccount, error) {
	if amount == 0 {
		return UserAccount{}, ledger.ErrInvalidAmount
	}
	return e.withPosition(ctx, "deposit", market, user, userToken, func(tx *ledger.Tx, p *position) error {
		deposited, err := safemath.Add(p.user.DepositedAmount, amount)
		if err != nil {
			return err
		}
		if err := tx.Transfer(userToken, p.market.Vault, user, amount); err != nil {
			return err
		}
		p.user.DepositedAmount = deposited
		return nil
	})
}

// Borrow pays amount out of the vault as long as total debt stays within half
// of the deposited collateral.
func (e *Engine) Borrow(ctx context.Context, market, user, userToken ledger.Address, amount uint64) (UserAccount, error) {
	return e.withPosition(ctx, "borrow", market, user, userToken, func(tx *ledger.Tx, p *position) error {
		borrowed, err := safemath.Add(p.user.BorrowedAmount, amount)
		if err != nil {
			return err
		}
		if safemath.ProductExceeds(borrowed, maxLTVDivisor, p.user.DepositedAmount) {
			return ErrInsufficientCollateral
		}
		if err := tx.Transfer(p.market.Vault, userToken, market, amount); err != nil {
			return err
		}
		p.user.BorrowedAmount = borrowed
		return nil
	})
}

// Repay moves amount back into the vault and reduces the debt, flooring it at
// zero. Overpayment is kept by the vault.
func (e *Engine) Repay(ctx context.Context, market, user, userToken ledger.Address, amount uint64) (UserAccount, error) {
	if amount == 0 {
		return UserAccount{}, ledger.ErrInvalidAmount
	}
	return e.withPosition(ctx, "repay", market, user, userToken, func(tx *ledger.Tx, p *position) error {
		if err := tx.Transfer(userToken, p.market.Vault, user, amount); err != nil {
			return err
		}
		p.user.BorrowedAmount = safemath.SaturatingSub(p.user.BorrowedAmount, amount)
		return nil
	})
}

func (e *Engine) GetMarket(ctx context.Context, market ledger.Address) (Market, error) {
	var m Market
	err := e.host.View(ctx, ledger.Keys(ledger.Records(market)), func(tx *ledger.Tx) error {
		return tx.Load(market, &m)
	})
	return m, err
}

func (e *Engine) GetUserAccount(ctx context.Context, market, user ledger.Address) (UserAccount, error) {
	var ua UserAccount
	addr := UserAccountAddress(market, user)
	err := e.host.View(ctx, ledger.Keys(ledger.Records(addr)), func(tx *ledger.Tx) error {
		return tx.Load(addr, &ua)
	})
	return ua, err
}
