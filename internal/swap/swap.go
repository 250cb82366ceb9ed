// Package swap implements a two asset constant product pool with a fee taken
// from the output and a caller supplied slippage bound.
package swap

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/safemath"
	"go.uber.org/zap"
)

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

// ComputeQuote prices amountIn against the given reserves:
//
//	amountOut = reserveOut*amountIn / (reserveIn+amountIn)
//	fee       = amountOut*feeBps / BasisPoints
//	finalOut  = amountOut - fee
//
// with floor division throughout.
func ComputeQuote(reserveIn, reserveOut, amountIn uint64, feeBps uint16) (Quote, error) {
	if amountIn == 0 {
		return Quote{}, ledger.ErrInvalidAmount
	}
	if feeBps > BasisPoints {
		return Quote{}, ErrInvalidFee
	}

	denom, err := safemath.Add(reserveIn, amountIn)
	if err != nil {
		return Quote{}, err
	}
	out, err := safemath.MulDiv(reserveOut, amountIn, denom)
	if err != nil {
		return Quote{}, err
	}
	fee, err := safemath.MulDiv(out, uint64(feeBps), BasisPoints)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		AmountIn:   amountIn,
		ReserveIn:  reserveIn,
		ReserveOut: reserveOut,
		AmountOut:  out,
		Fee:        fee,
		FinalOut:   out - fee,
	}, nil
}

// InitializeParams configures a new pool.
type InitializeParams struct {
	TokenA ledger.Address
	TokenB ledger.Address
	FeeBps uint16
}

// Initialize creates a pool and opens one vault per side, both owned by the
// pool.
func (e *Engine) Initialize(ctx context.Context, authority, pool ledger.Address, params InitializeParams) (SwapInfo, error) {
	if authority == "" || pool == "" || params.TokenA == "" || params.TokenB == "" {
		return SwapInfo{}, ledger.Invalidf("pool, authority and both token mints are required")
	}
	if params.TokenA == params.TokenB {
		return SwapInfo{}, ledger.Invalidf("token a and token b must differ")
	}
	if params.FeeBps > BasisPoints {
		return SwapInfo{}, ErrInvalidFee
	}

	info := SwapInfo{
		Address:   pool,
		Authority: authority,
		TokenA:    params.TokenA,
		TokenB:    params.TokenB,
		VaultA:    VaultAAddress(pool),
		VaultB:    VaultBAddress(pool),
		FeeBps:    params.FeeBps,
	}
	keys := ledger.Keys(ledger.Records(pool), info.VaultA, info.VaultB)
	err := e.host.Run(ctx, ProgramName, "initialize", keys, func(tx *ledger.Tx) error {
		if err := tx.Insert(pool, info); err != nil {
			return err
		}
		if _, err := tx.OpenTokenAccount(info.VaultA, info.TokenA, pool); err != nil {
			return err
		}
		_, err := tx.OpenTokenAccount(info.VaultB, info.TokenB, pool)
		return err
	})
	if err != nil {
		return SwapInfo{}, err
	}

	e.log.Info(
		"Initialized swap pool",
		zap.String("pool", pool.String()),
		zap.String("token_a", info.TokenA.String()),
		zap.String("token_b", info.TokenB.String()),
		zap.Uint16("fee_bps", info.FeeBps),
	)
	return info, nil
}

// Receipt reports an executed swap.
type Receipt struct {
	Direction Direction       `json:"direction" yaml:"direction"`
	Quote     Quote           `json:"quote" yaml:"quote"`
	Price     decimal.Decimal `json:"price" yaml:"price"`
}

// SwapParams describes a trade. UserIn pays AmountIn into the pool and UserOut
// receives the output.
type SwapParams struct {
	Direction    Direction
	UserIn       ledger.Address
	UserOut      ledger.Address
	AmountIn     uint64
	MinAmountOut uint64
}

// Swap trades against the reserves as they stand when the operation starts.
// The inbound transfer settles before the outbound one.
func (e *Engine) Swap(ctx context.Context, pool, user ledger.Address, params SwapParams) (Receipt, error) {
	if params.AmountIn == 0 {
		return Receipt{}, ledger.ErrInvalidAmount
	}

	var receipt Receipt
	keys := ledger.Keys(ledger.Records(pool), params.UserIn, params.UserOut, VaultAAddress(pool), VaultBAddress(pool))
	err := e.host.Run(ctx, ProgramName, "swap", keys, func(tx *ledger.Tx) error {
		var info SwapInfo
		if err := tx.Load(pool, &info); err != nil {
			return err
		}

		q, err := quote(tx, info, params.Direction, params.AmountIn)
		if err != nil {
			return err
		}
		if q.FinalOut < params.MinAmountOut {
			return ErrSlippageExceeded
		}

		vaultIn, vaultOut := info.vaults(params.Direction)
		if err := tx.Transfer(params.UserIn, vaultIn, user, params.AmountIn); err != nil {
			return err
		}
		if err := tx.Transfer(vaultOut, params.UserOut, pool, q.FinalOut); err != nil {
			return err
		}

		receipt = Receipt{Direction: params.Direction, Quote: q, Price: q.Price()}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	e.log.Debug(
		"Swapped",
		zap.String("pool", pool.String()),
		zap.String("direction", string(params.Direction)),
		zap.Uint64("amount_in", receipt.Quote.AmountIn),
		zap.Uint64("final_out", receipt.Quote.FinalOut),
	)
	return receipt, nil
}

// Quote prices a trade against the current reserves without executing it.
func (e *Engine) Quote(ctx context.Context, pool ledger.Address, d Direction, amountIn uint64) (Receipt, error) {
	var receipt Receipt
	keys := ledger.Keys(ledger.Records(pool), VaultAAddress(pool), VaultBAddress(pool))
	err := e.host.View(ctx, keys, func(tx *ledger.Tx) error {
		var info SwapInfo
		if err := tx.Load(pool, &info); err != nil {
			return err
		}
		q, err := quote(tx, info, d, amountIn)
		if err != nil {
			return err
		}
		receipt = Receipt{Direction: d, Quote: q, Price: q.Price()}
		return nil
	})
	return receipt, err
}

func quote(tx *ledger.Tx, info SwapInfo, d Direction, amountIn uint64) (Quote, error) {
	vaultIn, vaultOut := info.vaults(d)
	reserveIn, err := tx.BalanceOf(vaultIn)
	if err != nil {
		return Quote{}, err
	}
	reserveOut, err := tx.BalanceOf(vaultOut)
	if err != nil {
		return Quote{}, err
	}
	return ComputeQuote(reserveIn, reserveOut, amountIn, info.FeeBps)
}

func (e *Engine) GetSwapInfo(ctx context.Context, pool ledger.Address) (SwapInfo, error) {
	var info SwapInfo
	err := e.host.View(ctx, ledger.Keys(ledger.Records(pool)), func(tx *ledger.Tx) error {
		return tx.Load(pool, &info)
	})
	return info, err
}
