package swap_test

import (
	"context"
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledger/memstore"
	"github.com/strangelove-ventures/custodian/internal/swap"
	"github.com/strangelove-ventures/custodian/internal/tokens"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	mintA  = ledger.Address("mint-a")
	mintB  = ledger.Address("mint-b")
	pool   = ledger.Address("pool")
	alice  = ledger.Address("alice")
	aliceA = ledger.Address("alice/a")
	aliceB = ledger.Address("alice/b")
)

type env struct {
	ctx    context.Context
	tokens *tokens.Engine
	swap   *swap.Engine
}

func newEnv(t *testing.T, reserveA, reserveB, fundsA uint64, fee uint16) *env {
	t.Helper()
	ctx := context.Background()
	host := ledger.NewHost(zap.NewNop(), memstore.New(), ledger.NewManualClock(0))
	e := &env{ctx: ctx, tokens: tokens.New(host), swap: swap.New(host)}

	info, err := e.swap.Initialize(ctx, "admin", pool, swap.InitializeParams{TokenA: mintA, TokenB: mintB, FeeBps: fee})
	require.NoError(t, err)
	e.mint(t, info.VaultA, reserveA)
	e.mint(t, info.VaultB, reserveB)

	_, err = e.tokens.OpenAccount(ctx, aliceA, mintA, alice)
	require.NoError(t, err)
	_, err = e.tokens.OpenAccount(ctx, aliceB, mintB, alice)
	require.NoError(t, err)
	e.mint(t, aliceA, fundsA)
	return e
}

func (e *env) mint(t *testing.T, addr ledger.Address, amount uint64) {
	t.Helper()
	if amount == 0 {
		return
	}
	_, err := e.tokens.MintTo(e.ctx, addr, amount)
	require.NoError(t, err)
}

func (e *env) balance(t *testing.T, addr ledger.Address) uint64 {
	t.Helper()
	b, err := e.tokens.Balance(e.ctx, addr)
	require.NoError(t, err)
	return b
}

func aToB(amountIn, minOut uint64) swap.SwapParams {
	return swap.SwapParams{Direction: swap.AToB, UserIn: aliceA, UserOut: aliceB, AmountIn: amountIn, MinAmountOut: minOut}
}

// Scenario: reserves 1000/1000, fee 30 bps, 100 in gives 90 out.
func TestSwapSlippageBound(t *testing.T) {
	e := newEnv(t, 1000, 1000, 100, 30)

	_, err := e.swap.Swap(e.ctx, pool, alice, aToB(100, 91))
	require.ErrorIs(t, err, swap.ErrSlippageExceeded)
	require.Equal(t, "SlippageExceeded", ledger.CodeOf(err))
	require.Equal(t, uint64(100), e.balance(t, aliceA))

	r, err := e.swap.Swap(e.ctx, pool, alice, aToB(100, 90))
	require.NoError(t, err)
	require.Equal(t, swap.Quote{
		AmountIn:   100,
		ReserveIn:  1000,
		ReserveOut: 1000,
		AmountOut:  90,
		Fee:        0,
		FinalOut:   90,
	}, r.Quote)
	require.True(t, r.Price.Equal(decimal.RequireFromString("0.9")), r.Price.String())

	require.Zero(t, e.balance(t, aliceA))
	require.Equal(t, uint64(90), e.balance(t, aliceB))
	require.Equal(t, uint64(1100), e.balance(t, swap.VaultAAddress(pool)))
	require.Equal(t, uint64(910), e.balance(t, swap.VaultBAddress(pool)))
}

func TestSwapBackwards(t *testing.T) {
	e := newEnv(t, 1000, 1000, 100, 500)

	_, err := e.swap.Swap(e.ctx, pool, alice, aToB(100, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(86), e.balance(t, aliceB)) // 90 less a 4 fee

	r, err := e.swap.Swap(e.ctx, pool, alice, swap.SwapParams{
		Direction: swap.BToA,
		UserIn:    aliceB,
		UserOut:   aliceA,
		AmountIn:  86,
	})
	require.NoError(t, err)

	// 1100*86/(914+86) = 94, fee 94*500/10000 = 4
	require.Equal(t, uint64(94), r.Quote.AmountOut)
	require.Equal(t, uint64(4), r.Quote.Fee)
	require.Equal(t, uint64(90), e.balance(t, aliceA))
	require.Equal(t, uint64(1010), e.balance(t, swap.VaultAAddress(pool)))
}

func TestSwapRejections(t *testing.T) {
	e := newEnv(t, 1000, 1000, 50, 30)

	_, err := e.swap.Swap(e.ctx, pool, alice, aToB(0, 0))
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = e.swap.Swap(e.ctx, pool, alice, aToB(51, 0))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// paying in with the wrong side's account
	_, err = e.swap.Swap(e.ctx, pool, alice, swap.SwapParams{Direction: swap.AToB, UserIn: aliceB, UserOut: aliceA, AmountIn: 1})
	require.ErrorIs(t, err, ledger.ErrMintMismatch)

	_, err = e.swap.Swap(e.ctx, "nowhere", alice, aToB(1, 0))
	require.ErrorIs(t, err, ledger.ErrNotFound)

	require.Equal(t, uint64(1000), e.balance(t, swap.VaultAAddress(pool)))
	require.Equal(t, uint64(1000), e.balance(t, swap.VaultBAddress(pool)))
}

func TestInitialize(t *testing.T) {
	e := newEnv(t, 0, 0, 0, 10000)

	_, err := e.swap.Initialize(e.ctx, "admin", "p2", swap.InitializeParams{TokenA: mintA, TokenB: mintB, FeeBps: 10001})
	require.ErrorIs(t, err, swap.ErrInvalidFee)

	_, err = e.swap.Initialize(e.ctx, "admin", "p2", swap.InitializeParams{TokenA: mintA, TokenB: mintA})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = e.swap.Initialize(e.ctx, "admin", pool, swap.InitializeParams{TokenA: mintA, TokenB: mintB})
	require.ErrorIs(t, err, ledger.ErrAlreadyExists)

	info, err := e.swap.GetSwapInfo(e.ctx, pool)
	require.NoError(t, err)
	require.Equal(t, uint16(10000), info.FeeBps)
	require.Equal(t, swap.VaultBAddress(pool), info.VaultB)
}

func TestQuoteDoesNotTrade(t *testing.T) {
	e := newEnv(t, 5000, 2000, 0, 25)

	r, err := e.swap.Quote(e.ctx, pool, swap.AToB, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(333), r.Quote.AmountOut)
	require.Equal(t, uint64(0), r.Quote.Fee)

	_, err = e.swap.Quote(e.ctx, pool, swap.BToA, 0)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	require.Equal(t, uint64(5000), e.balance(t, swap.VaultAAddress(pool)))
}

func TestComputeQuoteMatchesFormula(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 1000; i++ {
		reserveIn, reserveOut := rng.Uint64()>>1, rng.Uint64()>>1
		amountIn := rng.Uint64()>>1 + 1
		fee := uint16(rng.Intn(swap.BasisPoints + 1))

		q, err := swap.ComputeQuote(reserveIn, reserveOut, amountIn, fee)
		require.NoError(t, err)

		out := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), new(big.Int).SetUint64(amountIn))
		out.Div(out, new(big.Int).Add(new(big.Int).SetUint64(reserveIn), new(big.Int).SetUint64(amountIn)))
		feeAmt := new(big.Int).Mul(out, big.NewInt(int64(fee)))
		feeAmt.Div(feeAmt, big.NewInt(swap.BasisPoints))

		require.Equal(t, out.Uint64(), q.AmountOut)
		require.Equal(t, feeAmt.Uint64(), q.Fee)
		require.Equal(t, out.Uint64()-feeAmt.Uint64(), q.FinalOut)
		require.Less(t, q.AmountOut, reserveOut+1)
	}

	_, err := swap.ComputeQuote(^uint64(0), 1, 1, 0)
	require.ErrorIs(t, err, ledger.ErrOverflow)
}
