package staking_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledger/memstore"
	"github.com/strangelove-ventures/custodian/internal/safemath"
	"github.com/strangelove-ventures/custodian/internal/staking"
	"github.com/strangelove-ventures/custodian/internal/tokens"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	stk    = ledger.Address("stk")
	pool   = ledger.Address("pool")
	alice  = ledger.Address("alice")
	wallet = ledger.Address("alice/stk")
)

type env struct {
	ctx     context.Context
	clock   *ledger.ManualClock
	tokens  *tokens.Engine
	staking *staking.Engine
}

// newEnv creates a pool with rewardRate whose vault holds a reward reserve,
// and a user holding funds.
func newEnv(t *testing.T, rewardRate, userFunds, reserve uint64) *env {
	t.Helper()
	ctx := context.Background()
	clock := ledger.NewManualClock(1_000)
	host := ledger.NewHost(zap.NewNop(), memstore.New(), clock)
	e := &env{ctx: ctx, clock: clock, tokens: tokens.New(host), staking: staking.New(host)}

	p, err := e.staking.Initialize(ctx, "admin", pool, stk, rewardRate)
	require.NoError(t, err)
	if reserve > 0 {
		_, err = e.tokens.MintTo(ctx, p.Vault, reserve)
		require.NoError(t, err)
	}

	_, err = e.tokens.OpenAccount(ctx, wallet, stk, alice)
	require.NoError(t, err)
	if userFunds > 0 {
		_, err = e.tokens.MintTo(ctx, wallet, userFunds)
		require.NoError(t, err)
	}

	_, err = e.staking.InitStake(ctx, pool, alice)
	require.NoError(t, err)
	return e
}

func (e *env) balance(t *testing.T, addr ledger.Address) uint64 {
	t.Helper()
	b, err := e.tokens.Balance(e.ctx, addr)
	require.NoError(t, err)
	return b
}

func TestReward(t *testing.T) {
	tests := []struct {
		name    string
		elapsed int64
		rate    uint64
		amount  uint64
		want    uint64
	}{
		{"one day", 86_400, 1, 1_000_000, 864_000_000},
		{"floors", 1, 1, 99_999, 0},
		{"exact scale", 1, 1, 100_000, 1},
		{"no time", 0, 50, 1_000, 0},
		{"clock went backwards", -10, 50, 1_000, 0},
		{"wide intermediate", math.MaxUint32, math.MaxUint32, 100_000, math.MaxUint32 * math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := staking.Reward(tt.elapsed, tt.rate, tt.amount)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := staking.Reward(math.MaxInt64, math.MaxUint64, math.MaxUint64)
	require.ErrorIs(t, err, ledger.ErrOverflow)
}

func TestStakeRestartsClock(t *testing.T) {
	e := newEnv(t, 10, 1_000, 0)

	us, err := e.staking.Stake(e.ctx, pool, alice, wallet, 400)
	require.NoError(t, err)
	require.Equal(t, uint64(400), us.Amount)
	require.Equal(t, int64(1_000), us.StakedAt)

	e.clock.Advance(60)
	us, err = e.staking.Stake(e.ctx, pool, alice, wallet, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(500), us.Amount)
	require.Equal(t, int64(1_060), us.StakedAt)

	require.Equal(t, uint64(500), e.balance(t, wallet))
	require.Equal(t, uint64(500), e.balance(t, staking.VaultAddress(pool)))

	_, err = e.staking.Stake(e.ctx, pool, alice, wallet, 0)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestUnstakePaysPrincipalAndReward(t *testing.T) {
	e := newEnv(t, 100, 10_000, 50_000)

	_, err := e.staking.Stake(e.ctx, pool, alice, wallet, 10_000)
	require.NoError(t, err)

	e.clock.Advance(1_000)
	receipt, err := e.staking.Unstake(e.ctx, pool, alice, wallet, 4_000)
	require.NoError(t, err)

	// 1000 * 100 * 4000 / 100000
	require.Equal(t, uint64(4_000), receipt.Principal)
	require.Equal(t, uint64(4_000), receipt.Reward)
	require.Equal(t, uint64(6_000), receipt.Stake.Amount)
	require.Equal(t, int64(2_000), receipt.Stake.StakedAt)

	require.Equal(t, uint64(8_000), e.balance(t, wallet))
	require.Equal(t, uint64(52_000), e.balance(t, staking.VaultAddress(pool)))

	// accrual restarted, so an immediate unstake earns nothing
	receipt, err = e.staking.Unstake(e.ctx, pool, alice, wallet, 6_000)
	require.NoError(t, err)
	require.Zero(t, receipt.Reward)
	require.Zero(t, receipt.Stake.Amount)
}

func TestUnstakeRejections(t *testing.T) {
	e := newEnv(t, 100, 100, 0)

	_, err := e.staking.Stake(e.ctx, pool, alice, wallet, 100)
	require.NoError(t, err)

	_, err = e.staking.Unstake(e.ctx, pool, alice, wallet, 101)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// the vault holds no reserve, so a reward payout fails the whole unstake
	e.clock.Advance(1_000)
	_, err = e.staking.Unstake(e.ctx, pool, alice, wallet, 100)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	us, err := e.staking.GetUserStake(e.ctx, pool, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), us.Amount)
	require.Equal(t, int64(1_000), us.StakedAt)
	require.Zero(t, e.balance(t, wallet))

	_, err = e.staking.Unstake(e.ctx, pool, "bob", wallet, 1)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUnstakeOutflowForRandomSequences(t *testing.T) {
	e := newEnv(t, 3, 1_000_000, 1_000_000_000)
	vault := staking.VaultAddress(pool)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		e.clock.Advance(int64(rng.Intn(500)))

		before, err := e.staking.GetUserStake(e.ctx, pool, alice)
		require.NoError(t, err)
		vaultBefore := e.balance(t, vault)
		amount := uint64(rng.Intn(5_000))

		if rng.Intn(2) == 0 {
			if _, err := e.staking.Stake(e.ctx, pool, alice, wallet, amount); err != nil {
				continue
			}
			require.Equal(t, vaultBefore+amount, e.balance(t, vault))
			continue
		}

		receipt, err := e.staking.Unstake(e.ctx, pool, alice, wallet, amount)
		if amount > before.Amount {
			require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
			continue
		}
		require.NoError(t, err)

		want, err := staking.Reward(e.clock.Now()-before.StakedAt, 3, amount)
		require.NoError(t, err)
		require.Equal(t, want, receipt.Reward)

		outflow, err := safemath.Add(amount, want)
		require.NoError(t, err)
		require.Equal(t, vaultBefore-outflow, e.balance(t, vault))
		require.Equal(t, before.Amount-amount, receipt.Stake.Amount)
	}
}

func TestInitErrors(t *testing.T) {
	e := newEnv(t, 1, 0, 0)

	_, err := e.staking.InitStake(e.ctx, pool, alice)
	require.ErrorIs(t, err, ledger.ErrAlreadyExists)

	_, err = e.staking.InitStake(e.ctx, "nowhere", alice)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = e.staking.Initialize(e.ctx, "admin", pool, stk, 1)
	require.ErrorIs(t, err, ledger.ErrAlreadyExists)

	p, err := e.staking.GetPool(e.ctx, pool)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.RewardRate)
}
