// Package staking implements a staking ledger with linear, time weighted
// reward accrual paid out of the pool vault on unstake.
package staking

import (
	"context"

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

// Reward returns floor(elapsed*rate*amount/RewardScale). A negative elapsed
// time accrues nothing.
func Reward(elapsed int64, rate, amount uint64) (uint64, error) {
	if elapsed <= 0 {
		return 0, nil
	}
	return safemath.MulMulDiv(uint64(elapsed), rate, amount, RewardScale)
}

// Initialize creates a pool for mint and opens its vault.
func (e *Engine) Initialize(ctx context.Context, authority, pool, mint ledger.Address, rewardRate uint64) (Pool, error) {
	if authority == "" || pool == "" || mint == "" {
		return Pool{}, ledger.Invalidf("pool, authority and token mint are required")
	}

	p := Pool{
		Address:    pool,
		Authority:  authority,
		TokenMint:  mint,
		Vault:      VaultAddress(pool),
		RewardRate: rewardRate,
	}
	err := e.host.Run(ctx, ProgramName, "initialize", ledger.Keys(ledger.Records(pool), p.Vault), func(tx *ledger.Tx) error {
		if err := tx.Insert(pool, p); err != nil {
			return err
		}
		_, err := tx.OpenTokenAccount(p.Vault, mint, pool)
		return err
	})
	if err != nil {
		return Pool{}, err
	}

	e.log.Info("Initialized pool", zap.String("pool", pool.String()), zap.Uint64("reward_rate", rewardRate))
	return p, nil
}

// InitStake opens an empty stake for user in pool.
func (e *Engine) InitStake(ctx context.Context, pool, user ledger.Address) (UserStake, error) {
	addr := UserStakeAddress(pool, user)
	us := UserStake{Address: addr, Pool: pool, Owner: user}

	err := e.host.Run(ctx, ProgramName, "init_stake", ledger.Keys(ledger.Records(pool, addr)), func(tx *ledger.Tx) error {
		var p Pool
		if err := tx.Load(pool, &p); err != nil {
			return err
		}
		return tx.Insert(addr, us)
	})
	if err != nil {
		return UserStake{}, err
	}
	return us, nil
}

func stakeKeys(pool, user, userToken ledger.Address) []ledger.Key {
	return ledger.Keys(ledger.Records(pool, UserStakeAddress(pool, user)), userToken, VaultAddress(pool))
}

// Stake locks amount into the pool vault and restarts the stake clock.
func (e *Engine) Stake(ctx context.Context, pool, user, userToken ledger.Address, amount uint64) (UserStake, error) {
	if amount == 0 {
		return UserStake{}, ledger.ErrInvalidAmount
	}

	addr := UserStakeAddress(pool, user)
	var us UserStake
	err := e.host.Run(ctx, ProgramName, "stake", stakeKeys(pool, user, userToken), func(tx *ledger.Tx) error {
		var p Pool
		if err := tx.Load(pool, &p); err != nil {
			return err
		}
		if err := tx.Load(addr, &us); err != nil {
			return err
		}

		staked, err := safemath.Add(us.Amount, amount)
		if err != nil {
			return err
		}
		if err := tx.Transfer(userToken, p.Vault, user, amount); err != nil {
			return err
		}

		us.Amount = staked
		us.StakedAt = tx.Now()
		return tx.Save(addr, us)
	})
	if err != nil {
		return UserStake{}, err
	}
	return us, nil
}

// Unstake returns amount of principal plus the reward accrued on it since the
// last stake change, then restarts the clock for what remains.
func (e *Engine) Unstake(ctx context.Context, pool, user, userToken ledger.Address, amount uint64) (UnstakeReceipt, error) {
	addr := UserStakeAddress(pool, user)
	var receipt UnstakeReceipt
	err := e.host.Run(ctx, ProgramName, "unstake", stakeKeys(pool, user, userToken), func(tx *ledger.Tx) error {
		var p Pool
		if err := tx.Load(pool, &p); err != nil {
			return err
		}
		var us UserStake
		if err := tx.Load(addr, &us); err != nil {
			return err
		}

		if amount > us.Amount {
			return ledger.ErrInsufficientFunds
		}
		reward, err := Reward(tx.Now()-us.StakedAt, p.RewardRate, amount)
		if err != nil {
			return err
		}

		if err := tx.Transfer(p.Vault, userToken, pool, amount); err != nil {
			return err
		}
		if reward > 0 {
			if err := tx.Transfer(p.Vault, userToken, pool, reward); err != nil {
				return err
			}
		}

		us.Amount -= amount
		us.StakedAt = tx.Now()
		receipt = UnstakeReceipt{Principal: amount, Reward: reward, Stake: us}
		return tx.Save(addr, us)
	})
	if err != nil {
		return UnstakeReceipt{}, err
	}

	e.log.Debug(
		"Unstaked",
		zap.String("pool", pool.String()),
		zap.String("user", user.String()),
		zap.Uint64("principal", receipt.Principal),
		zap.Uint64("reward", receipt.Reward),
	)
	return receipt, nil
}

func (e *Engine) GetPool(ctx context.Context, pool ledger.Address) (Pool, error) {
	var p Pool
	err := e.host.View(ctx, ledger.Keys(ledger.Records(pool)), func(tx *ledger.Tx) error {
		return tx.Load(pool, &p)
	})
	return p, err
}

func (e *Engine) GetUserStake(ctx context.Context, pool, user ledger.Address) (UserStake, error) {
	var us UserStake
	addr := UserStakeAddress(pool, user)
	err := e.host.View(ctx, ledger.Keys(ledger.Records(addr)), func(tx *ledger.Tx) error {
		return tx.Load(addr, &us)
	})
	return us, err
}
