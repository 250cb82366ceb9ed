package staking

import "github.com/strangelove-ventures/custodian/internal/ledger"

const ProgramName = "staking"

// RewardScale divides elapsed*rate*amount when computing rewards.
const RewardScale = 100000

// Pool is a staking pool for a single mint.
type Pool struct {
	Address    ledger.Address `json:"address" yaml:"address"`
	Authority  ledger.Address `json:"authority" yaml:"authority"`
	TokenMint  ledger.Address `json:"token_mint" yaml:"token_mint"`
	Vault      ledger.Address `json:"vault" yaml:"vault"`
	RewardRate uint64         `json:"reward_rate" yaml:"reward_rate"`
}

// UserStake is a user's stake in a pool. StakedAt is reset on every balance
// change, so accrual always restarts for the whole remaining amount.
type UserStake struct {
	Address  ledger.Address `json:"address" yaml:"address"`
	Pool     ledger.Address `json:"pool" yaml:"pool"`
	Owner    ledger.Address `json:"owner" yaml:"owner"`
	Amount   uint64         `json:"amount" yaml:"amount"`
	StakedAt int64          `json:"staked_at" yaml:"staked_at"`
}

// UnstakeReceipt reports what an unstake paid out.
type UnstakeReceipt struct {
	Principal uint64    `json:"principal" yaml:"principal"`
	Reward    uint64    `json:"reward" yaml:"reward"`
	Stake     UserStake `json:"stake" yaml:"stake"`
}

func VaultAddress(pool ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, pool, "vault")
}

func UserStakeAddress(pool, user ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, pool, "stake", string(user))
}
