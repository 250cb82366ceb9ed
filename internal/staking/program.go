package staking

import (
	"context"

	"github.com/strangelove-ventures/custodian/internal/ledger"
)

var _ ledger.Program = (*Program)(nil)

type Program struct {
	engine *Engine
}

func NewProgram(host *ledger.Host) *Program {
	return &Program{engine: New(host)}
}

func (p *Program) Name() string {
	return ProgramName
}

func (p *Program) Ops() []string {
	return []string{"initialize", "init_stake", "stake", "unstake", "get_pool", "get_user_stake"}
}

func (p *Program) Handle(ctx context.Context, ins ledger.Instruction) (any, error) {
	pool, err := ins.Account("pool")
	if err != nil {
		return nil, err
	}

	var args struct {
		Amount     uint64 `mapstructure:"amount"`
		RewardRate uint64 `mapstructure:"reward_rate"`
	}
	if err := ins.DecodeArgs(&args); err != nil {
		return nil, err
	}

	switch ins.Op {
	case "initialize":
		mint, err := ins.Account("token_mint")
		if err != nil {
			return nil, err
		}
		return p.engine.Initialize(ctx, ins.Signer, pool, mint, args.RewardRate)

	case "init_stake":
		return p.engine.InitStake(ctx, pool, ins.Signer)

	case "stake":
		userToken, err := ins.Account("user_token")
		if err != nil {
			return nil, err
		}
		return p.engine.Stake(ctx, pool, ins.Signer, userToken, args.Amount)

	case "unstake":
		userToken, err := ins.Account("user_token")
		if err != nil {
			return nil, err
		}
		return p.engine.Unstake(ctx, pool, ins.Signer, userToken, args.Amount)

	case "get_pool":
		return p.engine.GetPool(ctx, pool)

	case "get_user_stake":
		user := ins.OptionalAccount("user")
		if user == "" {
			user = ins.Signer
		}
		return p.engine.GetUserStake(ctx, pool, user)

	default:
		return nil, ledger.UnknownOp(ProgramName, ins.Op)
	}
}
