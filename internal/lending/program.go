package lending

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
	return []string{"initialize", "init_user", "deposit", "borrow", "repay", "get_market", "get_user_account"}
}

func (p *Program) Handle(ctx context.Context, ins ledger.Instruction) (any, error) {
	market, err := ins.Account("market")
	if err != nil {
		return nil, err
	}

	var args struct {
		Amount       uint64 `mapstructure:"amount"`
		InterestRate uint16 `mapstructure:"interest_rate"`
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
		return p.engine.Initialize(ctx, ins.Signer, market, mint, args.InterestRate)

	case "init_user":
		return p.engine.InitUser(ctx, market, ins.Signer)

	case "deposit", "borrow", "repay":
		userToken, err := ins.Account("user_token")
		if err != nil {
			return nil, err
		}
		switch ins.Op {
		case "deposit":
			return p.engine.Deposit(ctx, market, ins.Signer, userToken, args.Amount)
		case "borrow":
			return p.engine.Borrow(ctx, market, ins.Signer, userToken, args.Amount)
		default:
			return p.engine.Repay(ctx, market, ins.Signer, userToken, args.Amount)
		}

	case "get_market":
		return p.engine.GetMarket(ctx, market)

	case "get_user_account":
		user := ins.OptionalAccount("user")
		if user == "" {
			user = ins.Signer
		}
		return p.engine.GetUserAccount(ctx, market, user)

	default:
		return nil, ledger.UnknownOp(ProgramName, ins.Op)
	}
}
