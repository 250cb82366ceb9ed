package tokens

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
	return []string{"open_account", "mint_to", "transfer", "balance"}
}

func (p *Program) Handle(ctx context.Context, ins ledger.Instruction) (any, error) {
	var args struct {
		Amount uint64 `mapstructure:"amount"`
	}
	if err := ins.DecodeArgs(&args); err != nil {
		return nil, err
	}

	switch ins.Op {
	case "open_account":
		acct, err := ins.Account("account")
		if err != nil {
			return nil, err
		}
		mint, err := ins.Account("mint")
		if err != nil {
			return nil, err
		}
		// The owner defaults to the signer.
		owner := ins.OptionalAccount("owner")
		if owner == "" {
			owner = ins.Signer
		}
		return p.engine.OpenAccount(ctx, acct, mint, owner)

	case "mint_to":
		acct, err := ins.Account("account")
		if err != nil {
			return nil, err
		}
		return p.engine.MintTo(ctx, acct, args.Amount)

	case "transfer":
		from, err := ins.Account("from")
		if err != nil {
			return nil, err
		}
		to, err := ins.Account("to")
		if err != nil {
			return nil, err
		}
		return nil, p.engine.Transfer(ctx, from, to, ins.Signer, args.Amount)

	case "balance":
		acct, err := ins.Account("account")
		if err != nil {
			return nil, err
		}
		return p.engine.Account(ctx, acct)

	default:
		return nil, ledger.UnknownOp(ProgramName, ins.Op)
	}
}
