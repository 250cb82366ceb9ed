package governance

import (
	"context"

	"github.com/strangelove-ventures/custodian/internal/ledger"
)

var _ ledger.Program = (*Program)(nil)

// Program exposes the engine to batch instructions.
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
	return []string{
		"initialize_dao",
		"deposit_treasury",
		"create_proposal",
		"cast_vote",
		"execute_proposal",
		"get_dao",
		"get_proposal",
		"get_vote",
	}
}

func (p *Program) Handle(ctx context.Context, ins ledger.Instruction) (any, error) {
	switch ins.Op {
	case "initialize_dao":
		dao, err := ins.Account("dao")
		if err != nil {
			return nil, err
		}
		var args InitializeDaoParams
		if err := ins.DecodeArgs(&args); err != nil {
			return nil, err
		}
		return p.engine.InitializeDao(ctx, ins.Signer, dao, args)

	case "deposit_treasury":
		dao, err := ins.Account("dao")
		if err != nil {
			return nil, err
		}
		from, err := ins.Account("from")
		if err != nil {
			return nil, err
		}
		var args struct {
			Amount uint64 `mapstructure:"amount"`
		}
		if err := ins.DecodeArgs(&args); err != nil {
			return nil, err
		}
		return nil, p.engine.DepositTreasury(ctx, dao, ins.Signer, from, args.Amount)

	case "create_proposal":
		dao, err := ins.Account("dao")
		if err != nil {
			return nil, err
		}
		var args CreateProposalParams
		if err := ins.DecodeArgs(&args); err != nil {
			return nil, err
		}
		return p.engine.CreateProposal(ctx, dao, ins.Signer, args)

	case "cast_vote":
		proposal, err := ins.Account("proposal")
		if err != nil {
			return nil, err
		}
		voterToken, err := ins.Account("voter_token")
		if err != nil {
			return nil, err
		}
		var args struct {
			Side bool `mapstructure:"side"`
		}
		if err := ins.DecodeArgs(&args); err != nil {
			return nil, err
		}
		return p.engine.CastVote(ctx, proposal, ins.Signer, voterToken, args.Side)

	case "execute_proposal":
		proposal, err := ins.Account("proposal")
		if err != nil {
			return nil, err
		}
		return p.engine.ExecuteProposal(ctx, proposal)

	case "get_dao":
		dao, err := ins.Account("dao")
		if err != nil {
			return nil, err
		}
		return p.engine.GetDao(ctx, dao)

	case "get_proposal":
		proposal, err := ins.Account("proposal")
		if err != nil {
			return nil, err
		}
		return p.engine.GetProposal(ctx, proposal)

	case "get_vote":
		proposal, err := ins.Account("proposal")
		if err != nil {
			return nil, err
		}
		voter, err := ins.Account("voter")
		if err != nil {
			return nil, err
		}
		return p.engine.GetVote(ctx, proposal, voter)

	default:
		return nil, ledger.UnknownOp(ProgramName, ins.Op)
	}
}
