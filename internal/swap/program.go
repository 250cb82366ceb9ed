package swap

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
	return []string{"initialize", "swap", "quote", "get_swap_info"}
}

func (p *Program) Handle(ctx context.Context, ins ledger.Instruction) (any, error) {
	pool, err := ins.Account("pool")
	if err != nil {
		return nil, err
	}

	var args struct {
		Fee          uint16 `mapstructure:"fee"`
		Direction    string `mapstructure:"direction"`
		AmountIn     uint64 `mapstructure:"amount_in"`
		MinAmountOut uint64 `mapstructure:"min_amount_out"`
	}
	if err := ins.DecodeArgs(&args); err != nil {
		return nil, err
	}

	switch ins.Op {
	case "initialize":
		tokenA, err := ins.Account("token_a")
		if err != nil {
			return nil, err
		}
		tokenB, err := ins.Account("token_b")
		if err != nil {
			return nil, err
		}
		return p.engine.Initialize(ctx, ins.Signer, pool, InitializeParams{
			TokenA: tokenA,
			TokenB: tokenB,
			FeeBps: args.Fee,
		})

	case "swap":
		d, err := ParseDirection(args.Direction)
		if err != nil {
			return nil, err
		}
		userIn, err := ins.Account("user_token_in")
		if err != nil {
			return nil, err
		}
		userOut, err := ins.Account("user_token_out")
		if err != nil {
			return nil, err
		}
		return p.engine.Swap(ctx, pool, ins.Signer, SwapParams{
			Direction:    d,
			UserIn:       userIn,
			UserOut:      userOut,
			AmountIn:     args.AmountIn,
			MinAmountOut: args.MinAmountOut,
		})

	case "quote":
		d, err := ParseDirection(args.Direction)
		if err != nil {
			return nil, err
		}
		return p.engine.Quote(ctx, pool, d, args.AmountIn)

	case "get_swap_info":
		return p.engine.GetSwapInfo(ctx, pool)

	default:
		return nil, ledger.UnknownOp(ProgramName, ins.Op)
	}
}
