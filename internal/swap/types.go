package swap

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/strangelove-ventures/custodian/internal/ledger"
)

const ProgramName = "swap"

// BasisPoints is the fee denominator.
const BasisPoints = 10000

var (
	ErrSlippageExceeded = ledger.NewError("SlippageExceeded", "output is below the minimum amount out")
	ErrInvalidFee       = ledger.NewError("InvalidFee", "fee must be between 0 and 10000 basis points")
)

// SwapInfo describes a two asset pool. The balances of VaultA and VaultB are
// the reserves; nothing else about them is stored.
type SwapInfo struct {
	Address   ledger.Address `json:"address" yaml:"address"`
	Authority ledger.Address `json:"authority" yaml:"authority"`
	TokenA    ledger.Address `json:"token_a" yaml:"token_a"`
	TokenB    ledger.Address `json:"token_b" yaml:"token_b"`
	VaultA    ledger.Address `json:"vault_a" yaml:"vault_a"`
	VaultB    ledger.Address `json:"vault_b" yaml:"vault_b"`
	FeeBps    uint16         `json:"fee_bps" yaml:"fee_bps"`
}

// Direction selects which side of the pool is paid in.
type Direction string

const (
	AToB Direction = "a_to_b"
	BToA Direction = "b_to_a"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case AToB, BToA:
		return d, nil
	case "":
		return AToB, nil
	default:
		return "", ledger.Invalidf("unknown swap direction %q", s)
	}
}

// vaults returns the inbound and outbound vault for d.
func (s SwapInfo) vaults(d Direction) (in, out ledger.Address) {
	if d == BToA {
		return s.VaultB, s.VaultA
	}
	return s.VaultA, s.VaultB
}

// Quote is a priced trade against a reserve snapshot.
type Quote struct {
	AmountIn   uint64 `json:"amount_in" yaml:"amount_in"`
	ReserveIn  uint64 `json:"reserve_in" yaml:"reserve_in"`
	ReserveOut uint64 `json:"reserve_out" yaml:"reserve_out"`
	AmountOut  uint64 `json:"amount_out" yaml:"amount_out"`
	Fee        uint64 `json:"fee" yaml:"fee"`
	FinalOut   uint64 `json:"final_out" yaml:"final_out"`
}

// Price is the effective rate paid, output units per input unit.
func (q Quote) Price() decimal.Decimal {
	if q.AmountIn == 0 {
		return decimal.Zero
	}
	return toDecimal(q.FinalOut).DivRound(toDecimal(q.AmountIn), 18)
}

func (q Quote) String() string {
	return fmt.Sprintf("%d in, %d out (fee %d) at %s", q.AmountIn, q.FinalOut, q.Fee, q.Price())
}

func toDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func VaultAAddress(pool ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, pool, "vault_a")
}

func VaultBAddress(pool ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, pool, "vault_b")
}
