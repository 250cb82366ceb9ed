// Package safemath provides overflow-checked integer arithmetic for ledger
// amounts. Products are computed in 256 bits so intermediate results never
// wrap before the final division or range check.
package safemath

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
	"github.com/strangelove-ventures/custodian/internal/ledger"
)

var ErrDivisionByZero = errors.New("division by zero")

// Add returns a+b or ledger.ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ledger.ErrOverflow
	}
	return a + b, nil
}

// Sub returns a-b or ledger.ErrOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ledger.ErrOverflow
	}
	return a - b, nil
}

// SaturatingSub returns a-b floored at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// Mul returns a*b or ledger.ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	p, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !p.IsUint64() {
		return 0, ledger.ErrOverflow
	}
	return p.Uint64(), nil
}

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return toUint64(p.Div(p, uint256.NewInt(d)))
}

// MulMulDiv returns floor(a*b*c/d). Three uint64 factors fit in 192 bits.
func MulMulDiv(a, b, c, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	p.Mul(p, uint256.NewInt(c))
	return toUint64(p.Div(p, uint256.NewInt(d)))
}

// ProductExceeds reports whether a*k > limit, exactly.
func ProductExceeds(a, k, limit uint64) bool {
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(k))
	return p.Gt(uint256.NewInt(limit))
}

// AddTime returns t+d for unix timestamps or ledger.ErrOverflow.
func AddTime(t, d int64) (int64, error) {
	if (d > 0 && t > math.MaxInt64-d) || (d < 0 && t < math.MinInt64-d) {
		return 0, ledger.ErrOverflow
	}
	return t + d, nil
}

func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ledger.ErrOverflow
	}
	return v.Uint64(), nil
}
