package ledger

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Program is a named engine reachable through batch instructions.
type Program interface {
	Name() string
	Ops() []string
	Handle(ctx context.Context, ins Instruction) (any, error)
}

// Instruction is a single call into a program. Accounts names the addresses the
// op works on; Args carries its parameters. At pins the ledger time for the
// instruction when set.
type Instruction struct {
	Program  string             `json:"program" yaml:"program"`
	Op       string             `json:"op" yaml:"op"`
	Signer   Address            `json:"signer" yaml:"signer"`
	Accounts map[string]Address `json:"accounts,omitempty" yaml:"accounts,omitempty"`
	Args     map[string]any     `json:"args,omitempty" yaml:"args,omitempty"`
	At       *int64             `json:"at,omitempty" yaml:"at,omitempty"`
}

// Account returns the named account or an InvalidArgument error when it is
// missing.
func (ins Instruction) Account(name string) (Address, error) {
	addr, ok := ins.Accounts[name]
	if !ok || addr == "" {
		return "", Invalidf("%s/%s: missing account %q", ins.Program, ins.Op, name)
	}
	return addr, nil
}

// OptionalAccount returns the named account or the empty address.
func (ins Instruction) OptionalAccount(name string) Address {
	return ins.Accounts[name]
}

// DecodeArgs decodes Args into v, which must be a pointer to a struct tagged
// with `mapstructure`. Numeric strings are accepted for integer fields so
// batches can carry values beyond the float64 range of JSON numbers.
func (ins Instruction) DecodeArgs(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("building args decoder: %w", err)
	}
	if err := dec.Decode(ins.Args); err != nil {
		return Invalidf("%s/%s: %v", ins.Program, ins.Op, err)
	}
	return nil
}

// UnknownOp returns the error for an op the program does not implement.
func UnknownOp(program, op string) error {
	return fmt.Errorf("%w: %s has no op %q", ErrUnknownOp, program, op)
}
