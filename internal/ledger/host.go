package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/strangelove-ventures/custodian/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// variables used in retry attempts across the ledger codebase
var (
	RtyAttNum = uint(5)
	RtyAtt    = retry.Attempts(RtyAttNum)
	RtyDel    = retry.Delay(time.Millisecond * 400)
	RtyErr    = retry.LastErrorOnly(true)
)

// Host is the execution environment shared by every program: account storage,
// the time source and logging. Programs never touch the store directly; each
// of their operations goes through Run.
type Host struct {
	Store Store
	Clock Clock

	log *zap.Logger
}

func NewHost(log *zap.Logger, store Store, clock Clock) *Host {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Host{
		Store: store,
		Clock: clock,
		log:   log,
	}
}

// Logger returns the host logger scoped to a program.
func (h *Host) Logger(program string) *zap.Logger {
	return h.log.With(zap.String("program", program))
}

func (h *Host) now(ctx context.Context) int64 {
	if t, ok := pinnedTime(ctx); ok {
		return t
	}
	return h.Clock.Now()
}

// Run executes fn as one atomic operation holding exclusive access to keys.
// The ledger time is read once, before any lock is taken, so every check in fn
// sees the same instant. Storage conflicts are retried; every other failure is
// returned to the caller unchanged with no state applied.
func (h *Host) Run(ctx context.Context, program, op string, keys []Key, fn func(*Tx) error) error {
	start := time.Now()
	now := h.now(ctx)

	err := retry.Do(func() error {
		return h.Store.Update(ctx, keys, func(kv KV) error {
			return fn(NewTx(kv, program, op, now))
		})
	}, retry.Context(ctx), RtyAtt, RtyDel, RtyErr, retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			metrics.ObserveRetry(program, op)
			h.log.Info(
				"Retrying conflicted operation",
				zap.String("program", program),
				zap.String("op", op),
				zap.Uint("attempt", n),
				zap.Error(err),
			)
		}))

	code := CodeOf(err)
	metrics.ObserveOperation(program, op, code, time.Since(start))
	if err != nil && code == CodeInternal {
		h.log.Warn(
			"Operation failed unexpectedly",
			zap.String("program", program),
			zap.String("op", op),
			zap.Error(err),
		)
	}
	return err
}

// View runs fn against a read-only view of keys.
func (h *Host) View(ctx context.Context, keys []Key, fn func(*Tx) error) error {
	now := h.now(ctx)
	return h.Store.View(ctx, keys, func(kv KV) error {
		return fn(NewTx(kv, "", "view", now))
	})
}

// Outcome is the result of one batch instruction.
type Outcome struct {
	Index   int    `json:"index" yaml:"index"`
	Program string `json:"program" yaml:"program"`
	Op      string `json:"op" yaml:"op"`
	Code    string `json:"code" yaml:"code"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Result  any    `json:"result,omitempty" yaml:"result,omitempty"`
}

// ForEach dispatches instructions to their programs using concurrency
// goroutines. With concurrency 1 instructions run in order; above that,
// instructions on disjoint accounts may complete in any order while those
// sharing an account are still serialized by the store.
//
// A failing instruction is reported in its Outcome and does not stop the batch;
// only cancellation of ctx does.
func (h *Host) ForEach(ctx context.Context, programs map[string]Program, instructions []Instruction, concurrency uint) ([]Outcome, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("invalid concurrency %d, must be greater than or equal to 1", concurrency)
	}

	var (
		outcomes  = make([]Outcome, len(instructions))
		sem       = make(chan struct{}, concurrency)
		eg, egCtx = errgroup.WithContext(ctx)
	)

	h.log.Info(
		"Starting batch",
		zap.Int("instructions", len(instructions)),
		zap.Uint("concurrency", concurrency),
	)

loop:
	for idx, ins := range instructions {
		idx, ins := idx, ins

		select {
		case sem <- struct{}{}:
		case <-egCtx.Done():
			break loop
		}

		eg.Go(func() error {
			defer func() { <-sem }()

			if err := egCtx.Err(); err != nil {
				return err
			}

			metrics.ObserveInstruction()
			outcomes[idx] = h.dispatch(egCtx, programs, idx, ins)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (h *Host) dispatch(ctx context.Context, programs map[string]Program, idx int, ins Instruction) Outcome {
	out := Outcome{Index: idx, Program: ins.Program, Op: ins.Op}

	p, ok := programs[ins.Program]
	if !ok {
		err := Invalidf("no program registered with the name %q", ins.Program)
		out.Code, out.Error = CodeOf(err), err.Error()
		return out
	}

	if ins.At != nil {
		ctx = WithTime(ctx, *ins.At)
	}

	res, err := p.Handle(ctx, ins)
	out.Code = CodeOf(err)
	if err != nil {
		out.Error = err.Error()
		h.log.Debug(
			"Instruction failed",
			zap.Int("index", idx),
			zap.String("program", ins.Program),
			zap.String("op", ins.Op),
			zap.String("code", out.Code),
			zap.Error(err),
		)
		return out
	}
	out.Result = res
	return out
}
