package ledger

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock supplies the current ledger time in unix seconds. Successive readings
// never decrease but may repeat.
type Clock interface {
	Now() int64
}

// SystemClock reads wall time.
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// ManualClock is a settable clock used for replays and tests.
type ManualClock struct {
	now atomic.Int64
}

func NewManualClock(start int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Now() int64 {
	return c.now.Load()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t int64) {
	c.now.Store(t)
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d int64) {
	c.now.Add(d)
}

type pinnedTimeKey struct{}

// WithTime pins the ledger time observed by operations run with ctx, overriding
// the host clock. Batch replays use it to give each instruction its own
// timestamp.
func WithTime(ctx context.Context, t int64) context.Context {
	return context.WithValue(ctx, pinnedTimeKey{}, t)
}

func pinnedTime(ctx context.Context) (int64, bool) {
	t, ok := ctx.Value(pinnedTimeKey{}).(int64)
	return t, ok
}
