package governance_test

import (
	"context"
	"sync"
	"testing"

	"github.com/strangelove-ventures/custodian/internal/governance"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledger/memstore"
	"github.com/strangelove-ventures/custodian/internal/tokens"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	govMint = ledger.Address("gov")
	dao     = ledger.Address("dao")
	admin   = ledger.Address("admin")
)

type env struct {
	t      *testing.T
	ctx    context.Context
	clock  *ledger.ManualClock
	store  *memstore.Store
	tokens *tokens.Engine
	gov    *governance.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := ledger.NewManualClock(0)
	store := memstore.New()
	host := ledger.NewHost(zap.NewNop(), store, clock)
	return &env{
		t:      t,
		ctx:    context.Background(),
		clock:  clock,
		store:  store,
		tokens: tokens.New(host),
		gov:    governance.New(host),
	}
}

// holder opens a governed token account for owner holding amount.
func (e *env) holder(owner ledger.Address, amount uint64) ledger.Address {
	e.t.Helper()
	addr := ledger.Address(string(owner) + "/gov")
	_, err := e.tokens.OpenAccount(e.ctx, addr, govMint, owner)
	require.NoError(e.t, err)
	if amount > 0 {
		_, err = e.tokens.MintTo(e.ctx, addr, amount)
		require.NoError(e.t, err)
	}
	return addr
}

func (e *env) initDao(period int64) governance.Dao {
	e.t.Helper()
	d, err := e.gov.InitializeDao(e.ctx, admin, dao, governance.InitializeDaoParams{
		Name:             "custodians",
		TokenMint:        govMint,
		VotingPeriod:     period,
		QuorumPercentage: 10,
	})
	require.NoError(e.t, err)
	return d
}

func (e *env) balance(addr ledger.Address) uint64 {
	e.t.Helper()
	b, err := e.tokens.Balance(e.ctx, addr)
	require.NoError(e.t, err)
	return b
}

func TestInitializeDao(t *testing.T) {
	e := newEnv(t)
	d := e.initDao(100)
	require.Equal(t, uint64(0), d.ProposalCount)
	require.Equal(t, governance.TreasuryAddress(dao), d.Treasury)

	treasury, err := e.tokens.Account(e.ctx, d.Treasury)
	require.NoError(t, err)
	require.Equal(t, dao, treasury.Owner)
	require.Equal(t, govMint, treasury.Mint)

	_, err = e.gov.InitializeDao(e.ctx, admin, dao, governance.InitializeDaoParams{TokenMint: govMint, VotingPeriod: 5})
	require.ErrorIs(t, err, ledger.ErrAlreadyExists)

	for _, period := range []int64{0, -1} {
		_, err = e.gov.InitializeDao(e.ctx, admin, "other", governance.InitializeDaoParams{TokenMint: govMint, VotingPeriod: period})
		require.ErrorIs(t, err, governance.ErrInvalidVotingPeriod)
	}

	_, err = e.gov.InitializeDao(e.ctx, admin, "other", governance.InitializeDaoParams{TokenMint: govMint, VotingPeriod: 5, QuorumPercentage: 101})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestProposalIDsAndWindow(t *testing.T) {
	e := newEnv(t)
	e.initDao(100)

	for i := uint64(0); i < 3; i++ {
		e.clock.Set(int64(i) * 7)
		p, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{Title: "p"})
		require.NoError(t, err)
		require.Equal(t, i, p.ID)
		require.Equal(t, governance.ProposalAddress(dao, i), p.Address)
		require.Equal(t, p.StartTime+100, p.EndTime)
	}

	d, err := e.gov.GetDao(e.ctx, dao)
	require.NoError(t, err)
	require.Equal(t, uint64(3), d.ProposalCount)

	_, err = e.gov.CreateProposal(e.ctx, "missing", "alice", governance.CreateProposalParams{})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{Amount: 5})
	require.ErrorIs(t, err, ledger.ErrInvalidArgument)
}

func TestCreateProposalTimeOverflow(t *testing.T) {
	e := newEnv(t)
	e.initDao(100)
	e.clock.Set(1<<63 - 50)

	_, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{})
	require.ErrorIs(t, err, ledger.ErrOverflow)

	d, err := e.gov.GetDao(e.ctx, dao)
	require.NoError(t, err)
	require.Equal(t, uint64(0), d.ProposalCount)
}

func TestConcurrentProposalsGetDistinctIDs(t *testing.T) {
	e := newEnv(t)
	e.initDao(100)

	const n = 16
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{})
			require.NoError(t, err)
			ids <- p.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

// The DAO scenario: period 100, created at 0, 50 for at 10, 10 against at 50,
// execute fails at 99 and pays out once at 101.
func TestProposalLifecycle(t *testing.T) {
	e := newEnv(t)
	d := e.initDao(100)

	funder := e.holder("funder", 1000)
	require.NoError(t, e.gov.DepositTreasury(e.ctx, dao, "funder", funder, 500))

	target := e.holder("grantee", 0)
	alice := e.holder("alice", 50)
	bob := e.holder("bob", 10)

	prop, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{
		Title:  "fund grantee",
		Target: &target,
		Amount: 200,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), prop.EndTime)

	e.clock.Set(10)
	v, err := e.gov.CastVote(e.ctx, prop.Address, "alice", alice, true)
	require.NoError(t, err)
	require.Equal(t, uint64(50), v.Weight)

	e.clock.Set(50)
	_, err = e.gov.CastVote(e.ctx, prop.Address, "bob", bob, false)
	require.NoError(t, err)

	e.clock.Set(99)
	_, err = e.gov.ExecuteProposal(e.ctx, prop.Address)
	require.ErrorIs(t, err, governance.ErrVotingNotEnded)

	e.clock.Set(100)
	_, err = e.gov.ExecuteProposal(e.ctx, prop.Address)
	require.ErrorIs(t, err, governance.ErrVotingNotEnded)

	e.clock.Set(101)
	executed, err := e.gov.ExecuteProposal(e.ctx, prop.Address)
	require.NoError(t, err)
	require.True(t, executed.Executed)
	require.Equal(t, uint64(50), executed.ForVotes)
	require.Equal(t, uint64(10), executed.AgainstVotes)

	require.Equal(t, uint64(200), e.balance(target))
	require.Equal(t, uint64(300), e.balance(d.Treasury))

	_, err = e.gov.ExecuteProposal(e.ctx, prop.Address)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
	require.Equal(t, uint64(200), e.balance(target))
}

func TestCastVoteRejections(t *testing.T) {
	e := newEnv(t)
	e.initDao(100)

	alice := e.holder("alice", 50)
	empty := e.holder("carol", 0)
	_, err := e.tokens.OpenAccount(e.ctx, "alice/other", "other", "alice")
	require.NoError(t, err)

	prop, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{Title: "t"})
	require.NoError(t, err)

	_, err = e.gov.CastVote(e.ctx, prop.Address, "carol", empty, true)
	require.ErrorIs(t, err, governance.ErrNoVotingPower)

	_, err = e.gov.CastVote(e.ctx, prop.Address, "bob", alice, true)
	require.ErrorIs(t, err, ledger.ErrInvalidTokenAccount)

	_, err = e.gov.CastVote(e.ctx, prop.Address, "alice", "alice/other", true)
	require.ErrorIs(t, err, ledger.ErrInvalidTokenAccount)

	_, err = e.gov.CastVote(e.ctx, prop.Address, "alice", alice, true)
	require.NoError(t, err)
	_, err = e.gov.CastVote(e.ctx, prop.Address, "alice", alice, false)
	require.ErrorIs(t, err, governance.ErrDuplicateVote)

	// voting on the last second of the window is allowed
	e.clock.Set(100)
	_, err = e.gov.CastVote(e.ctx, prop.Address, "dave", e.holder("dave", 1), false)
	require.NoError(t, err)

	e.clock.Set(101)
	_, err = e.gov.CastVote(e.ctx, prop.Address, "erin", e.holder("erin", 1), true)
	require.ErrorIs(t, err, governance.ErrVotingEnded)

	got, err := e.gov.GetProposal(e.ctx, prop.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(50), got.ForVotes)
	require.Equal(t, uint64(1), got.AgainstVotes)

	_, err = e.gov.GetVote(e.ctx, prop.Address, "erin")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestConcurrentDuplicateVotes(t *testing.T) {
	e := newEnv(t)
	e.initDao(100)
	alice := e.holder("alice", 50)

	prop, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{})
	require.NoError(t, err)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.gov.CastVote(e.ctx, prop.Address, "alice", alice, true)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case ledger.CodeOf(err) == governance.ErrDuplicateVote.Code:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, dup)

	got, err := e.gov.GetProposal(e.ctx, prop.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(50), got.ForVotes)
}

func TestExecuteProposalFailures(t *testing.T) {
	e := newEnv(t)
	d := e.initDao(10)
	target := e.holder("grantee", 0)
	alice := e.holder("alice", 5)
	bob := e.holder("bob", 5)

	// tie does not pass
	tied, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{})
	require.NoError(t, err)
	_, err = e.gov.CastVote(e.ctx, tied.Address, "alice", alice, true)
	require.NoError(t, err)
	_, err = e.gov.CastVote(e.ctx, tied.Address, "bob", bob, false)
	require.NoError(t, err)

	// passes but the treasury is empty
	unfunded, err := e.gov.CreateProposal(e.ctx, dao, "alice", governance.CreateProposalParams{Target: &target, Amount: 7})
	require.NoError(t, err)
	_, err = e.gov.CastVote(e.ctx, unfunded.Address, "alice", alice, true)
	require.NoError(t, err)

	e.clock.Set(11)
	_, err = e.gov.ExecuteProposal(e.ctx, tied.Address)
	require.ErrorIs(t, err, governance.ErrProposalNotPassed)

	_, err = e.gov.ExecuteProposal(e.ctx, unfunded.Address)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := e.gov.GetProposal(e.ctx, unfunded.Address)
	require.NoError(t, err)
	require.False(t, got.Executed)

	// funding the treasury lets the same proposal execute
	funder := e.holder("funder", 7)
	require.NoError(t, e.gov.DepositTreasury(e.ctx, dao, "funder", funder, 7))
	_, err = e.gov.ExecuteProposal(e.ctx, unfunded.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(7), e.balance(target))
	require.Zero(t, e.balance(d.Treasury))

	// three mints, one deposit, one payout
	require.Len(t, e.store.Transfers(), 5)
}
