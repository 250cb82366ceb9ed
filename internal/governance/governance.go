// Package governance implements the DAO engine: organization registry,
// proposal lifecycle, vote tallying and treasury payouts.
package governance

import (
	"context"
	"errors"

	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/safemath"
	"go.uber.org/zap"
)

type Engine struct {
	host *ledger.Host
	log  *zap.Logger
}

func New(host *ledger.Host) *Engine {
	return &Engine{
		host: host,
		log:  host.Logger(ProgramName),
	}
}

// InitializeDaoParams configures a new DAO. TreasuryMint selects the mint held
// by the treasury and defaults to TokenMint.
type InitializeDaoParams struct {
	Name               string         `mapstructure:"name"`
	TokenMint          ledger.Address `mapstructure:"token_mint"`
	TreasuryMint       ledger.Address `mapstructure:"treasury_mint"`
	MinTokensToPropose uint64         `mapstructure:"min_tokens_to_propose"`
	VotingPeriod       int64          `mapstructure:"voting_period"`
	QuorumPercentage   uint8          `mapstructure:"quorum_percentage"`
}

// InitializeDao creates the DAO record at dao and opens its treasury.
func (e *Engine) InitializeDao(ctx context.Context, authority, dao ledger.Address, p InitializeDaoParams) (Dao, error) {
	switch {
	case authority == "" || dao == "":
		return Dao{}, ledger.Invalidf("dao and authority are required")
	case p.TokenMint == "":
		return Dao{}, ledger.Invalidf("token mint is required")
	case len(p.Name) > MaxNameLen:
		return Dao{}, ledger.Invalidf("name exceeds %d bytes", MaxNameLen)
	case p.QuorumPercentage > 100:
		return Dao{}, ledger.Invalidf("quorum percentage %d exceeds 100", p.QuorumPercentage)
	case p.VotingPeriod <= 0:
		return Dao{}, ErrInvalidVotingPeriod
	}

	treasuryMint := p.TreasuryMint
	if treasuryMint == "" {
		treasuryMint = p.TokenMint
	}

	d := Dao{
		Address:            dao,
		Name:               p.Name,
		Authority:          authority,
		TokenMint:          p.TokenMint,
		Treasury:           TreasuryAddress(dao),
		MinTokensToPropose: p.MinTokensToPropose,
		VotingPeriod:       p.VotingPeriod,
		QuorumPercentage:   p.QuorumPercentage,
	}

	keys := ledger.Keys(ledger.Records(dao), d.Treasury)
	err := e.host.Run(ctx, ProgramName, "initialize_dao", keys, func(tx *ledger.Tx) error {
		if err := tx.Insert(dao, d); err != nil {
			return err
		}
		_, err := tx.OpenTokenAccount(d.Treasury, treasuryMint, dao)
		return err
	})
	if err != nil {
		return Dao{}, err
	}

	e.log.Info(
		"Initialized dao",
		zap.String("dao", dao.String()),
		zap.String("name", d.Name),
		zap.Int64("voting_period", d.VotingPeriod),
	)
	return d, nil
}

// DepositTreasury moves amount from a token account owned by owner into the
// DAO treasury.
func (e *Engine) DepositTreasury(ctx context.Context, dao, owner, from ledger.Address, amount uint64) error {
	if amount == 0 {
		return ledger.ErrInvalidAmount
	}
	treasury := TreasuryAddress(dao)
	return e.host.Run(ctx, ProgramName, "deposit_treasury", ledger.Keys(nil, from, treasury), func(tx *ledger.Tx) error {
		return tx.Transfer(from, treasury, owner, amount)
	})
}

type CreateProposalParams struct {
	Title       string          `mapstructure:"title"`
	Description string          `mapstructure:"description"`
	Target      *ledger.Address `mapstructure:"target"`
	Amount      uint64          `mapstructure:"amount"`
}

// CreateProposal takes the next proposal id from the DAO counter and opens a
// voting window of the DAO's voting period starting now.
func (e *Engine) CreateProposal(ctx context.Context, dao, proposer ledger.Address, p CreateProposalParams) (Proposal, error) {
	switch {
	case len(p.Title) > MaxTitleLen:
		return Proposal{}, ledger.Invalidf("title exceeds %d bytes", MaxTitleLen)
	case len(p.Description) > MaxDescriptionLen:
		return Proposal{}, ledger.Invalidf("description exceeds %d bytes", MaxDescriptionLen)
	case p.Amount > 0 && (p.Target == nil || *p.Target == ""):
		return Proposal{}, ledger.Invalidf("a proposal with an amount requires a target")
	}

	var prop Proposal
	err := e.host.Run(ctx, ProgramName, "create_proposal", ledger.Keys(ledger.Records(dao)), func(tx *ledger.Tx) error {
		var d Dao
		if err := tx.Load(dao, &d); err != nil {
			return err
		}

		end, err := safemath.AddTime(tx.Now(), d.VotingPeriod)
		if err != nil {
			return err
		}
		next, err := safemath.Add(d.ProposalCount, 1)
		if err != nil {
			return err
		}

		addr := ProposalAddress(dao, d.ProposalCount)
		if err := tx.Lock(addr); err != nil {
			return err
		}

		prop = Proposal{
			ID:          d.ProposalCount,
			Address:     addr,
			Dao:         dao,
			Proposer:    proposer,
			Title:       p.Title,
			Description: p.Description,
			Target:      p.Target,
			Amount:      p.Amount,
			TokenMint:   d.TokenMint,
			StartTime:   tx.Now(),
			EndTime:     end,
		}
		if err := tx.Insert(addr, prop); err != nil {
			return err
		}

		d.ProposalCount = next
		return tx.Save(dao, d)
	})
	if err != nil {
		return Proposal{}, err
	}

	e.log.Info(
		"Created proposal",
		zap.String("dao", dao.String()),
		zap.Uint64("id", prop.ID),
		zap.Int64("end_time", prop.EndTime),
	)
	return prop, nil
}

// CastVote adds the full balance of voterToken to one side of the proposal
// tally and records the vote. side true votes for the proposal.
func (e *Engine) CastVote(ctx context.Context, proposal, voter, voterToken ledger.Address, side bool) (VoteRecord, error) {
	voteAddr := VoteAddress(proposal, voter)
	keys := ledger.Keys(ledger.Records(proposal, voteAddr), voterToken)

	var vote VoteRecord
	err := e.host.Run(ctx, ProgramName, "cast_vote", keys, func(tx *ledger.Tx) error {
		var prop Proposal
		if err := tx.Load(proposal, &prop); err != nil {
			return err
		}

		acct, err := tx.TokenAccount(voterToken)
		if err != nil {
			return err
		}
		if acct.Owner != voter || acct.Mint != prop.TokenMint {
			return ledger.ErrInvalidTokenAccount
		}

		voted, err := tx.Exists(voteAddr)
		if err != nil {
			return err
		}
		if voted {
			return ErrDuplicateVote
		}

		if tx.Now() > prop.EndTime {
			return ErrVotingEnded
		}
		if acct.Amount == 0 {
			return ErrNoVotingPower
		}

		if side {
			prop.ForVotes, err = safemath.Add(prop.ForVotes, acct.Amount)
		} else {
			prop.AgainstVotes, err = safemath.Add(prop.AgainstVotes, acct.Amount)
		}
		if err != nil {
			return err
		}

		vote = VoteRecord{
			Address:  voteAddr,
			Proposal: proposal,
			Voter:    voter,
			Side:     side,
			Weight:   acct.Amount,
			VotedAt:  tx.Now(),
		}
		if err := tx.Insert(voteAddr, vote); err != nil {
			if errors.Is(err, ledger.ErrAlreadyExists) {
				return ErrDuplicateVote
			}
			return err
		}
		return tx.Save(proposal, prop)
	})
	if err != nil {
		return VoteRecord{}, err
	}

	e.log.Debug(
		"Vote cast",
		zap.String("proposal", proposal.String()),
		zap.String("voter", voter.String()),
		zap.Bool("side", side),
		zap.Uint64("weight", vote.Weight),
	)
	return vote, nil
}

// ExecuteProposal pays out a passed proposal once its voting window has closed.
// The proposal is marked executed only after the payout succeeds.
func (e *Engine) ExecuteProposal(ctx context.Context, proposal ledger.Address) (Proposal, error) {
	var prop Proposal
	err := e.host.Run(ctx, ProgramName, "execute_proposal", ledger.Keys(ledger.Records(proposal)), func(tx *ledger.Tx) error {
		if err := tx.Load(proposal, &prop); err != nil {
			return err
		}

		switch {
		case prop.Executed:
			return ErrAlreadyExecuted
		case tx.Now() <= prop.EndTime:
			return ErrVotingNotEnded
		case !prop.Passed():
			return ErrProposalNotPassed
		}

		if prop.Amount > 0 {
			treasury := TreasuryAddress(prop.Dao)
			if err := tx.LockTokens(treasury, *prop.Target); err != nil {
				return err
			}

			balance, err := tx.BalanceOf(treasury)
			if err != nil {
				return err
			}
			if balance < prop.Amount {
				return ledger.ErrInsufficientFunds
			}
			if err := tx.Transfer(treasury, *prop.Target, prop.Dao, prop.Amount); err != nil {
				return err
			}
		}

		prop.Executed = true
		return tx.Save(proposal, prop)
	})
	if err != nil {
		return Proposal{}, err
	}

	e.log.Info(
		"Executed proposal",
		zap.String("proposal", proposal.String()),
		zap.Uint64("amount", prop.Amount),
	)
	return prop, nil
}

func (e *Engine) GetDao(ctx context.Context, dao ledger.Address) (Dao, error) {
	var d Dao
	err := e.host.View(ctx, ledger.Keys(ledger.Records(dao)), func(tx *ledger.Tx) error {
		return tx.Load(dao, &d)
	})
	return d, err
}

func (e *Engine) GetProposal(ctx context.Context, proposal ledger.Address) (Proposal, error) {
	var p Proposal
	err := e.host.View(ctx, ledger.Keys(ledger.Records(proposal)), func(tx *ledger.Tx) error {
		return tx.Load(proposal, &p)
	})
	return p, err
}

// GetVote returns the vote receipt of voter on proposal.
func (e *Engine) GetVote(ctx context.Context, proposal, voter ledger.Address) (VoteRecord, error) {
	var v VoteRecord
	addr := VoteAddress(proposal, voter)
	err := e.host.View(ctx, ledger.Keys(ledger.Records(addr)), func(tx *ledger.Tx) error {
		return tx.Load(addr, &v)
	})
	return v, err
}
