package governance

import "github.com/strangelove-ventures/custodian/internal/ledger"

var (
	ErrVotingEnded         = ledger.NewError("VotingEnded", "voting period has ended")
	ErrVotingNotEnded      = ledger.NewError("VotingNotEnded", "voting period has not ended yet")
	ErrNoVotingPower       = ledger.NewError("NoVotingPower", "voter has no tokens")
	ErrAlreadyExecuted     = ledger.NewError("AlreadyExecuted", "proposal already executed")
	ErrProposalNotPassed   = ledger.NewError("ProposalNotPassed", "proposal did not pass")
	ErrDuplicateVote       = ledger.NewError("DuplicateVote", "voter has already voted on this proposal")
	ErrInvalidVotingPeriod = ledger.NewError("InvalidVotingPeriod", "voting period must be positive")

	// ErrQuorumNotMet is part of the error taxonomy but no operation raises it;
	// quorum against total supply is not enforced.
	ErrQuorumNotMet = ledger.NewError("QuorumNotMet", "quorum not met")
)
