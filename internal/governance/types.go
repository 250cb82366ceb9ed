package governance

import (
	"strconv"

	"github.com/strangelove-ventures/custodian/internal/ledger"
)

const ProgramName = "governance"

// Field limits.
const (
	MaxNameLen        = 64
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// Dao holds the voting parameters of a governed organization.
type Dao struct {
	Address            ledger.Address `json:"address" yaml:"address"`
	Name               string         `json:"name" yaml:"name"`
	Authority          ledger.Address `json:"authority" yaml:"authority"`
	TokenMint          ledger.Address `json:"token_mint" yaml:"token_mint"`
	Treasury           ledger.Address `json:"treasury" yaml:"treasury"`
	MinTokensToPropose uint64         `json:"min_tokens_to_propose" yaml:"min_tokens_to_propose"`
	VotingPeriod       int64          `json:"voting_period" yaml:"voting_period"`
	QuorumPercentage   uint8          `json:"quorum_percentage" yaml:"quorum_percentage"`
	ProposalCount      uint64         `json:"proposal_count" yaml:"proposal_count"`
}

// Proposal is a time boxed request to pay Amount from the DAO treasury to
// Target. TokenMint is the DAO's governed mint at creation, which lets votes
// check voter token accounts without locking the DAO record.
type Proposal struct {
	ID           uint64          `json:"id" yaml:"id"`
	Address      ledger.Address  `json:"address" yaml:"address"`
	Dao          ledger.Address  `json:"dao" yaml:"dao"`
	Proposer     ledger.Address  `json:"proposer" yaml:"proposer"`
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description" yaml:"description"`
	Target       *ledger.Address `json:"target,omitempty" yaml:"target,omitempty"`
	Amount       uint64          `json:"amount" yaml:"amount"`
	TokenMint    ledger.Address  `json:"token_mint" yaml:"token_mint"`
	StartTime    int64           `json:"start_time" yaml:"start_time"`
	EndTime      int64           `json:"end_time" yaml:"end_time"`
	ForVotes     uint64          `json:"for_votes" yaml:"for_votes"`
	AgainstVotes uint64          `json:"against_votes" yaml:"against_votes"`
	Executed     bool            `json:"executed" yaml:"executed"`
}

// Passed reports whether for votes strictly exceed against votes.
func (p Proposal) Passed() bool {
	return p.ForVotes > p.AgainstVotes
}

// VoteRecord is the receipt of a single vote. Its existence prevents the voter
// from voting on the proposal again.
type VoteRecord struct {
	Address  ledger.Address `json:"address" yaml:"address"`
	Proposal ledger.Address `json:"proposal" yaml:"proposal"`
	Voter    ledger.Address `json:"voter" yaml:"voter"`
	Side     bool           `json:"side" yaml:"side"`
	Weight   uint64         `json:"weight" yaml:"weight"`
	VotedAt  int64          `json:"voted_at" yaml:"voted_at"`
}

// TreasuryAddress is the token account holding the funds of dao.
func TreasuryAddress(dao ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, dao, "treasury")
}

// ProposalAddress locates proposal id of dao.
func ProposalAddress(dao ledger.Address, id uint64) ledger.Address {
	return ledger.Derive(ProgramName, dao, "proposal", strconv.FormatUint(id, 10))
}

// VoteAddress locates the vote receipt of voter on proposal.
func VoteAddress(proposal, voter ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, proposal, "vote", string(voter))
}
