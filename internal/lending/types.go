package lending

import "github.com/strangelove-ventures/custodian/internal/ledger"

const ProgramName = "lending"

var ErrInsufficientCollateral = ledger.NewError("InsufficientCollateral", "insufficient collateral")

// Market is a single-asset lending market. InterestRate is recorded but never
// applied to balances.
type Market struct {
	Address      ledger.Address `json:"address" yaml:"address"`
	Authority    ledger.Address `json:"authority" yaml:"authority"`
	TokenMint    ledger.Address `json:"token_mint" yaml:"token_mint"`
	Vault        ledger.Address `json:"vault" yaml:"vault"`
	InterestRate uint16         `json:"interest_rate" yaml:"interest_rate"`
}

// UserAccount tracks one user's position in a market. After every borrow
// BorrowedAmount*2 <= DepositedAmount.
type UserAccount struct {
	Address         ledger.Address `json:"address" yaml:"address"`
	Market          ledger.Address `json:"market" yaml:"market"`
	Owner           ledger.Address `json:"owner" yaml:"owner"`
	DepositedAmount uint64         `json:"deposited_amount" yaml:"deposited_amount"`
	BorrowedAmount  uint64         `json:"borrowed_amount" yaml:"borrowed_amount"`
}

// VaultAddress is the token account holding the collateral of market.
func VaultAddress(market ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, market, "vault")
}

// UserAccountAddress locates the position of user in market.
func UserAccountAddress(market, user ledger.Address) ledger.Address {
	return ledger.Derive(ProgramName, market, "user", string(user))
}
