package tokens_test

import (
	"context"
	"testing"

	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledger/memstore"
	"github.com/strangelove-ventures/custodian/internal/tokens"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProgram(t *testing.T) {
	ctx := context.Background()
	host := ledger.NewHost(zap.NewNop(), memstore.New(), ledger.NewManualClock(0))
	programs := map[string]ledger.Program{tokens.ProgramName: tokens.NewProgram(host)}

	batch := []ledger.Instruction{
		{Program: "token", Op: "open_account", Signer: "alice", Accounts: map[string]ledger.Address{"account": "alice/usdc", "mint": "usdc"}},
		{Program: "token", Op: "open_account", Accounts: map[string]ledger.Address{"account": "bob/usdc", "mint": "usdc", "owner": "bob"}},
		{Program: "token", Op: "mint_to", Accounts: map[string]ledger.Address{"account": "alice/usdc"}, Args: map[string]any{"amount": 100}},
		{Program: "token", Op: "transfer", Signer: "alice", Accounts: map[string]ledger.Address{"from": "alice/usdc", "to": "bob/usdc"}, Args: map[string]any{"amount": 30}},
		{Program: "token", Op: "transfer", Signer: "bob", Accounts: map[string]ledger.Address{"from": "alice/usdc", "to": "bob/usdc"}, Args: map[string]any{"amount": 1}},
		{Program: "token", Op: "balance", Accounts: map[string]ledger.Address{"account": "bob/usdc"}},
		{Program: "token", Op: "mint_to", Accounts: map[string]ledger.Address{"account": "bob/usdc"}},
	}

	out, err := host.ForEach(ctx, programs, batch, 1)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.Equal(t, ledger.CodeOK, out[i].Code, out[i].Error)
	}
	require.Equal(t, ledger.CodeTransferError, out[4].Code)
	require.Equal(t, ledger.TokenAccount{Address: "bob/usdc", Mint: "usdc", Owner: "bob", Amount: 30}, out[5].Result)
	require.Equal(t, "InvalidAmount", out[6].Code)

	bal, err := tokens.New(host).Balance(ctx, "alice/usdc")
	require.NoError(t, err)
	require.Equal(t, uint64(70), bal)
}
