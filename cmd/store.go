package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledger/memstore"
	"github.com/strangelove-ventures/custodian/internal/ledger/pgstore"
	"go.uber.org/zap"
)

// openStore opens the account store selected by the config.
func openStore(cmd *cobra.Command, a *appState) (ledger.Store, error) {
	switch kind := a.Config.StoreKind(); kind {
	case storeMemory:
		a.Log.Info("Using in-memory store, state is discarded on exit")
		return memstore.New(), nil
	case storePostgres:
		return openPostgres(cmd, a)
	default:
		return nil, fmt.Errorf("invalid store %q, must be %s or %s", kind, storeMemory, storePostgres)
	}
}

func openPostgres(cmd *cobra.Command, a *appState) (*pgstore.Store, error) {
	level, err := cmd.Flags().GetString(flagGormLogLevel)
	if err != nil {
		return nil, err
	}
	gormLevel, err := parseGormLogLevel(level)
	if err != nil {
		return nil, err
	}

	driver := a.Config.DB.Driver
	if driver == "" {
		driver = "postgres"
	}

	a.Log.Info(
		"Connecting to database",
		zap.String("host", a.Config.DB.Host),
		zap.Int("port", a.Config.DB.Port),
		zap.String("db", a.Config.DB.Name),
		zap.String("driver", driver),
	)
	return pgstore.Open(driver, a.Config.ConnectionString(), gormLevel)
}
