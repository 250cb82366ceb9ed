package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// migrateCmd creates or updates the postgres schema used by the ledger.
func migrateCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate",
		Aliases: []string{"m"},
		Short:   "Create or update the postgres ledger tables",
		Args:    cobra.NoArgs,
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s migrate
$ %s m --gorm-log-level info`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPostgres(cmd, a)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(); err != nil {
				return fmt.Errorf("failed to migrate ledger schema: %w", err)
			}

			a.Log.Info("Migrated ledger schema", zap.String("db", a.Config.DB.Name))
			return nil
		},
	}
	return gormLogFlag(a.Viper, cmd)
}

// journalCmd prints the token movements committed to the postgres store.
func journalCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "journal",
		Aliases: []string{"jr"},
		Short:   "Print committed token transfers from the postgres store",
		Args:    cobra.NoArgs,
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s journal
$ %s jr --program governance --json`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}
			yml, err := cmd.Flags().GetBool(flagYAML)
			if err != nil {
				return err
			}
			program, err := cmd.Flags().GetString(flagProgram)
			if err != nil {
				return err
			}

			store, err := openPostgres(cmd, a)
			if err != nil {
				return err
			}
			defer store.Close()

			transfers, err := store.Transfers(cmd.Context(), program)
			if err != nil {
				return err
			}

			switch {
			case yml && jsn:
				return fmt.Errorf("can't pass both --json and --yaml, must pick one")
			case yml:
				out, err := yaml.Marshal(transfers)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			case jsn:
				out, err := json.Marshal(transfers)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			default:
				for _, t := range transfers {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s/%s\t%s -> %s\t%d %s\n", t.At, t.Program, t.Op, t.From, t.To, t.Amount, t.Mint)
				}
			}
			return nil
		},
	}
	return gormLogFlag(a.Viper, programFlag(a.Viper, yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))))
}
