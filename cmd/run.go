package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/ledgerdebug"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Batch is the file format accepted by the run command.
type Batch struct {
	Instructions []ledger.Instruction `yaml:"instructions" json:"instructions"`
}

// loadBatch reads a batch from a .json file or, for any other extension, YAML.
// JSON numbers are kept as strings so amounts above 2^53 survive decoding.
func loadBatch(file string) (Batch, error) {
	byt, err := os.ReadFile(file)
	if err != nil {
		return Batch{}, err
	}

	var b Batch
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(byt))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			return Batch{}, fmt.Errorf("error decoding batch %s: %w", file, err)
		}
	default:
		if err := yaml.Unmarshal(byt, &b); err != nil {
			return Batch{}, fmt.Errorf("error decoding batch %s: %w", file, err)
		}
	}

	if len(b.Instructions) == 0 {
		return Batch{}, fmt.Errorf("batch %s has no instructions", file)
	}
	return b, nil
}

// runCmd executes a batch of instructions against the configured store.
func runCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run [batch-file]",
		Aliases: []string{"r"},
		Short:   "Execute a batch of ledger instructions",
		Args:    cobra.ExactArgs(1),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s run batch.yaml
$ %s run batch.json --store postgres --concurrency 8 --json`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Determine how many goroutines will be used to execute instructions
			concurrency, err := cmd.Flags().GetUint(flagConcurrency)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return fmt.Errorf("invalid flag value %d, value of --%s must be greater than or equal to 1", concurrency, flagConcurrency)
			}

			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}
			yml, err := cmd.Flags().GetBool(flagYAML)
			if err != nil {
				return err
			}
			if jsn && yml {
				return fmt.Errorf("can't pass both --json and --yaml, must pick one")
			}

			batch, err := loadBatch(args[0])
			if err != nil {
				return err
			}

			store, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					a.Log.Warn("Failed to close store", zap.Error(err))
				}
			}()

			// Start the debug server if necessary
			if debugAddr := a.Config.DebugAddr; debugAddr == "" {
				a.Log.Debug("Skipping debug server due to empty debug address")
			} else {
				ln, err := net.Listen("tcp", debugAddr)
				if err != nil {
					a.Log.Error("Failed to listen on debug address. If you have another custodian process open, use --" + flagDebugAddr + " to pick a different address.")
					return fmt.Errorf("failed to listen on debug address %q: %w", debugAddr, err)
				}
				log := a.Log.With(zap.String("sys", "debughttp"))
				log.Info("Debug server listening", zap.String("addr", debugAddr))
				ledgerdebug.StartDebugServer(ctx, log, ln)
			}

			host := ledger.NewHost(a.Log, store, nil)
			programs, err := a.Config.EnabledPrograms(host)
			if err != nil {
				return err
			}

			outcomes, err := host.ForEach(ctx, programs, batch.Instructions, concurrency)
			if err != nil {
				return err
			}

			if err := printOutcomes(cmd, outcomes, jsn, yml); err != nil {
				return err
			}

			failed := 0
			for _, o := range outcomes {
				if o.Code != ledger.CodeOK {
					failed++
				}
			}
			a.Log.Info(
				"Finished batch",
				zap.Int("instructions", len(outcomes)),
				zap.Int("failed", failed),
			)
			if failed > 0 {
				return fmt.Errorf("%d of %d instructions failed", failed, len(outcomes))
			}
			return nil
		},
	}
	return gormLogFlag(a.Viper, storeFlag(a.Viper, debugServerFlags(a.Viper, concurrencyFlag(a.Viper, yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))))))
}

func printOutcomes(cmd *cobra.Command, outcomes []ledger.Outcome, jsn, yml bool) error {
	switch {
	case jsn:
		out, err := json.Marshal(outcomes)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	case yml:
		out, err := yaml.Marshal(outcomes)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	default:
		for _, o := range outcomes {
			line := fmt.Sprintf("%d\t%s/%s\t%s", o.Index, o.Program, o.Op, o.Code)
			if o.Error != "" {
				line += "\t" + o.Error
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
	return nil
}
