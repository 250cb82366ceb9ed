package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strangelove-ventures/custodian/internal/governance"
	"github.com/strangelove-ventures/custodian/internal/ledger"
	"github.com/strangelove-ventures/custodian/internal/lending"
	"github.com/strangelove-ventures/custodian/internal/staking"
	"github.com/strangelove-ventures/custodian/internal/swap"
	"github.com/strangelove-ventures/custodian/internal/tokens"
	"gopkg.in/yaml.v3"
)

// programNames lists every program the CLI can register, in display order.
func programNames() []string {
	return []string{
		tokens.ProgramName,
		governance.ProgramName,
		lending.ProgramName,
		staking.ProgramName,
		swap.ProgramName,
	}
}

func isProgramName(name string) bool {
	for _, n := range programNames() {
		if n == name {
			return true
		}
	}
	return false
}

// GetProgramByName returns a ledger.Program bound to host if there is one
// registered under name.
//
// NOTE: New programs should be registered here in a case that returns the
// program when name matches the value returned by Program.Name(), and added to
// programNames.
func (c *Config) GetProgramByName(host *ledger.Host, name string) (ledger.Program, error) {
	switch name {
	case tokens.ProgramName:
		return tokens.NewProgram(host), nil
	case governance.ProgramName:
		return governance.NewProgram(host), nil
	case lending.ProgramName:
		return lending.NewProgram(host), nil
	case staking.ProgramName:
		return staking.NewProgram(host), nil
	case swap.ProgramName:
		return swap.NewProgram(host), nil
	default:
		return nil, fmt.Errorf("there is no program registered with the name %s", name)
	}
}

// EnabledPrograms returns the configured programs keyed by name. An empty
// programs list enables all of them.
func (c *Config) EnabledPrograms(host *ledger.Host) (map[string]ledger.Program, error) {
	names := c.Programs
	if len(names) == 0 {
		names = programNames()
	}

	programs := make(map[string]ledger.Program, len(names))
	for _, name := range names {
		p, err := c.GetProgramByName(host, name)
		if err != nil {
			return nil, err
		}
		programs[p.Name()] = p
	}
	return programs, nil
}

type programInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Ops     []string `json:"ops" yaml:"ops"`
	Enabled bool     `json:"enabled" yaml:"enabled"`
}

func programsCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "programs",
		Aliases: []string{"pr"},
		Short:   "Inspect the ledger programs",
	}

	cmd.AddCommand(
		programsListCmd(a),
	)

	return cmd
}

// programsListCmd lists every registered program and the ops it accepts.
func programsListCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Args:    cobra.NoArgs,
		Short:   "List registered programs and their ops",
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s programs list
$ %s pr l --json`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}
			yml, err := cmd.Flags().GetBool(flagYAML)
			if err != nil {
				return err
			}

			// Ops do not depend on state, so a host without storage is enough.
			host := ledger.NewHost(a.Log, nil, nil)
			enabled := make(map[string]bool)
			for _, name := range a.Config.Programs {
				enabled[name] = true
			}

			var infos []programInfo
			for _, name := range programNames() {
				p, err := a.Config.GetProgramByName(host, name)
				if err != nil {
					return err
				}
				infos = append(infos, programInfo{
					Name:    p.Name(),
					Ops:     p.Ops(),
					Enabled: len(a.Config.Programs) == 0 || enabled[name],
				})
			}

			switch {
			case yml && jsn:
				return fmt.Errorf("can't pass both --json and --yaml, must pick one")
			case yml:
				out, err := yaml.Marshal(infos)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			case jsn:
				out, err := json.Marshal(infos)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			default:
				for _, info := range infos {
					status := ""
					if !info.Enabled {
						status = " (disabled)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s: %s\n", info.Name, status, strings.Join(info.Ops, ", "))
				}
			}
			return nil
		},
	}
	return yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))
}
