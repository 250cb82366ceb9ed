package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

func configCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Manage configuration file",
	}

	cmd.AddCommand(
		configShowCmd(a),
		configInitCmd(a),
	)

	return cmd
}

// Config provides app wide configuration settings.
type Config struct {
	DB        DatabaseConfig `yaml:"database" json:"database"`
	Store     string         `yaml:"store" json:"store"`
	Programs  []string       `yaml:"programs" json:"programs"`
	DebugAddr string         `yaml:"debug-addr" json:"debug-addr"`
}

// DatabaseConfig represents the connection details for the database.
type DatabaseConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Name     string `yaml:"db-name" json:"db-name"`
	SSLMode  string `yaml:"ssl-mode" json:"ssl-mode"`
	Driver   string `yaml:"driver" json:"driver"`
}

// configInitCmd initializes an empty config at the location specified via the --home flag.
func configInitCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"i"},
		Short:   "Creates a default home directory at path defined by --home",
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s config init --home %s
$ %s cfg i`, appName, defaultHome, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := path.Join(a.HomePath, "config")
			cfgPath := path.Join(cfgDir, "config.yaml")

			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			} else if !os.IsNotExist(err) {
				return err
			}

			if err := os.MkdirAll(cfgDir, os.ModePerm); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, defaultConfig(), 0600); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
			return nil
		},
	}
	return cmd
}

// configShowCmd returns the configuration file in json or yaml format.
func configShowCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"s", "list", "l"},
		Short:   "Prints current configuration",
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s config show --home %s
$ %s cfg list`, appName, defaultHome, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := path.Join(a.HomePath, "config", "config.yaml")
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if _, err := os.Stat(a.HomePath); os.IsNotExist(err) {
					return fmt.Errorf("home path does not exist: %s", a.HomePath)
				}
				return fmt.Errorf("config does not exist: %s", cfgPath)
			}

			jsn, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}
			yml, err := cmd.Flags().GetBool(flagYAML)
			if err != nil {
				return err
			}
			switch {
			case yml && jsn:
				return fmt.Errorf("can't pass both --json and --yaml, must pick one")
			case jsn:
				out, err := json.Marshal(a.Config)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			default:
				out, err := yaml.Marshal(a.Config)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
		},
	}

	return yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))
}

// initConfig reads in the config file and ENV variables if set.
// This is called as a persistent pre-run command of the root command.
func initConfig(cmd *cobra.Command, a *appState) error {
	cfgPath := path.Join(a.HomePath, "config", "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		a.Viper.SetConfigFile(cfgPath)
		err = a.Viper.ReadInConfig()
		if err != nil {
			return fmt.Errorf("failed to read in config: %w", err)
		}

		// read the config file bytes
		file, err := os.ReadFile(a.Viper.ConfigFileUsed())
		if err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}

		// unmarshall them into the struct
		if err = yaml.Unmarshal(file, a.Config); err != nil {
			return fmt.Errorf("error unmarshalling config: %w", err)
		}
	}

	// flags and CUSTODIAN_* variables win over the file
	if store := flagOrEnv(cmd, a.Viper, flagStore); store != "" {
		a.Config.Store = store
	}
	if addr := flagOrEnv(cmd, a.Viper, flagDebugAddr); addr != "" {
		a.Config.DebugAddr = addr
	}
	if pw := os.Getenv("CUSTODIAN_DB_PASSWORD"); pw != "" {
		a.Config.DB.Password = pw
	}

	return a.Config.Validate()
}

// Validate checks the settings that have a fixed set of valid values.
func (c *Config) Validate() error {
	switch c.Store {
	case "", storeMemory, storePostgres:
	default:
		return fmt.Errorf("invalid store %q, must be %s or %s", c.Store, storeMemory, storePostgres)
	}
	for _, name := range c.Programs {
		if !isProgramName(name) {
			return fmt.Errorf("there is no program registered with the name %s", name)
		}
	}
	return nil
}

// StoreKind returns the configured store, defaulting to memory.
func (c *Config) StoreKind() string {
	if c.Store == "" {
		return storeMemory
	}
	return c.Store
}

// defaultConfig returns the yaml string representation of the default configuration settings.
func defaultConfig() []byte {
	return Config{
		DB: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "custodian",
			Password: "password123",
			Name:     "custodian",
			SSLMode:  "disable",
			Driver:   "postgres",
		},
		Store:     storeMemory,
		Programs:  programNames(),
		DebugAddr: defaultDebugAddr,
	}.MustYAML()
}

// ConnectionString returns a string used in connecting to the database,
// the string is created with the database connection details from the Config's DatabaseConfig.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

// MustYAML returns the yaml string representation of the Config,
// and panics on any errors encountered.
func (c Config) MustYAML() []byte {
	out, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	return out
}
