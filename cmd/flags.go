package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"
)

const (
	flagHome         = "home"
	flagDebug        = "debug"
	flagLogFormat    = "log-format"
	flagJSON         = "json"
	flagYAML         = "yaml"
	flagConcurrency  = "concurrency"
	flagDebugAddr    = "debug-addr"
	flagStore        = "store"
	flagProgram      = "program"
	flagGormLogLevel = "gorm-log-level"
)

const (
	defaultDebugAddr    = "localhost:49666"
	defaultConcurrency  = 1
	defaultJSON         = false
	defaultYAML         = false
	defaultGormLogLevel = "silent"
)

func yamlFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagYAML, "y", defaultYAML, "returns the response in yaml format")
	if err := v.BindPFlag(flagYAML, cmd.Flags().Lookup(flagYAML)); err != nil {
		panic(err)
	}
	return cmd
}

func jsonFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagJSON, "j", defaultJSON, "returns the response in json format")
	if err := v.BindPFlag(flagJSON, cmd.Flags().Lookup(flagJSON)); err != nil {
		panic(err)
	}
	return cmd
}

func concurrencyFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().UintP(flagConcurrency, "c", defaultConcurrency, "specifies how many instructions to execute concurrently")
	if err := v.BindPFlag(flagConcurrency, cmd.Flags().Lookup(flagConcurrency)); err != nil {
		panic(err)
	}
	return cmd
}

func debugServerFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagDebugAddr, "", "address to use for debug server. Empty disables the debug server.")
	if err := v.BindPFlag(flagDebugAddr, cmd.Flags().Lookup(flagDebugAddr)); err != nil {
		panic(err)
	}
	return cmd
}

func storeFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringP(flagStore, "s", "", "account store to use, memory or postgres. Overrides the config file.")
	if err := v.BindPFlag(flagStore, cmd.Flags().Lookup(flagStore)); err != nil {
		panic(err)
	}
	return cmd
}

func programFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringP(flagProgram, "p", "", "only include entries written by this program")
	if err := v.BindPFlag(flagProgram, cmd.Flags().Lookup(flagProgram)); err != nil {
		panic(err)
	}
	return cmd
}

func gormLogFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringP(flagGormLogLevel, "l", defaultGormLogLevel, "gorm log level. Valid values are silent, error, warn, and info.")
	if err := v.BindPFlag(flagGormLogLevel, cmd.Flags().Lookup(flagGormLogLevel)); err != nil {
		panic(err)
	}
	return cmd
}

// flagOrEnv returns name as set on cmd, falling back to viper. Viper keys are
// shared by every command binding the same flag, so only cmd knows whether it
// was passed.
func flagOrEnv(cmd *cobra.Command, v *viper.Viper, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return f.Value.String()
	}
	return v.GetString(name)
}

func parseGormLogLevel(level string) (logger.LogLevel, error) {
	switch level {
	case "silent":
		return logger.Silent, nil
	case "error":
		return logger.Error, nil
	case "warn":
		return logger.Warn, nil
	case "info":
		return logger.Info, nil
	default:
		return 0, fmt.Errorf("invalid gorm log level %q, valid values are silent, error, warn, and info", level)
	}
}
