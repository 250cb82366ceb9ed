package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const appName = "custodian"

var defaultHome = filepath.Join(os.Getenv("HOME"), ".custodian")

// appState is the shared state of every command in the tree.
type appState struct {
	// Viper is the viper instance for flags and environment overrides.
	Viper *viper.Viper

	// HomePath is the directory holding the config and .env files.
	HomePath string

	// Log is the root logger. It is rebuilt once the persistent flags are parsed.
	Log *zap.Logger

	Config *Config
}

// NewRootCmd returns the root command for custodian.
// If log is nil, a new zap.Logger is created from the --log-format and --debug flags.
func NewRootCmd(log *zap.Logger) *cobra.Command {
	a := &appState{
		Viper:  viper.New(),
		Log:    log,
		Config: &Config{},
	}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Execute governance, lending, staking and swap ledger operations",
		Long: strings.TrimSpace(`custodian runs batches of instructions against a family of custodial ledger
programs: a DAO treasury with proposal voting, a collateralized lending market,
a staking pool with time weighted rewards and a constant product swap pool.`),
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// --home may also come from CUSTODIAN_HOME
		a.HomePath = a.Viper.GetString(flagHome)
		if err := loadDotEnv(a.HomePath); err != nil {
			return err
		}

		if a.Log == nil {
			log, err := newRootLogger(a.Viper.GetString(flagLogFormat), a.Viper.GetBool(flagDebug))
			if err != nil {
				return err
			}
			a.Log = log
		}

		return initConfig(cmd, a)
	}

	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		// Errors are ignored here since stderr cannot be synced on most terminals.
		_ = a.Log.Sync()
	}

	rootCmd.PersistentFlags().StringVar(&a.HomePath, flagHome, defaultHome, "set home directory")
	if err := a.Viper.BindPFlag(flagHome, rootCmd.PersistentFlags().Lookup(flagHome)); err != nil {
		panic(err)
	}

	rootCmd.PersistentFlags().BoolP(flagDebug, "d", false, "debug output")
	if err := a.Viper.BindPFlag(flagDebug, rootCmd.PersistentFlags().Lookup(flagDebug)); err != nil {
		panic(err)
	}

	rootCmd.PersistentFlags().String(flagLogFormat, "auto", "log output format (auto, logfmt, json, or console)")
	if err := a.Viper.BindPFlag(flagLogFormat, rootCmd.PersistentFlags().Lookup(flagLogFormat)); err != nil {
		panic(err)
	}

	a.Viper.SetEnvPrefix(strings.ToUpper(appName))
	a.Viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.Viper.AutomaticEnv()

	rootCmd.AddCommand(
		configCmd(a),
		programsCmd(a),
		migrateCmd(a),
		runCmd(a),
		journalCmd(a),
	)

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.EnableCommandSorting = false

	rootCmd := NewRootCmd(nil)
	rootCmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		// Short delay before printing the received signal message.
		// This should result in cleaner output from non-interactive commands that stop quickly.
		time.Sleep(250 * time.Millisecond)
		fmt.Fprintln(os.Stderr, "Received signal to quit; stopping work in progress")
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv loads <home>/.env into the process environment when present.
// Variables already set take precedence.
func loadDotEnv(home string) error {
	envPath := filepath.Join(home, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	return nil
}

func newRootLogger(format string, debug bool) (*zap.Logger, error) {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	}
	config.LevelKey = "lvl"

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(config)
	case "console":
		enc = zapcore.NewConsoleEncoder(config)
	case "logfmt":
		enc = zaplogfmt.NewEncoder(config)
	case "auto":
		if term.IsTerminal(int(os.Stderr.Fd())) {
			enc = zapcore.NewConsoleEncoder(config)
		} else {
			enc = zaplogfmt.NewEncoder(config)
		}
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	return zap.New(zapcore.NewCore(enc, os.Stderr, level)), nil
}
