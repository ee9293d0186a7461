// Package cli implements the graphfill command-line interface: it fills a
// SQLite database from JSON documents using a YAML catalog of entity types.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool
}

// app carries what PersistentPreRunE resolved for the running command.
type app struct {
	flags     rootFlags
	configDir string
	config    types.Config
	logger    *zap.Logger
}

// NewRootCmd creates the top-level "graphfill" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "graphfill",
		Short: "Fill a relational store from nested JSON documents",
		Long: `graphfill materializes nested JSON documents into related records.
Entity types and their relations come from a YAML catalog; records are
stored in SQLite and written in one transaction per fill.`,
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: .graphfill)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newFillCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportCmd(a))
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// setup resolves directories, loads config.yaml and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := resolveConfigDir(a.flags.configDir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(configDir, a.flags.dataDir)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return userError(fmt.Errorf("config: %w", err))
	}

	logger, err := initLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.configDir = configDir
	a.config = cfg
	a.logger = logger
	return nil
}

// initLogger builds the process logger at level, writing to out, and
// installs it as the pingcap global so every component defaults to it.
func initLogger(level string, out io.Writer) (*zap.Logger, error) {
	if level == "" {
		level = "warn"
	}
	ws := zapcore.AddSync(out)
	logger, props, err := log.InitLoggerWithWriteSyncer(&log.Config{Level: level, Format: "text"}, ws, ws)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.ReplaceGlobals(logger, props)
	return logger, nil
}

// cliError carries the exit code a command failure maps to.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func userError(err error) error { return &cliError{code: exitUserError, err: err} }
func sysError(err error) error  { return &cliError{code: exitSysError, err: err} }

// exitCode maps err to a process exit code. Mapping and lookup failures in
// the input are user errors; everything else is a system error.
func exitCode(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrMapping),
		errors.Is(err, types.ErrUnknownType),
		errors.Is(err, types.ErrNotFound):
		return exitUserError
	}
	return exitSysError
}
