package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/accord/internal/config"
	"github.com/roach88/accord/internal/history"
	"github.com/roach88/accord/internal/node"
	"github.com/roach88/accord/internal/store"
	"github.com/roach88/accord/internal/timetravel"
)

// env is the wired runtime every command works against: config, logger,
// open database and the replication layers on top of it.
type env struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *store.Store
	log       *history.Log
	nodes     *node.Store
	formatter *OutputFormatter
}

// openEnv loads configuration, opens the database and wires the stack.
// Callers must Close.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	logger, err := newLogger(cfg.Logging.Level, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "init logger", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database "+cfg.DBPath, err)
	}

	log := history.NewLog(db)
	nodes := node.NewStore(db, log, node.WithLogger(logger))

	return &env{
		cfg:    cfg,
		logger: logger,
		db:     db,
		log:    log,
		nodes:  nodes,
		formatter: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (e *env) timetravel() *timetravel.Controller {
	return timetravel.NewController(e.nodes, e.log, e.logger)
}

func (e *env) Close() {
	_ = e.logger.Sync()
	_ = e.db.Close()
}

// newLogger builds a zap logger writing to stderr so command output on
// stdout stays clean. Verbose forces debug level.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
