// Command resolve loads YAML logic programs and runs queries against them.
//
//	resolve run family.yaml --query '{grandparent: [ann, X]}'
//	resolve repl family.yaml
//	resolve graph family.yaml
//	resolve dump family.yaml --pred user:grandparent/2
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brunokim/resolve/config"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/program"
	"github.com/brunokim/resolve/solver"
)

var (
	configPath string
	logLevel   string
	iterLimit  int
	noInline   bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "resolve",
	Short:         "Run queries against logic programs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("iter-limit") {
			cfg.Engine.IterLimit = iterLimit
		}
		if noInline {
			cfg.Engine.Inline = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = cfg.Logging.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "resolve.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&iterLimit, "iter-limit", 0, "maximum number of operations per query, 0 for no limit")
	rootCmd.PersistentFlags().BoolVar(&noInline, "no-inline", false, "disable inlining of predicates")

	rootCmd.AddCommand(runCmd, replCmd, graphCmd, dumpCmd)
}

// newSolver returns a solver with every program file loaded, in order.
func newSolver(files []string) (*solver.Solver, []*program.Program, error) {
	s := solver.New(
		solver.WithConfig(cfg.Engine),
		solver.WithLogger(logger),
		solver.WithSink(errors.LogSink{Logger: logger}))
	var programs []*program.Program
	for _, file := range files {
		p, err := program.Load(file)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Load(p); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", file, err)
		}
		logger.Info("consulted",
			zap.String("file", file),
			zap.Int("modules", len(p.Modules)),
			zap.Int("queries", len(p.Queries)))
		programs = append(programs, p)
	}
	return s, programs, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
