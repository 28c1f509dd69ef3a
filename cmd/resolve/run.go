package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/program"
	"github.com/brunokim/resolve/solver"
)

var (
	runQuery   string
	runModule  string
	runTimeout time.Duration
	runLimit   int
)

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Run the queries of programs, and the one given by --query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, programs, err := newSolver(args)
		if err != nil {
			return err
		}
		var queries []*program.Query
		for _, p := range programs {
			queries = append(queries, p.Queries...)
		}
		if runQuery != "" {
			goals, err := program.ParseQuery(runQuery)
			if err != nil {
				return fmt.Errorf("--query: %w", err)
			}
			queries = append(queries, &program.Query{Module: runModule, Goals: goals})
		}
		if len(queries) == 0 {
			return fmt.Errorf("no queries in %s, and no --query given", strings.Join(args, ", "))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		var failed int
		for _, q := range queries {
			if err := runOne(ctx, cmd.OutOrStdout(), s, q); err != nil {
				printError(cmd.ErrOrStderr(), err)
				failed++
			}
			if ctx.Err() != nil {
				break
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d queries failed", failed, len(queries))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "query as a YAML goal or list of goals")
	runCmd.Flags().StringVar(&runModule, "module", "", "module of --query")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "time limit per query, 0 for no limit")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "maximum number of solutions per query, 0 for all")
}

func runOne(ctx context.Context, w io.Writer, s *solver.Solver, q *program.Query) error {
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}
	queryCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	printHeader(w, "?- %v.", logic.Conjunction(q.Goals...))
	start := time.Now()
	results := s.QueryIn(queryCtx, q.Module, q.Goals...)
	var n int
	for result := range results {
		if result.Err != nil {
			return result.Err
		}
		printSolution(w, result.Solution, true)
		n++
		if runLimit > 0 && n >= runLimit {
			break
		}
	}
	cancel()
	for range results {
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("query stopped after %d solutions: %w", n, err)
	}
	if n == 0 {
		printSolution(w, nil, false)
	}
	logger.Info("query finished",
		zap.String("module", q.Module),
		zap.Int("solutions", n),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
