package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/program"
	"github.com/brunokim/resolve/solver"
)

var replModule string

var replCmd = &cobra.Command{
	Use:   "repl [FILE...]",
	Short: "Read queries interactively, enumerating solutions on demand",
	Long: `Read queries interactively, enumerating solutions on demand.

A query is a YAML goal or list of goals ending with '.', and may span many lines:

	?- [{member: [X, [a, b]]},
	|   {'\=': [X, a]}].

After each solution, type ';' for the next one or '.' to stop. Ctrl-C interrupts a
running query.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := newSolver(args)
		if err != nil {
			return err
		}
		home, _ := os.UserHomeDir()
		rl, err := readline.NewEx(&readline.Config{
			Prompt:                 "?- ",
			HistoryFile:            filepath.Join(home, ".resolve_history"),
			DisableAutoSaveHistory: true,
			Stdout:                 cmd.OutOrStdout(),
			Stderr:                 cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		r := &repl{solver: s, readline: rl, out: rl.Stdout(), module: replModule}
		r.mainLoop()
		return nil
	},
}

func init() {
	replCmd.Flags().StringVar(&replModule, "module", "", "module of queries")
}

type repl struct {
	solver   *solver.Solver
	readline *readline.Instance
	out      io.Writer
	module   string
	// ctx of the running query, done on Ctrl-C.
	ctx context.Context
}

func (r *repl) mainLoop() {
	for {
		goals, isClose := r.readQuery()
		if isClose {
			return
		}
		r.enumerate(goals)
	}
}

func (r *repl) enumerate(goals []logic.Term) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	r.ctx = ctx
	results := r.solver.QueryIn(ctx, r.module, goals...)
	for !r.solutionState(results) {
	}
	cancel()
	for range results {
	}
}

// readQuery reads lines until one ends with '.'. It returns true when the input is closed.
func (r *repl) readQuery() ([]logic.Term, bool) {
	for {
		r.readline.SetPrompt("?- ")
		var lines []string
		for {
			line, err := r.readline.Readline()
			if err != nil {
				return nil, true
			}
			line = strings.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			lines = append(lines, line)
			if !strings.HasSuffix(line, ".") {
				r.readline.SetPrompt("|  ")
				continue
			}
			break
		}
		text := strings.Join(lines, "\n")
		r.readline.SaveHistory(strings.Join(lines, " "))
		goals, err := program.ParseQuery(strings.TrimSuffix(text, "."))
		if err != nil {
			printError(r.out, err)
			continue
		}
		return goals, false
	}
}

// solutionState prints the next solution. It returns true when the enumeration is over.
func (r *repl) solutionState(results <-chan solver.Result) bool {
	result, ok := <-results
	if result.Err != nil {
		printError(r.out, result.Err)
		return true
	}
	if !ok && r.ctx.Err() != nil {
		printError(r.out, fmt.Errorf("interrupted"))
		return true
	}
	printSolution(r.out, result.Solution, ok)
	if !ok {
		return true
	}
	return r.readCommand()
}

// readCommand reads ';' for the next solution, or '.' to stop.
func (r *repl) readCommand() bool {
	r.readline.SetPrompt("")
	for {
		line, err := r.readline.Readline()
		if err != nil {
			return true
		}
		switch strings.TrimSpace(line) {
		case ";":
			return false
		case ".", "":
			return true
		}
		fmt.Fprintln(r.out, "Expecting '.' or ';'")
	}
}
