package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/brunokim/resolve/solver"
)

var (
	solutionColor = color.New(color.FgGreen)
	falseColor    = color.New(color.FgRed)
	errorColor    = color.New(color.FgRed, color.Bold)
	headerColor   = color.New(color.FgCyan)
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// printSolution writes a solution, or "false." if ok is not set.
func printSolution(w io.Writer, solution solver.Solution, ok bool) {
	if !ok {
		falseColor.Fprintln(w, "false.")
		return
	}
	solutionColor.Fprintln(w, solution)
}

func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "error: %v\n", err)
}

func printHeader(w io.Writer, format string, args ...interface{}) {
	headerColor.Fprintln(w, fmt.Sprintf(format, args...))
}
