package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunokim/resolve/compiler"
	"github.com/brunokim/resolve/kb"
	"github.com/brunokim/resolve/program"
)

var graphCmd = &cobra.Command{
	Use:   "graph FILE...",
	Short: "Print the dependency graph of programs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := newSolver(args)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), s.Compiler().Graph())
		return nil
	},
}

var dumpQuery string

var dumpCmd = &cobra.Command{
	Use:   "dump FILE... [--pred module:name/arity]... [--query GOALS]",
	Short: "Print the compiled execution graph of predicates and queries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preds, err := cmd.Flags().GetStringArray("pred")
		if err != nil {
			return err
		}
		s, _, err := newSolver(args)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		var sigs []kb.Signature
		for _, text := range preds {
			sig, err := parseSignature(text, cfg.Engine.DefaultModule)
			if err != nil {
				return err
			}
			sigs = append(sigs, sig)
		}
		if len(preds) == 0 && dumpQuery == "" {
			sigs = s.KB().Signatures()
		}
		for _, sig := range sigs {
			proc, err := s.Compiler().Procedure(sig)
			if err != nil {
				return err
			}
			fmt.Fprint(w, compiler.DumpProcedure(proc))
		}
		if dumpQuery != "" {
			goals, err := program.ParseQuery(dumpQuery)
			if err != nil {
				return fmt.Errorf("--query: %w", err)
			}
			node, err := s.Compiler().CompileBody(goals, s.KB().Scope(cfg.Engine.DefaultModule))
			if err != nil {
				return err
			}
			printHeader(w, "query")
			fmt.Fprint(w, compiler.Dump(node))
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringArray("pred", nil, "predicate to dump, as [module:]name/arity")
	dumpCmd.Flags().StringVarP(&dumpQuery, "query", "q", "", "query to dump, as a YAML goal or list of goals")
}

// parseSignature parses "module:name/arity", where the module is optional.
func parseSignature(text, module string) (kb.Signature, error) {
	if i := strings.Index(text, ":"); i > 0 && !strings.HasPrefix(text[i:], ":/") {
		module, text = text[:i], text[i+1:]
	}
	ind, err := program.ParseIndicator(text)
	if err != nil {
		return kb.Signature{}, err
	}
	return kb.Signature{Module: module, Name: ind.Name, Arity: ind.Arity}, nil
}
