// Package fuzz has a go-fuzz harness for the program decoder and the engine.
package fuzz

import (
	"github.com/brunokim/resolve/program"
	"github.com/brunokim/resolve/solver"
)

// Fuzz decodes a program and runs its queries with a small iteration limit. Programs that
// decode are prioritized in the corpus.
func Fuzz(data []byte) int {
	p, err := program.Decode(data)
	if err != nil {
		return 0
	}
	s := solver.New(solver.WithIterLimit(10000), solver.WithInlining(true))
	if err := s.Load(p); err != nil {
		return 0
	}
	for _, q := range p.Queries {
		s.SolveIn(q.Module, q.Goals...)
	}
	return 1
}
