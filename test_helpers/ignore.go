package test_helpers

import (
	"github.com/brunokim/resolve/logic"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var (
	IgnoreUnexported = cmp.Options{
		cmp.AllowUnexported(logic.Var{}),
		cmpopts.IgnoreUnexported(logic.Comp{}),
		cmpopts.IgnoreUnexported(logic.List{}),
		cmpopts.IgnoreUnexported(logic.Tuple{}),
		cmpopts.IgnoreUnexported(logic.Set{}),
		cmpopts.IgnoreUnexported(logic.Assoc{}),
		cmpopts.IgnoreUnexported(logic.Dict{}),
		cmpopts.IgnoreUnexported(logic.Clause{}),
	}
)
