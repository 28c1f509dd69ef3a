package logic_test

import (
	"github.com/brunokim/resolve/dsl"
)

var (
	assoc  = dsl.Assoc
	atom   = dsl.Atom
	clause = dsl.Clause
	comp   = dsl.Comp
	dict   = dsl.Dict
	float_ = dsl.Float
	ilist  = dsl.IList
	int_   = dsl.Int
	list   = dsl.List
	set    = dsl.Set
	svar   = dsl.SVar
	tuple  = dsl.Tuple
	var_   = dsl.Var
)
