package mem

import (
	"fmt"
	"strings"

	"github.com/brunokim/resolve/logic"
)

// Format returns a representation of the term at a, showing unbound vars by their cell
// and labeling cyclic terms.
func (m *Memory) Format(a Addr) string {
	ctx := &formatCtx{
		m:       m,
		b:       new(strings.Builder),
		parents: make(map[Addr]struct{}),
		loops:   make(map[Addr]string),
	}
	ctx.format(a)
	return ctx.b.String()
}

type formatCtx struct {
	m       *Memory
	b       *strings.Builder
	parents map[Addr]struct{}
	loops   map[Addr]string
	id      int
}

func (ctx *formatCtx) format(a Addr) {
	if !a.IsValid() {
		ctx.b.WriteString("<nil>")
		return
	}
	a = ctx.m.Walk(a)
	switch a.Kind {
	case Constant:
		ctx.b.WriteString(ctx.m.constant(a).String())
		return
	case Variable:
		fmt.Fprintf(ctx.b, "_X%d", a.index)
		return
	}
	// Handle self-reference.
	if _, ok := ctx.parents[a]; ok {
		label, ok := ctx.loops[a]
		if !ok {
			ctx.id++
			label = fmt.Sprintf("_S%d", ctx.id)
			ctx.loops[a] = label
		}
		ctx.b.WriteString(label)
		return
	}
	// Add cell to parent set, and remove after return.
	ctx.parents[a] = struct{}{}
	defer delete(ctx.parents, a)
	switch a.Kind {
	case Structure:
		cell := ctx.m.structCell(a)
		ctx.b.WriteString(logic.FormatAtom(cell.functor))
		ctx.formatComplex(cell.args, "(", ")")
	case Abstract:
		ctx.formatAbstract(a)
	case Predicate:
		cell := ctx.m.predCell(a)
		ctx.format(cell.Head)
		ctx.b.WriteString(" :- ")
		ctx.format(cell.Body)
	}
	// Annotate parents that loop.
	if label, ok := ctx.loops[a]; ok {
		delete(ctx.loops, a)
		fmt.Fprintf(ctx.b, "=%s", label)
	}
}

func (ctx *formatCtx) formatAbstract(a Addr) {
	cell := ctx.m.abstractCell(a)
	exp := ctx.m.structCell(cell.expansion)
	switch cell.kind {
	case ListKind:
		ctx.b.WriteString("[")
		ctx.format(exp.args[0])
		tail := ctx.m.Walk(exp.args[1])
		seen := map[Addr]bool{a: true}
		for tail.Kind == Abstract && ctx.m.abstractCell(tail).kind == ListKind {
			if _, ok := ctx.parents[tail]; ok || seen[tail] {
				break
			}
			seen[tail] = true
			ctx.b.WriteString(", ")
			exp = ctx.m.structCell(ctx.m.abstractCell(tail).expansion)
			ctx.format(exp.args[0])
			tail = ctx.m.Walk(exp.args[1])
		}
		if tail.Kind != Constant || ctx.m.constant(tail) != logic.EmptyList {
			ctx.b.WriteString("|")
			ctx.format(tail)
		}
		ctx.b.WriteString("]")
	case TupleKind:
		ctx.formatComplex(exp.args, "(", ")")
	case SetKind:
		elems, _ := ctx.m.ListElems(exp.args[0])
		ctx.formatComplex(elems, "{", "}")
	case AssocKind:
		ctx.format(exp.args[0])
		ctx.b.WriteString(":")
		ctx.format(exp.args[1])
	case DictKind:
		ctx.format(cell.tag)
		ctx.b.WriteString("{")
		for i := range cell.keys {
			if i > 0 {
				ctx.b.WriteString(", ")
			}
			ctx.format(cell.keys[i])
			ctx.b.WriteString(":")
			ctx.format(cell.vals[i])
		}
		ctx.b.WriteString("}")
	}
}

func (ctx *formatCtx) formatComplex(body []Addr, open, close_ string) {
	ctx.b.WriteString(open)
	for i, a := range body {
		ctx.format(a)
		if i < len(body)-1 {
			ctx.b.WriteString(", ")
		}
	}
	ctx.b.WriteString(close_)
}
