package program_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brunokim/resolve/dsl"
	"github.com/brunokim/resolve/errors"
	"github.com/brunokim/resolve/logic"
	"github.com/brunokim/resolve/program"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	atom   = dsl.Atom
	clause = dsl.Clause
	comp   = dsl.Comp
	float_ = dsl.Float
	ilist  = dsl.IList
	ind    = dsl.Indicator
	int_   = dsl.Int
	list   = dsl.List
	tuple  = dsl.Tuple
	set    = dsl.Set
	dict   = dsl.Dict
	var_   = dsl.Var
	terms  = dsl.Terms
)

func termStrings(ts []logic.Term) []string {
	xs := make([]string, len(ts))
	for i, t := range ts {
		xs[i] = t.String()
	}
	return xs
}

func clauseStrings(cs []*logic.Clause) []string {
	xs := make([]string, len(cs))
	for i, c := range cs {
		xs[i] = c.String()
	}
	return xs
}

func TestParseTerm(t *testing.T) {
	tests := []struct {
		text string
		want logic.Term
	}{
		{"a", atom("a")},
		{"'A'", atom("A")},
		{`"hello world"`, atom("hello world")},
		{"X", var_("X")},
		{"_", var_("_")},
		{"_Acc", var_("_Acc")},
		{"42", int_(42)},
		{"-3", int_(-3)},
		{"1.5", float_(1.5)},
		{"[]", list()},
		{"[ab, cd]", list(atom("ab"), atom("cd"))},
		{"{f: [ab, X]}", comp("f", atom("ab"), var_("X"))},
		{"{f: ab}", comp("f", atom("ab"))},
		{"{f: []}", atom("f")},
		{"{f: [[]]}", comp("f", list())},
		{"{'=': [X, 1]}", comp("=", var_("X"), int_(1))},
		{"{$list: [[ab, cd], T]}", ilist(atom("ab"), atom("cd"), var_("T"))},
		{"{$tuple: [ab, 1]}", tuple(atom("ab"), int_(1))},
		{"{$set: [ab, cd]}", set(atom("ab"), atom("cd"))},
		{"{$dict: [point, {x: 1, y: 2}]}", dict(atom("point"), atom("x"), int_(1), atom("y"), int_(2))},
		{"{g: [{f: [X]}, [1, 2]]}", comp("g", comp("f", var_("X")), list(int_(1), int_(2)))},
	}
	for _, test := range tests {
		got, err := program.ParseTerm(test.text)
		if !assert.NoError(t, err, test.text) {
			continue
		}
		assert.Equal(t, test.want.String(), got.String(), test.text)
		assert.True(t, logic.Eq(test.want, got), "%s: want %v, got %v", test.text, test.want, got)
	}
}

func TestParseTerm_Errors(t *testing.T) {
	tests := []string{
		"",
		"null",
		"~",
		"{f: a, g: b}",
		"{[a]: b}",
		"{$list: [[], T]}",
		"{$list: [a]}",
		"{$dict: [t, [a]]}",
		"{$dict: [t, {x: 1, x: 2}]}",
		"[&a x, *a]",
		"{f: [a",
	}
	for _, text := range tests {
		_, err := program.ParseTerm(text)
		assert.Error(t, err, "%q", text)
	}
}

func TestParseQuery(t *testing.T) {
	goals, err := program.ParseQuery("{color: [X]}")
	require.NoError(t, err)
	assert.Equal(t, []string{"color(X)"}, termStrings(goals))

	goals, err = program.ParseQuery("[{color: [X]}, {'\\=': [X, red]}]")
	require.NoError(t, err)
	assert.Equal(t, termStrings(terms(comp("color", var_("X")), comp(`\=`, var_("X"), atom("red")))), termStrings(goals))

	_, err = program.ParseQuery("  ")
	assert.Error(t, err)
}

func TestParseIndicator(t *testing.T) {
	got, err := program.ParseIndicator("member/2")
	require.NoError(t, err)
	assert.Equal(t, ind("member", 2), got)

	got, err = program.ParseIndicator("//2")
	require.NoError(t, err)
	assert.Equal(t, ind("/", 2), got)

	for _, text := range []string{"member", "/2", "member/x", "member/-1"} {
		_, err := program.ParseIndicator(text)
		assert.Error(t, err, text)
	}
}

const colorsProgram = `
modules:
  - name: lists
    exports: [member/2]
    inline: [member/2]
    clauses:
      - {member: [X, {$list: [[X], _]}]}
      - head: {member: [X, {$list: [[_], T]}]}
        body:
          - {member: [X, T]}
  - name: user
    imports: [lists]
    dynamic: [seen/1]
    variadic: [collect/1]
    clauses:
      - {color: [red]}
      - {color: [green]}
      - head: {collect: [Xs]}
        body: [{length: [Xs, _]}]
queries:
  - [{member: [X, [red, blue]]}, {color: [X]}]
  - module: lists
    goals: {member: [1, [1]]}
`

func TestDecode(t *testing.T) {
	p, err := program.Decode([]byte(colorsProgram))
	require.NoError(t, err)
	require.Len(t, p.Modules, 2)

	lists, user := p.Modules[0], p.Modules[1]
	assert.Equal(t, "lists", lists.Name)
	assert.Empty(t, lists.Imports)
	assert.Equal(t, []logic.Indicator{ind("member", 2)}, lists.Exports)
	assert.Equal(t, []logic.Indicator{ind("member", 2)}, lists.Inline)
	assert.Equal(t, clauseStrings([]*logic.Clause{
		clause(comp("member", var_("X"), ilist(var_("X"), var_("_")))),
		clause(comp("member", var_("X"), ilist(var_("_"), var_("T"))),
			comp("member", var_("X"), var_("T"))),
	}), clauseStrings(lists.Clauses))

	assert.Equal(t, "user", user.Name)
	assert.Equal(t, []string{"lists"}, user.Imports)
	assert.Equal(t, []logic.Indicator{ind("seen", 1)}, user.Dynamic)
	assert.Equal(t, []logic.Indicator{ind("collect", 1)}, user.Variadic)
	assert.Len(t, user.Clauses, 3)

	require.Len(t, p.Queries, 2)
	assert.Equal(t, "", p.Queries[0].Module)
	assert.Equal(t, []string{"member(X, [red, blue])", "color(X)"}, termStrings(p.Queries[0].Goals))
	assert.Equal(t, "lists", p.Queries[1].Module)
	assert.Equal(t, []string{"member(1, [1])"}, termStrings(p.Queries[1].Goals))
}

func TestDecode_TopLevelClauses(t *testing.T) {
	p, err := program.Decode([]byte(`
clauses:
  - {parent: [ann, bob]}
  - head: {grandparent: [X, Z]}
    body: [{parent: [X, Y]}, {parent: [Y, Z]}]
`))
	require.NoError(t, err)
	require.Len(t, p.Modules, 1)
	assert.Equal(t, "user", p.Modules[0].Name)
	assert.Len(t, p.Modules[0].Clauses, 2)
	assert.Empty(t, p.Queries)
}

func TestDecode_Empty(t *testing.T) {
	p, err := program.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, p.Modules)
	assert.Empty(t, p.Queries)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unknown field", "moduls: []"},
		{"bad indicator", "modules: [{name: m, exports: [member]}]"},
		{"variadic without params", "modules: [{name: m, variadic: [p/0]}]"},
		{"number as head", "clauses: [1]"},
		{"var as head", "clauses: [X]"},
		{"number in body", "clauses: [{head: p, body: [1]}]"},
		{"null term", "clauses: [{f: [~]}]"},
		{"bad query", "queries: [{goals: [{f: a, g: b}]}]"},
		{"unknown query field", "queries: [{goals: [a], modul: m}]"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := program.Decode([]byte(test.text))
			assert.Error(t, err)
		})
	}
}

func TestDecode_InvalidClause(t *testing.T) {
	_, err := program.Decode([]byte("clauses: [{head: p, body: [1]}]"))
	assert.True(t, errors.IsType(err, errors.InvalidClause), "got %v", err)
}

func TestDecode_BodyVarIsCalled(t *testing.T) {
	p, err := program.Decode([]byte("clauses: [{head: {apply: [G]}, body: [G]}]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"call(G)"}, termStrings(p.Modules[0].Clauses[0].Body))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(colorsProgram), 0o644))

	p, err := program.Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Modules, 2)

	_, err = program.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte(colorsProgram))
	f.Add([]byte("clauses: [{f: [X, {$list: [[a], T]}]}]"))
	f.Add([]byte("queries: [[{$dict: [t, {a: 1}]}]]"))
	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := program.Decode(data)
		if err != nil {
			return
		}
		for _, m := range p.Modules {
			for _, c := range m.Clauses {
				_ = c.String()
			}
		}
	})
}
