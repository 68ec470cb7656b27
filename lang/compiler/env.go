package compiler

import (
	"fmt"

	"github.com/mna/lama/lang/ast"
	"github.com/mna/lama/lang/sm"
)

// kind is the storage class of a symbol.
type kind uint8

const (
	kindArg kind = iota
	kindLocal
	kindGlobal
	kindFun
)

// symbol is the resolution of a name: where it lives, whether it can be
// assigned, and for functions their label and arity.
type symbol struct {
	kind    kind
	index   int    // argument or local slot
	name    string // global name
	mutable bool
	label   string // function label, starts with '$' for builtins
	arity   int
}

func (s symbol) loc() sm.Loc {
	switch s.kind {
	case kindArg:
		return sm.Arg{Index: s.index}
	case kindLocal:
		return sm.Local{Index: s.index}
	case kindGlobal:
		return sm.Glob{Name: s.name}
	default:
		panic(fmt.Sprintf("no location for symbol kind %d", s.kind))
	}
}

// scope is one lexical scope, a link in the chain up to the builtins.
type scope struct {
	parent *scope
	names  map[string]symbol
}

// symState is the symbol-table state a hoisted function captures: the scope
// chain visible at its declaration and the lexical depth of that point.
type symState struct {
	scope *scope
	depth int
}

// pendingFun is a hoisted function waiting to be compiled, with the symbol
// state captured at its declaration.
type pendingFun struct {
	label string
	args  []ast.Ident
	body  ast.Node
	state symState
}

// Env is the compile-time environment threaded through the translation. It
// behaves as a persistent value: every mutator returns the updated
// environment and earlier copies are never used again once an update is
// made.
type Env struct {
	labelID int
	st      symState
	nLocals int
	nArgs   int
	pending []pendingFun
}

// topLevelDepth is the lexical depth of the program's top-level scope: the
// implicit main function plus its body scope. Mutable names declared there
// become globals.
const topLevelDepth = 2

// newEnv returns the root environment with the runtime builtins bound.
func newEnv() Env {
	root := &scope{names: map[string]symbol{
		"read":   {kind: kindFun, label: "$read", arity: 0},
		"write":  {kind: kindFun, label: "$write", arity: 1},
		"length": {kind: kindFun, label: "$length", arity: 1},
	}}
	return Env{st: symState{scope: root, depth: 0}}
}

// label returns a fresh label.
func (e Env) label() (Env, string) {
	id := e.labelID
	e.labelID++
	return e, fmt.Sprintf("L%d", id)
}

// funLabel returns the label for a function declared at the current depth:
// functions of the top-level scope get a stable name-derived label, nested
// ones are disambiguated with a fresh id.
func (e Env) funLabel(name string) (Env, string) {
	if e.st.depth == topLevelDepth {
		return e, "L" + name
	}
	id := e.labelID
	e.labelID++
	return e, fmt.Sprintf("L%s_%d", name, id)
}

func (e Env) beginScope() Env {
	e.st = symState{
		scope: &scope{parent: e.st.scope, names: make(map[string]symbol)},
		depth: e.st.depth + 1,
	}
	return e
}

func (e Env) endScope() Env {
	e.st = symState{scope: e.st.scope.parent, depth: e.st.depth - 1}
	return e
}

// enterFunction starts compiling a function body: the symbol state reverts
// to the one captured at the declaration, the local counter resets and the
// arguments are bound in a fresh scope.
func (e Env) enterFunction(state symState, args []ast.Ident) (Env, error) {
	e.st = symState{
		scope: &scope{parent: state.scope, names: make(map[string]symbol)},
		depth: state.depth + 1,
	}
	e.nLocals = 0
	e.nArgs = len(args)
	for i, arg := range args {
		if err := e.addName(arg, symbol{kind: kindArg, index: i, mutable: true}); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (e Env) addName(id ast.Ident, s symbol) error {
	if _, ok := e.st.scope.names[id.Name]; ok {
		return fmt.Errorf("the name %q is already declared in this scope at %v", id.Name, id.Start)
	}
	e.st.scope.names[id.Name] = s
	return nil
}

// addVar declares a mutable name. It reports whether the name became a
// global, in which case the caller emits the data-section declaration.
func (e Env) addVar(id ast.Ident) (Env, bool, error) {
	return e.addStorage(id, true)
}

// addVal declares an immutable name.
func (e Env) addVal(id ast.Ident) (Env, error) {
	e, _, err := e.addStorage(id, false)
	return e, err
}

func (e Env) addStorage(id ast.Ident, mutable bool) (Env, bool, error) {
	if mutable && e.st.depth == topLevelDepth {
		err := e.addName(id, symbol{kind: kindGlobal, name: id.Name, mutable: true})
		return e, true, err
	}
	err := e.addName(id, symbol{kind: kindLocal, index: e.nLocals, mutable: mutable})
	e.nLocals++
	return e, false, err
}

func (e Env) addFun(id ast.Ident, label string, arity int) (Env, error) {
	err := e.addName(id, symbol{kind: kindFun, label: label, arity: arity})
	return e, err
}

// rememberFun queues a hoisted function for compilation, capturing the
// current symbol state.
func (e Env) rememberFun(label string, args []ast.Ident, body ast.Node) Env {
	e.pending = append(e.pending, pendingFun{label: label, args: args, body: body, state: e.st})
	return e
}

func (e Env) lookup(name string) (symbol, bool) {
	for sc := e.st.scope; sc != nil; sc = sc.parent {
		if s, ok := sc.names[name]; ok {
			return s, true
		}
	}
	return symbol{}, false
}

// lookupVal resolves a name in value position: any argument, local or
// global, mutable or not.
func (e Env) lookupVal(id ast.Ident) (sm.Loc, error) {
	s, ok := e.lookup(id.Name)
	if !ok || s.kind == kindFun {
		return nil, designateErr(id, "value")
	}
	return s.loc(), nil
}

// lookupVar resolves a name that is about to be assigned or have its address
// taken: it must designate mutable storage.
func (e Env) lookupVar(id ast.Ident) (sm.Loc, error) {
	s, ok := e.lookup(id.Name)
	if !ok || s.kind == kindFun || !s.mutable {
		return nil, designateErr(id, "variable")
	}
	return s.loc(), nil
}

// lookupFun resolves a callable name to its label and arity.
func (e Env) lookupFun(id ast.Ident) (string, int, error) {
	s, ok := e.lookup(id.Name)
	if !ok || s.kind != kindFun {
		return "", 0, designateErr(id, "function")
	}
	return s.label, s.arity, nil
}

func designateErr(id ast.Ident, what string) error {
	l, c := id.Start.LineCol()
	return fmt.Errorf("the name %q does not designate a %s at %d:%d", id.Name, what, l, c)
}
