// Package ast defines the abstract syntax tree produced by the parser and
// consumed by the compiler. The language is expression-oriented: statements
// and expressions share a single node interface, and the parser guarantees
// the value discipline (nodes in statement position leave no value, nodes in
// value position leave exactly one).
package ast

import "github.com/mna/lama/lang/token"

// Node is implemented by every AST node.
type Node interface {
	// Pos returns the position of the first token of the node.
	Pos() token.Pos
	node()
}

// Def is implemented by the declarations that may open a scope: variables,
// values and functions.
type Def interface {
	Pos() token.Pos
	def()
}

// An Ident is a declared or referenced name with its source position.
type Ident struct {
	Name  string
	Start token.Pos
}

func (id Ident) Pos() token.Pos { return id.Start }

type (
	// Skip is the empty statement. It emits no code and leaves no value.
	Skip struct {
		Start token.Pos
	}

	// Const is an integer literal.
	Const struct {
		Start token.Pos
		Value int
	}

	// StrLit is a string literal, with escapes already decoded.
	StrLit struct {
		Start token.Pos
		Value string
	}

	// ArrayLit is an array literal [e1, ..., en].
	ArrayLit struct {
		Start token.Pos
		Items []Node
	}

	// SexpLit is a tagged s-expression literal `Tag(e1, ..., en).
	SexpLit struct {
		Start token.Pos
		Tag   string
		Args  []Node
	}

	// Var is a reference to a name in value position.
	Var struct {
		Ident
	}

	// Ref is a reference to the address of a mutable name.
	Ref struct {
		Ident
	}

	// Binop applies a binary operator to two operands.
	Binop struct {
		Op    string
		Left  Node
		Right Node
	}

	// Set assigns to a named mutable variable. It is an expression: the
	// assigned value is left on the stack.
	Set struct {
		Ident
		Value Node
	}

	// Assn assigns through a reference: an element reference (container and
	// index pair) or a name reference. Like Set, it leaves the assigned value.
	Assn struct {
		Target Node
		Value  Node
	}

	// Seq evaluates A then B; the value, if any, is B's.
	Seq struct {
		A, B Node
	}

	// If evaluates the condition and then one of the two branches.
	If struct {
		Start token.Pos
		Cond  Node
		True  Node
		False Node
	}

	// While is the pre-test loop.
	While struct {
		Start token.Pos
		Cond  Node
		Body  Node
	}

	// DoWhile is the post-test loop: the body runs at least once and the loop
	// repeats while the condition is non-zero.
	DoWhile struct {
		Start token.Pos
		Body  Node
		Cond  Node
	}

	// Ignore evaluates its operand and discards the value.
	Ignore struct {
		Expr Node
	}

	// Call calls a named function or builtin.
	Call struct {
		Ident
		Args []Node
	}

	// Builtin calls a runtime builtin directly, bypassing name resolution.
	// The parser does not produce it; it exists for desugared or
	// programmatically built trees.
	Builtin struct {
		Ident
		Args []Node
	}

	// Elem reads an element out of a container.
	Elem struct {
		X     Node
		Index Node
	}

	// ElemRef denotes the location of an element, for assignment. The
	// container and index pair is the reference.
	ElemRef struct {
		X     Node
		Index Node
	}

	// Scope introduces declarations visible to its body.
	Scope struct {
		Start token.Pos
		Defs  []Def
		Body  Node
	}
)

func (n *Skip) Pos() token.Pos     { return n.Start }
func (n *Const) Pos() token.Pos    { return n.Start }
func (n *StrLit) Pos() token.Pos   { return n.Start }
func (n *ArrayLit) Pos() token.Pos { return n.Start }
func (n *SexpLit) Pos() token.Pos  { return n.Start }
func (n *Binop) Pos() token.Pos    { return n.Left.Pos() }
func (n *Assn) Pos() token.Pos     { return n.Target.Pos() }
func (n *Seq) Pos() token.Pos      { return n.A.Pos() }
func (n *If) Pos() token.Pos       { return n.Start }
func (n *While) Pos() token.Pos    { return n.Start }
func (n *DoWhile) Pos() token.Pos  { return n.Start }
func (n *Ignore) Pos() token.Pos   { return n.Expr.Pos() }
func (n *Elem) Pos() token.Pos     { return n.X.Pos() }
func (n *ElemRef) Pos() token.Pos  { return n.X.Pos() }
func (n *Scope) Pos() token.Pos    { return n.Start }

func (*Skip) node()     {}
func (*Const) node()    {}
func (*StrLit) node()   {}
func (*ArrayLit) node() {}
func (*SexpLit) node()  {}
func (*Var) node()      {}
func (*Ref) node()      {}
func (*Binop) node()    {}
func (*Set) node()      {}
func (*Assn) node()     {}
func (*Seq) node()      {}
func (*If) node()       {}
func (*While) node()    {}
func (*DoWhile) node()  {}
func (*Ignore) node()   {}
func (*Call) node()     {}
func (*Builtin) node()  {}
func (*Elem) node()     {}
func (*ElemRef) node()  {}
func (*Scope) node()    {}

type (
	// VarDef declares a mutable variable, with an optional initializer.
	VarDef struct {
		Ident
		Init Node // may be nil
	}

	// ValDef declares an immutable value; the initializer is required and is
	// the only assignment the name ever receives.
	ValDef struct {
		Ident
		Init Node
	}

	// FunDef declares a function.
	FunDef struct {
		Ident
		Params []Ident
		Body   Node
	}
)

func (*VarDef) def() {}
func (*ValDef) def() {}
func (*FunDef) def() {}
