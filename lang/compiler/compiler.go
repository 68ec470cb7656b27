// Package compiler translates the AST to stack-machine code. Nested
// functions are hoisted to the top level through a pending queue, scopes are
// resolved to argument, local or global storage, and fall-through labels are
// threaded through the translation so that no dead label and no jump to the
// next instruction is ever emitted.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mna/lama/lang/ast"
	"github.com/mna/lama/lang/sm"
)

// entryLabel is the label of the implicit function wrapping the program;
// it is what the linker expects the executable to start at.
const entryLabel = "main"

// Compile translates a parsed program to stack-machine code. The first
// semantic error (an unresolved name or a name used as the wrong kind)
// aborts the translation.
func Compile(ctx context.Context, prog ast.Node) ([]sm.Insn, error) {
	var c compiler
	env := newEnv().rememberFun(entryLabel, nil, prog)

	var out []sm.Insn
	for len(env.pending) > 0 {
		fn := env.pending[0]
		env.pending = env.pending[1:]

		var err error
		env, err = env.enterFunction(fn.state, fn.args)
		if err != nil {
			return nil, err
		}
		var endLab string
		env, endLab = env.label()
		used, benv, code, err := c.compile(endLab, env, fn.body)
		if err != nil {
			return nil, err
		}
		env = benv

		out = append(out, sm.Label{Name: fn.label},
			sm.Begin{Fn: fn.label, NArgs: len(fn.args), NLocals: env.nLocals})
		out = append(out, code...)
		if used {
			out = append(out, sm.Label{Name: endLab})
		}
		out = append(out, sm.End{})
	}
	return out, nil
}

type compiler struct{}

// chain compiles a subtree that more code follows: the subtree gets a fresh
// fall-through label which is emitted only if the subtree jumped to it.
func (c *compiler) chain(env Env, n ast.Node) (Env, []sm.Insn, error) {
	env, lab := env.label()
	used, env, code, err := c.compile(lab, env, n)
	if err != nil {
		return env, nil, err
	}
	if used {
		code = append(code, sm.Label{Name: lab})
	}
	return env, code, nil
}

// compile translates one node. lab is the continuation label: when the
// node's fall-through path ends in a jump to lab instead of falling through,
// the first return value is true and the caller must emit the label.
func (c *compiler) compile(lab string, env Env, n ast.Node) (bool, Env, []sm.Insn, error) {
	switch n := n.(type) {
	case *ast.Skip:
		return false, env, nil, nil

	case *ast.Const:
		return false, env, []sm.Insn{sm.Const{Value: n.Value}}, nil

	case *ast.StrLit:
		return false, env, []sm.Insn{sm.Str{Value: n.Value}}, nil

	case *ast.Var:
		loc, err := env.lookupVal(n.Ident)
		if err != nil {
			return false, env, nil, err
		}
		return false, env, []sm.Insn{sm.Load{From: loc}}, nil

	case *ast.Ref:
		loc, err := env.lookupVar(n.Ident)
		if err != nil {
			return false, env, nil, err
		}
		return false, env, []sm.Insn{sm.LoadAddr{From: loc}}, nil

	case *ast.Binop:
		env, lcode, err := c.chain(env, n.Left)
		if err != nil {
			return false, env, nil, err
		}
		env, rcode, err := c.chain(env, n.Right)
		if err != nil {
			return false, env, nil, err
		}
		code := append(lcode, rcode...)
		return false, env, append(code, sm.Binop{Op: n.Op}), nil

	case *ast.Set:
		env, code, err := c.chain(env, n.Value)
		if err != nil {
			return false, env, nil, err
		}
		loc, err := env.lookupVar(n.Ident)
		if err != nil {
			return false, env, nil, err
		}
		return false, env, append(code, sm.Store{To: loc}), nil

	case *ast.Assn:
		env, tcode, err := c.chain(env, n.Target)
		if err != nil {
			return false, env, nil, err
		}
		env, vcode, err := c.chain(env, n.Value)
		if err != nil {
			return false, env, nil, err
		}
		code := append(tcode, vcode...)
		if _, ok := n.Target.(*ast.ElemRef); ok {
			return false, env, append(code, sm.Sta{}), nil
		}
		return false, env, append(code, sm.StoreInd{}), nil

	case *ast.Seq:
		env, acode, err := c.chain(env, n.A)
		if err != nil {
			return false, env, nil, err
		}
		used, env, bcode, err := c.compile(lab, env, n.B)
		if err != nil {
			return false, env, nil, err
		}
		return used, env, append(acode, bcode...), nil

	case *ast.Ignore:
		env, code, err := c.chain(env, n.Expr)
		if err != nil {
			return false, env, nil, err
		}
		return false, env, append(code, sm.Drop{}), nil

	case *ast.If:
		env, elseLab := env.label()
		env, ccode, err := c.chain(env, n.Cond)
		if err != nil {
			return false, env, nil, err
		}
		env, tcode, err := c.chain(env, n.True)
		if err != nil {
			return false, env, nil, err
		}
		// the true branch always jumps to lab, so it is used regardless of
		// what the false branch reports
		_, env, fcode, err := c.compile(lab, env, n.False)
		if err != nil {
			return false, env, nil, err
		}

		code := append(ccode, sm.CondJump{Cond: "z", To: elseLab})
		code = append(code, tcode...)
		code = append(code, sm.Jump{To: lab}, sm.Label{Name: elseLab})
		code = append(code, fcode...)
		return true, env, code, nil

	case *ast.While:
		env, condLab := env.label()
		env, bodyLab := env.label()
		_, env, bcode, err := c.compile(condLab, env, n.Body)
		if err != nil {
			return false, env, nil, err
		}
		env, ccode, err := c.chain(env, n.Cond)
		if err != nil {
			return false, env, nil, err
		}

		code := []sm.Insn{sm.Jump{To: condLab}, sm.Label{Name: bodyLab}}
		code = append(code, bcode...)
		code = append(code, sm.Label{Name: condLab})
		code = append(code, ccode...)
		code = append(code, sm.CondJump{Cond: "nz", To: bodyLab})
		return false, env, code, nil

	case *ast.DoWhile:
		env, bodyLab := env.label()
		env, bcode, err := c.chain(env, n.Body)
		if err != nil {
			return false, env, nil, err
		}
		env, ccode, err := c.chain(env, n.Cond)
		if err != nil {
			return false, env, nil, err
		}

		code := []sm.Insn{sm.Label{Name: bodyLab}}
		code = append(code, bcode...)
		code = append(code, ccode...)
		code = append(code, sm.CondJump{Cond: "nz", To: bodyLab})
		return false, env, code, nil

	case *ast.Call:
		label, arity, err := env.lookupFun(n.Ident)
		if err != nil {
			return false, env, nil, err
		}
		if arity != len(n.Args) {
			l, col := n.Start.LineCol()
			return false, env, nil, fmt.Errorf("the function %q expects %d argument(s), got %d at %d:%d",
				n.Name, arity, len(n.Args), l, col)
		}
		env, code, err := c.chain(env, argsSeq(n.Args, n))
		if err != nil {
			return false, env, nil, err
		}
		if strings.HasPrefix(label, "$") {
			return false, env, append(code, sm.Builtin{Name: label[1:], N: len(n.Args)}), nil
		}
		return false, env, append(code, sm.Call{Fn: label, N: len(n.Args)}), nil

	case *ast.Builtin:
		env, code, err := c.chain(env, argsSeq(n.Args, n))
		if err != nil {
			return false, env, nil, err
		}
		return false, env, append(code, sm.Builtin{Name: strings.TrimPrefix(n.Name, "$"), N: len(n.Args)}), nil

	case *ast.ArrayLit:
		env, code, err := c.chain(env, argsSeq(n.Items, n))
		if err != nil {
			return false, env, nil, err
		}
		return false, env, append(code, sm.Array{N: len(n.Items)}), nil

	case *ast.SexpLit:
		env, code, err := c.chain(env, argsSeq(n.Args, n))
		if err != nil {
			return false, env, nil, err
		}
		return false, env, append(code, sm.Sexp{Tag: n.Tag, N: len(n.Args)}), nil

	case *ast.Elem:
		env, code, err := c.chain(env, &ast.Seq{A: n.X, B: n.Index})
		if err != nil {
			return false, env, nil, err
		}
		return false, env, append(code, sm.Elem{}), nil

	case *ast.ElemRef:
		// the container and index pair left on the stack is the reference
		env, code, err := c.chain(env, &ast.Seq{A: n.X, B: n.Index})
		if err != nil {
			return false, env, nil, err
		}
		return false, env, code, nil

	case *ast.Scope:
		return c.scope(lab, env, n)

	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}

// scope compiles a block with declarations. Names are declared first so that
// functions see every sibling; hoisted functions then capture the completed
// state; initializers run in declaration order before the body.
func (c *compiler) scope(lab string, env Env, n *ast.Scope) (bool, Env, []sm.Insn, error) {
	env = env.beginScope()

	var (
		prelude []sm.Insn
		err     error
	)
	type funDecl struct {
		def   *ast.FunDef
		label string
	}
	var funs []funDecl

	for _, def := range n.Defs {
		switch def := def.(type) {
		case *ast.VarDef:
			var global bool
			env, global, err = env.addVar(def.Ident)
			if err != nil {
				return false, env, nil, err
			}
			if global {
				prelude = append(prelude, sm.Global{Name: def.Name})
			}
		case *ast.ValDef:
			env, err = env.addVal(def.Ident)
			if err != nil {
				return false, env, nil, err
			}
		case *ast.FunDef:
			var label string
			env, label = env.funLabel(def.Name)
			env, err = env.addFun(def.Ident, label, len(def.Params))
			if err != nil {
				return false, env, nil, err
			}
			funs = append(funs, funDecl{def: def, label: label})
		default:
			panic(fmt.Sprintf("unexpected definition %T", def))
		}
	}

	for _, fn := range funs {
		env = env.rememberFun(fn.label, fn.def.Params, fn.def.Body)
	}

	var inits []sm.Insn
	for _, def := range n.Defs {
		var id ast.Ident
		var init ast.Node
		switch def := def.(type) {
		case *ast.VarDef:
			id, init = def.Ident, def.Init
		case *ast.ValDef:
			id, init = def.Ident, def.Init
		}
		if init == nil {
			continue
		}
		var code []sm.Insn
		env, code, err = c.chain(env, init)
		if err != nil {
			return false, env, nil, err
		}
		// the declaration is the one write an immutable name receives, so the
		// store does not go through the mutability check
		s, _ := env.lookup(id.Name)
		inits = append(inits, code...)
		inits = append(inits, sm.Store{To: s.loc()}, sm.Drop{})
	}

	used, env, body, err := c.compile(lab, env, n.Body)
	if err != nil {
		return false, env, nil, err
	}
	env = env.endScope()

	code := append(prelude, inits...)
	return used, env, append(code, body...), nil
}

// argsSeq chains the arguments for right-to-left evaluation: the rightmost
// argument runs first and the leftmost ends up on top of the stack, which is
// the order calls pop them in.
func argsSeq(args []ast.Node, at ast.Node) ast.Node {
	acc := ast.Node(&ast.Skip{Start: at.Pos()})
	for i := len(args) - 1; i >= 0; i-- {
		acc = &ast.Seq{A: acc, B: args[i]}
	}
	return acc
}
