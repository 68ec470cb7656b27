package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Fprint writes an indented rendering of the tree rooted at n to w, one node
// per line. It is meant for debugging and for the "parse" command output.
func Fprint(w io.Writer, n Node) error {
	p := printer{w: w}
	p.node(n, 0)
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(depth int, format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (p *printer) node(n Node, depth int) {
	switch n := n.(type) {
	case *Skip:
		p.printf(depth, "skip")
	case *Const:
		p.printf(depth, "const %d", n.Value)
	case *StrLit:
		p.printf(depth, "string %s", strconv.Quote(n.Value))
	case *ArrayLit:
		p.printf(depth, "array [%d]", len(n.Items))
		for _, it := range n.Items {
			p.node(it, depth+1)
		}
	case *SexpLit:
		p.printf(depth, "sexp `%s [%d]", n.Tag, len(n.Args))
		for _, a := range n.Args {
			p.node(a, depth+1)
		}
	case *Var:
		p.printf(depth, "var %s", n.Name)
	case *Ref:
		p.printf(depth, "ref %s", n.Name)
	case *Binop:
		p.printf(depth, "binop %s", n.Op)
		p.node(n.Left, depth+1)
		p.node(n.Right, depth+1)
	case *Set:
		p.printf(depth, "set %s", n.Name)
		p.node(n.Value, depth+1)
	case *Assn:
		p.printf(depth, "assign")
		p.node(n.Target, depth+1)
		p.node(n.Value, depth+1)
	case *Seq:
		p.printf(depth, "seq")
		p.node(n.A, depth+1)
		p.node(n.B, depth+1)
	case *If:
		p.printf(depth, "if")
		p.node(n.Cond, depth+1)
		p.node(n.True, depth+1)
		p.node(n.False, depth+1)
	case *While:
		p.printf(depth, "while")
		p.node(n.Cond, depth+1)
		p.node(n.Body, depth+1)
	case *DoWhile:
		p.printf(depth, "dowhile")
		p.node(n.Body, depth+1)
		p.node(n.Cond, depth+1)
	case *Ignore:
		p.printf(depth, "ignore")
		p.node(n.Expr, depth+1)
	case *Call:
		p.printf(depth, "call %s [%d]", n.Name, len(n.Args))
		for _, a := range n.Args {
			p.node(a, depth+1)
		}
	case *Builtin:
		p.printf(depth, "builtin %s [%d]", n.Name, len(n.Args))
		for _, a := range n.Args {
			p.node(a, depth+1)
		}
	case *Elem:
		p.printf(depth, "elem")
		p.node(n.X, depth+1)
		p.node(n.Index, depth+1)
	case *ElemRef:
		p.printf(depth, "elemref")
		p.node(n.X, depth+1)
		p.node(n.Index, depth+1)
	case *Scope:
		p.printf(depth, "scope")
		for _, d := range n.Defs {
			p.def(d, depth+1)
		}
		p.node(n.Body, depth+1)
	default:
		p.printf(depth, "unknown %T", n)
	}
}

func (p *printer) def(d Def, depth int) {
	switch d := d.(type) {
	case *VarDef:
		p.printf(depth, "def var %s", d.Name)
		if d.Init != nil {
			p.node(d.Init, depth+1)
		}
	case *ValDef:
		p.printf(depth, "def val %s", d.Name)
		p.node(d.Init, depth+1)
	case *FunDef:
		params := make([]string, len(d.Params))
		for i, prm := range d.Params {
			params[i] = prm.Name
		}
		p.printf(depth, "def fun %s(%s)", d.Name, strings.Join(params, ", "))
		p.node(d.Body, depth+1)
	default:
		p.printf(depth, "unknown def %T", d)
	}
}
