package compiler_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mna/lama/internal/filetest"
	"github.com/mna/lama/lang/ast"
	"github.com/mna/lama/lang/compiler"
	"github.com/mna/lama/lang/parser"
	"github.com/mna/lama/lang/sm"
	"github.com/mna/lama/lang/token"
	"github.com/stretchr/testify/require"
)

func compileSrc(t *testing.T, src string) []sm.Insn {
	t.Helper()
	ctx := context.Background()
	prog, err := parser.ParseChunk(ctx, "test.lama", []byte(src))
	require.NoError(t, err)
	code, err := compiler.Compile(ctx, prog)
	require.NoError(t, err)
	require.NoError(t, sm.Check(code))
	return code
}

func TestCompile(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		want string // sm.Dump output
	}{
		{"constant expression", "write(1+2*3)", `
main:
	BEGIN main 0 0
	CONST 1
	CONST 2
	CONST 3
	BINOP *
	BINOP +
	BUILTIN write 1
	DROP
	END
`},

		{"global read and write", "var x; x := read(); write(x*x)", `
main:
	BEGIN main 0 0
	GLOBAL x
	BUILTIN read 0
	ST G(x)
	DROP
	LD G(x)
	LD G(x)
	BINOP *
	BUILTIN write 1
	DROP
	END
`},

		{"while loop", "var x = 3; while x do x := x-1 od", `
main:
	BEGIN main 0 0
	GLOBAL x
	CONST 3
	ST G(x)
	DROP
	JMP L2
L3:
	LD G(x)
	CONST 1
	BINOP -
	ST G(x)
	DROP
L2:
	LD G(x)
	CJMP nz L3
	END
`},

		{"recursive function", "fun f(n){ if n<2 then n else f(n-1)+f(n-2) fi } write(f(10))", `
main:
	BEGIN main 0 0
	CONST 10
	CALL Lf 1
	BUILTIN write 1
	DROP
	END
Lf:
	BEGIN Lf 1 0
	LD A(0)
	CONST 2
	BINOP <
	CJMP z L7
	LD A(0)
	JMP L6
L7:
	LD A(0)
	CONST 1
	BINOP -
	CALL Lf 1
	LD A(0)
	CONST 2
	BINOP -
	CALL Lf 1
	BINOP +
L6:
	END
`},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			got := sm.Dump(compileSrc(t, c.src))
			filetest.Diff(t, "SM code", strings.TrimPrefix(c.want, "\n"), got)
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	const src = `
var n;
fun fact(n){ if n == 0 then 1 else n * fact(n-1) fi }
n := read();
write(fact(n))
`
	first := sm.Dump(compileSrc(t, src))
	second := sm.Dump(compileSrc(t, src))
	require.Equal(t, first, second)
}

// every emitted label must be the target of some jump or call, or the head
// of a function; the label-threading scheme never leaves a dead label.
func TestCompileNoDeadLabels(t *testing.T) {
	sources := []string{
		"write(1)",
		"var x; if x then write(1) else write(2) fi",
		"var x; while x do x := x - 1 od",
		"var i, s; for i := 1, i <= 5, i := i+1 do s := s + i od; write(s)",
		"var x = 5; repeat x := x-1 until x == 0; write(x)",
		"fun f(n){ if n<2 then n else f(n-1)+f(n-2) fi } write(f(10))",
		"fun f(x){ if x then 1 fi } write(f(0))",
	}
	for _, src := range sources {
		code := compileSrc(t, src)

		targets := make(map[string]bool)
		for i, in := range code {
			switch in := in.(type) {
			case sm.Jump:
				targets[in.To] = true
			case sm.CondJump:
				targets[in.To] = true
			case sm.Call:
				targets[in.Fn] = true
			case sm.Begin:
				// the preceding label is the function head
				require.Positive(t, i)
				targets[code[i-1].(sm.Label).Name] = true
			}
		}
		for _, in := range code {
			if l, ok := in.(sm.Label); ok {
				require.True(t, targets[l.Name], "%s: dead label %s", src, l.Name)
			}
		}
	}
}

func TestCompileStorageClasses(t *testing.T) {
	t.Run("top-level var is global", func(t *testing.T) {
		got := sm.Dump(compileSrc(t, "var x = 1; write(x)"))
		require.Contains(t, got, "GLOBAL x")
		require.Contains(t, got, "ST G(x)")
	})

	t.Run("top-level val is a local of the entry function", func(t *testing.T) {
		got := sm.Dump(compileSrc(t, "val x = 1; write(x)"))
		require.NotContains(t, got, "GLOBAL")
		require.Contains(t, got, "BEGIN main 0 1")
		require.Contains(t, got, "ST L(0)")
		require.Contains(t, got, "LD L(0)")
	})

	t.Run("function locals", func(t *testing.T) {
		got := sm.Dump(compileSrc(t, "fun f(){ var y = 1; y } write(f())"))
		require.Contains(t, got, "BEGIN Lf 0 1")
		require.Contains(t, got, "ST L(0)")
	})

	t.Run("sibling scopes get distinct slots", func(t *testing.T) {
		got := sm.Dump(compileSrc(t, `
fun f(c){
  if c then var a = 1; a else var b = 2; b fi
}
write(f(1))`))
		require.Contains(t, got, "BEGIN Lf 1 2")
		require.Contains(t, got, "ST L(0)")
		require.Contains(t, got, "ST L(1)")
	})

	t.Run("nested function gets a disambiguated label", func(t *testing.T) {
		got := sm.Dump(compileSrc(t, "fun f(){ fun g(){ 1 } g() } write(f())"))
		require.Contains(t, got, "CALL Lg_")
		require.Contains(t, got, "BEGIN Lf 0 0")
	})
}

func TestCompileReferences(t *testing.T) {
	// the surface syntax has no address-of operator; build the tree directly
	pos := token.MakePos(1, 1)
	id := func(name string) ast.Ident { return ast.Ident{Name: name, Start: pos} }
	prog := &ast.Scope{
		Start: pos,
		Defs:  []ast.Def{&ast.VarDef{Ident: id("x")}},
		Body: &ast.Seq{
			A: &ast.Ignore{Expr: &ast.Assn{
				Target: &ast.Ref{Ident: id("x")},
				Value:  &ast.Const{Start: pos, Value: 5},
			}},
			B: &ast.Ignore{Expr: &ast.Call{Ident: id("write"), Args: []ast.Node{&ast.Var{Ident: id("x")}}}},
		},
	}
	code, err := compiler.Compile(context.Background(), prog)
	require.NoError(t, err)
	got := sm.Dump(code)
	require.Contains(t, got, "LDA G(x)")
	require.Contains(t, got, "STI")
}

func TestCompileDirectBuiltin(t *testing.T) {
	// a Builtin node bypasses name resolution; the parser never produces
	// one, but desugared trees may
	pos := token.MakePos(1, 1)
	prog := &ast.Scope{
		Start: pos,
		Body: &ast.Ignore{Expr: &ast.Builtin{
			Ident: ast.Ident{Name: "write", Start: pos},
			Args:  []ast.Node{&ast.Const{Start: pos, Value: 3}},
		}},
	}
	code, err := compiler.Compile(context.Background(), prog)
	require.NoError(t, err)
	require.Contains(t, sm.Dump(code), "BUILTIN write 1")
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		err  string
	}{
		{"undefined name", "write(y)", `the name "y" does not designate a value at 1:7`},
		{"assign to val", "val x = 1; x := 2", `the name "x" does not designate a variable at 1:12`},
		{"assign to function", "fun f(){ 1 } f := 2", `the name "f" does not designate a variable at 1:14`},
		{"call a variable", "var x; x(1)", `the name "x" does not designate a function at 1:8`},
		{"call undefined", "g(1)", `the name "g" does not designate a function at 1:1`},
		{"function as value", "fun f(){ 1 } write(f)", `the name "f" does not designate a value at 1:20`},
		{"arity mismatch", "write(1, 2)", `the function "write" expects 1 argument(s), got 2 at 1:1`},
		{"duplicate name", "var x, x; skip", `the name "x" is already declared in this scope at 1:8`},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			ctx := context.Background()
			prog, err := parser.ParseChunk(ctx, "test.lama", []byte(c.src))
			require.NoError(t, err)
			_, err = compiler.Compile(ctx, prog)
			require.EqualError(t, err, c.err)
		})
	}
}
