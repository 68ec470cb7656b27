package parser_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mna/lama/internal/filetest"
	"github.com/mna/lama/lang/ast"
	"github.com/mna/lama/lang/parser"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) ast.Node {
	t.Helper()
	n, err := parser.ParseChunk(context.Background(), "test.lama", []byte(src))
	require.NoError(t, err)
	return n
}

func printTree(t *testing.T, n ast.Node) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, ast.Fprint(&sb, n))
	return sb.String()
}

func TestParse(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		want string // printed AST
	}{
		{"empty", "", `
scope
  skip
`},

		{"expression statement is dropped", "write(1+2*3)", `
scope
  ignore
    call write [1]
      binop +
        const 1
        binop *
          const 2
          const 3
`},

		{"precedence and associativity", "write(1-2-3 == 4 && 5 < 6)", `
scope
  ignore
    call write [1]
      binop &&
        binop ==
          binop -
            binop -
              const 1
              const 2
            const 3
          const 4
        binop <
          const 5
          const 6
`},

		{"unary minus", "write(-x*2)", `
scope
  ignore
    call write [1]
      binop *
        binop -
          const 0
          var x
        const 2
`},

		{"var decl with init and assignment", "var x = 5; x := x+1", `
scope
  def var x
    const 5
  ignore
    set x
      binop +
        var x
        const 1
`},

		{"val decl", "val x = 1; write(x)", `
scope
  def val x
    const 1
  ignore
    call write [1]
      var x
`},

		{"element assignment", "var a; a[0][1] := 2", `
scope
  def var a
  ignore
    assign
      elemref
        elem
          var a
          const 0
        const 1
      const 2
`},

		{"if statement drops both branches", "if x then write(1) else write(2) fi", `
scope
  if
    var x
    ignore
      call write [1]
        const 1
    ignore
      call write [1]
        const 2
`},

		{"if statement without else", "if x then write(1) fi", `
scope
  if
    var x
    ignore
      call write [1]
        const 1
    skip
`},

		{"elif chain", "if a then skip elif b then skip else skip fi", `
scope
  if
    var a
    skip
    if
      var b
      skip
      skip
`},

		{"while", "while x > 0 do x := x-1 od", `
scope
  while
    binop >
      var x
      const 0
    ignore
      set x
        binop -
          var x
          const 1
`},

		{"for desugars to while", "for i := 0, i < 5, i := i+1 do write(i) od", `
scope
  seq
    ignore
      set i
        const 0
    while
      binop <
        var i
        const 5
      seq
        ignore
          call write [1]
            var i
        ignore
          set i
            binop +
              var i
              const 1
`},

		{"repeat desugars to dowhile", "repeat x := x-1 until x == 0", `
scope
  dowhile
    ignore
      set x
        binop -
          var x
          const 1
    binop ==
      binop ==
        var x
        const 0
      const 0
`},

		{"fun body returns last expression", "fun f(a, b){ a; b } skip", `
scope
  def fun f(a, b)
    seq
      ignore
        var a
      var b
  skip
`},

		{"fun body ending in statement returns zero", "fun f(){ skip } skip", `
scope
  def fun f()
    seq
      skip
      const 0
  skip
`},

		{"value if gets zero else branch", "fun f(x){ if x then 1 fi } skip", `
scope
  def fun f(x)
    if
      var x
      const 1
      seq
        skip
        const 0
  skip
`},

		{"array and string literals", `var a; a := [1, "two", 3]`, `
scope
  def var a
  ignore
    set a
      array [3]
        const 1
        string "two"
        const 3
`},

		{"sexp literals", "write(`cons(1, `nil))", `
scope
  ignore
    call write [1]
      sexp ` + "`cons [2]" + `
        const 1
        sexp ` + "`nil [0]" + `
`},

		{"nested scope in fun", "fun f(){ var y = 1; y } skip", `
scope
  def fun f()
    scope
      def var y
        const 1
      var y
  skip
`},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			got := printTree(t, parse(t, c.src))
			filetest.Diff(t, "AST", strings.TrimPrefix(c.want, "\n"), got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		err  string
	}{
		{"missing fi", "if x then skip", "expected fi"},
		{"missing od", "while x do skip", "expected od"},
		{"missing until", "repeat skip", "expected until"},
		{"assign to literal", "1 := 2", "cannot assign to this expression"},
		{"assign to call", "f() := 2", "cannot assign to this expression"},
		{"val requires init", "val x; skip", "expected ="},
		{"missing close paren", "write(1", "expected )"},
		{"stray token", "write(1) ] skip", "unexpected"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			_, err := parser.ParseChunk(context.Background(), "test.lama", []byte(c.src))
			require.ErrorContains(t, err, c.err)
		})
	}
}

func TestParsePositions(t *testing.T) {
	n := parse(t, "var x;\nx := read()")
	sc, ok := n.(*ast.Scope)
	require.True(t, ok)
	require.Len(t, sc.Defs, 1)
	require.Equal(t, "1:5", sc.Defs[0].Pos().String())

	ign, ok := sc.Body.(*ast.Ignore)
	require.True(t, ok)
	set, ok := ign.Expr.(*ast.Set)
	require.True(t, ok)
	require.Equal(t, "2:1", set.Start.String())
}
