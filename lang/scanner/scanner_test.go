package scanner_test

import (
	"testing"

	"github.com/mna/lama/lang/scanner"
	"github.com/mna/lama/lang/token"
	"github.com/stretchr/testify/require"
)

type tokVal struct {
	tok token.Token
	raw string
}

func scanAll(t *testing.T, src string) ([]tokVal, error) {
	t.Helper()

	var (
		s   scanner.Scanner
		v   token.Value
		el  scanner.ErrorList
		res []tokVal
	)
	s.Init("test.lama", []byte(src), el.Add)
	for {
		tok := s.Scan(&v)
		if tok == token.EOF {
			break
		}
		res = append(res, tokVal{tok: tok, raw: v.Raw})
	}
	return res, el.Err()
}

func TestScan(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		want []tokVal
	}{
		{"empty", "", nil},
		{"spaces", " \t\n ", nil},
		{"int", "123", []tokVal{{token.INT, "123"}}},
		{"ident", "foo_1", []tokVal{{token.IDENT, "foo_1"}}},
		{"keyword", "while", []tokVal{{token.WHILE, "while"}}},
		{"keyword prefix", "whiler", []tokVal{{token.IDENT, "whiler"}}},

		{"assign", "x := 1", []tokVal{
			{token.IDENT, "x"}, {token.ASSIGN, ":="}, {token.INT, "1"},
		}},

		{"operators", "+ - * / % ^ && || < <= > >= == != =", []tokVal{
			{token.PLUS, "+"}, {token.MINUS, "-"}, {token.STAR, "*"},
			{token.SLASH, "/"}, {token.PERCENT, "%"}, {token.CIRCUMFLEX, "^"},
			{token.ANDAND, "&&"}, {token.OROR, "||"},
			{token.LT, "<"}, {token.LE, "<="}, {token.GT, ">"}, {token.GE, ">="},
			{token.EQL, "=="}, {token.NEQ, "!="}, {token.EQ, "="},
		}},

		{"punctuation", "( ) [ ] { } , ; `", []tokVal{
			{token.LPAREN, "("}, {token.RPAREN, ")"},
			{token.LBRACK, "["}, {token.RBRACK, "]"},
			{token.LBRACE, "{"}, {token.RBRACE, "}"},
			{token.COMMA, ","}, {token.SEMI, ";"}, {token.BACKQUOTE, "`"},
		}},

		{"line comment", "1 -- rest is ignored\n2", []tokVal{
			{token.INT, "1"}, {token.INT, "2"},
		}},

		{"block comment", "1 (* a (* nested *) b *) 2", []tokVal{
			{token.INT, "1"}, {token.INT, "2"},
		}},

		{"string", `"hello"`, []tokVal{{token.STRING, `"hello"`}}},
		{"string quote escape", `"say ""hi"""`, []tokVal{{token.STRING, `"say ""hi"""`}}},

		{"no space", "write(1+2*3)", []tokVal{
			{token.IDENT, "write"}, {token.LPAREN, "("}, {token.INT, "1"},
			{token.PLUS, "+"}, {token.INT, "2"}, {token.STAR, "*"},
			{token.INT, "3"}, {token.RPAREN, ")"},
		}},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			got, err := scanAll(t, c.src)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestScanValues(t *testing.T) {
	var (
		s  scanner.Scanner
		v  token.Value
		el scanner.ErrorList
	)
	s.Init("test.lama", []byte(`x 42 "a""b"`), el.Add)

	require.Equal(t, token.IDENT, s.Scan(&v))
	require.Equal(t, "x", v.Str)
	require.Equal(t, "1:1", v.Pos.String())

	require.Equal(t, token.INT, s.Scan(&v))
	require.Equal(t, int64(42), v.Int)
	require.Equal(t, "1:3", v.Pos.String())

	require.Equal(t, token.STRING, s.Scan(&v))
	require.Equal(t, `a"b`, v.Str)
	require.Equal(t, "1:6", v.Pos.String())

	require.Equal(t, token.EOF, s.Scan(&v))
	require.NoError(t, el.Err())
}

func TestScanErrors(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		err  string
	}{
		{"invalid char", "x ? y", "invalid character"},
		{"lone colon", ": 1", "invalid character"},
		{"lone ampersand", "a & b", "invalid character"},
		{"unterminated string", `"abc`, "string literal not terminated"},
		{"string with newline", "\"abc\n\"", "string literal not terminated"},
		{"unterminated comment", "1 (* foo", "comment not terminated"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			_, err := scanAll(t, c.src)
			require.ErrorContains(t, err, c.err)
		})
	}
}

func TestScanPositions(t *testing.T) {
	src := "var x;\nx := 1"
	var (
		s  scanner.Scanner
		v  token.Value
		el scanner.ErrorList
	)
	s.Init("test.lama", []byte(src), el.Add)

	wantPos := []string{"1:1", "1:5", "1:6", "2:1", "2:3", "2:6"}
	for _, want := range wantPos {
		tok := s.Scan(&v)
		require.NotEqual(t, token.EOF, tok)
		require.Equal(t, want, v.Pos.String())
	}
	require.Equal(t, token.EOF, s.Scan(&v))
	require.NoError(t, el.Err())
}
