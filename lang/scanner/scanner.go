// Package scanner implements the tokenizer that turns source bytes into the
// token stream consumed by the parser.
package scanner

import (
	"context"
	"fmt"
	"go/scanner"
	"os"
	"strconv"
	"strings"

	"github.com/mna/lama/lang/token"
)

type (
	Error     = scanner.Error
	ErrorList = scanner.ErrorList
)

var PrintError = scanner.PrintError

// TokenAndValue combines the token type with the token value type in the same
// struct.
type TokenAndValue struct {
	Token token.Token
	Value token.Value
}

// ScanFiles is a helper function that tokenizes the source files and returns
// the list of tokens, grouped by the file at the same index, and produces any
// error encountered. The error, if non-nil, is guaranteed to be an ErrorList.
func ScanFiles(ctx context.Context, files ...string) ([][]TokenAndValue, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var (
		s      Scanner
		tokVal token.Value
		el     ErrorList
	)

	tokensByFile := make([][]TokenAndValue, len(files))
	for i, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			el.Add(token.Position{Filename: file}, err.Error())
			continue
		}

		s.Init(file, b, el.Add)
		for {
			tok := s.Scan(&tokVal)
			tokensByFile[i] = append(tokensByFile[i], TokenAndValue{
				Token: tok,
				Value: tokVal,
			})
			if tok == token.EOF {
				break
			}
		}
	}
	el.Sort()
	return tokensByFile, el.Err()
}

// Scanner tokenizes source files for the parser to consume.
type Scanner struct {
	// immutable state after Init
	filename string
	src      []byte
	err      func(pos token.Position, msg string)

	// mutable scanning state
	sb        strings.Builder
	cur       byte // current character, 0 at EOF
	off       int  // offset in bytes of cur
	roff      int  // reading offset in bytes (position after current character)
	line, col int  // 1-based position of cur
}

const eof = 0

// Init initializes the scanner to tokenize a new file.
func (s *Scanner) Init(filename string, src []byte, errHandler func(token.Position, string)) {
	s.filename = filename
	s.src = src
	s.err = errHandler

	s.sb.Reset()
	s.cur = ' '
	s.off = 0
	s.roff = 0
	s.line, s.col = 1, 0
	s.next()
}

func (s *Scanner) next() {
	if s.roff >= len(s.src) {
		if s.cur == '\n' {
			s.line++
			s.col = 1
		} else {
			s.col++
		}
		s.off = len(s.src)
		s.cur = eof
		return
	}
	if s.cur == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	s.cur = s.src[s.roff]
	s.off = s.roff
	s.roff++
}

func (s *Scanner) peek() byte {
	if s.roff >= len(s.src) {
		return eof
	}
	return s.src[s.roff]
}

func (s *Scanner) pos() token.Pos {
	return token.MakePos(s.line, s.col)
}

func (s *Scanner) errorf(pos token.Pos, format string, args ...interface{}) {
	if s.err == nil {
		return
	}
	s.err(pos.ToPosition(s.filename), fmt.Sprintf(format, args...))
}

// Scan returns the next token, filling v with its position and value. At the
// end of the source it returns token.EOF.
func (s *Scanner) Scan(v *token.Value) token.Token {
	s.skipWhitespaceAndComments()

	*v = token.Value{Pos: s.pos()}
	switch cur := s.cur; {
	case cur == eof:
		return token.EOF

	case isLetter(cur):
		v.Str = s.ident()
		v.Raw = v.Str
		return token.Keyword(v.Str)

	case isDigit(cur):
		return s.number(v)

	case cur == '"':
		return s.str(v)

	default:
		return s.punct(v)
	}
}

func (s *Scanner) skipWhitespaceAndComments() {
	for {
		switch {
		case s.cur == ' ' || s.cur == '\t' || s.cur == '\r' || s.cur == '\n':
			s.next()

		case s.cur == '-' && s.peek() == '-':
			for s.cur != '\n' && s.cur != eof {
				s.next()
			}

		case s.cur == '(' && s.peek() == '*':
			startPos := s.pos()
			s.next() // '('
			s.next() // '*'
			depth := 1
			for depth > 0 {
				switch {
				case s.cur == eof:
					s.errorf(startPos, "comment not terminated")
					return
				case s.cur == '(' && s.peek() == '*':
					s.next()
					s.next()
					depth++
				case s.cur == '*' && s.peek() == ')':
					s.next()
					s.next()
					depth--
				default:
					s.next()
				}
			}

		default:
			return
		}
	}
}

func (s *Scanner) ident() string {
	start := s.off
	for isLetter(s.cur) || isDigit(s.cur) {
		s.next()
	}
	return string(s.src[start:s.off])
}

func (s *Scanner) number(v *token.Value) token.Token {
	start := s.off
	for isDigit(s.cur) {
		s.next()
	}
	v.Raw = string(s.src[start:s.off])

	n, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		s.errorf(v.Pos, "invalid integer literal: %s", v.Raw)
		return token.ILLEGAL
	}
	v.Int = n
	return token.INT
}

// str scans a string literal. The only escape is a doubled quote, which
// stands for a single quote; raw newlines are not allowed.
func (s *Scanner) str(v *token.Value) token.Token {
	s.sb.Reset()
	start := s.off
	s.next() // opening quote
	for {
		switch {
		case s.cur == eof || s.cur == '\n':
			s.errorf(v.Pos, "string literal not terminated")
			v.Raw = string(s.src[start:s.off])
			return token.ILLEGAL

		case s.cur == '"':
			if s.peek() == '"' {
				s.sb.WriteByte('"')
				s.next()
				s.next()
				continue
			}
			s.next() // closing quote
			v.Raw = string(s.src[start:s.off])
			v.Str = s.sb.String()
			return token.STRING

		default:
			s.sb.WriteByte(s.cur)
			s.next()
		}
	}
}

func (s *Scanner) punct(v *token.Value) token.Token {
	type pair struct {
		second byte
		tok    token.Token
	}
	var (
		tok    token.Token
		twoOpt pair // optional two-character form
	)

	switch s.cur {
	case '+':
		tok = token.PLUS
	case '-':
		tok = token.MINUS
	case '*':
		tok = token.STAR
	case '/':
		tok = token.SLASH
	case '%':
		tok = token.PERCENT
	case '^':
		tok = token.CIRCUMFLEX
	case ',':
		tok = token.COMMA
	case ';':
		tok = token.SEMI
	case '(':
		tok = token.LPAREN
	case ')':
		tok = token.RPAREN
	case '[':
		tok = token.LBRACK
	case ']':
		tok = token.RBRACK
	case '{':
		tok = token.LBRACE
	case '}':
		tok = token.RBRACE
	case '`':
		tok = token.BACKQUOTE
	case '<':
		tok, twoOpt = token.LT, pair{'=', token.LE}
	case '>':
		tok, twoOpt = token.GT, pair{'=', token.GE}
	case '=':
		tok, twoOpt = token.EQ, pair{'=', token.EQL}
	case '!':
		tok, twoOpt = token.ILLEGAL, pair{'=', token.NEQ}
	case ':':
		tok, twoOpt = token.ILLEGAL, pair{'=', token.ASSIGN}
	case '&':
		tok, twoOpt = token.ILLEGAL, pair{'&', token.ANDAND}
	case '|':
		tok, twoOpt = token.ILLEGAL, pair{'|', token.OROR}
	default:
		s.errorf(v.Pos, "invalid character %q", s.cur)
		v.Raw = string(s.cur)
		s.next()
		return token.ILLEGAL
	}

	first := s.cur
	s.next()
	if twoOpt.tok != token.ILLEGAL && s.cur == twoOpt.second {
		v.Raw = string([]byte{first, s.cur})
		s.next()
		return twoOpt.tok
	}
	if tok == token.ILLEGAL {
		s.errorf(v.Pos, "invalid character %q", first)
	}
	v.Raw = string(first)
	return tok
}

func isLetter(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}
