package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/lama/lang/scanner"
	"github.com/mna/lama/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, args...)
}

func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	toksByFile, err := scanner.ScanFiles(ctx, files...)
	for i, toks := range toksByFile {
		for _, tok := range toks {
			fmt.Fprintf(stdio.Stdout, "%s:%s: %s", files[i], tok.Value.Pos, tok.Token)
			switch tok.Token {
			case token.IDENT, token.INT, token.STRING:
				fmt.Fprintf(stdio.Stdout, " %s", tok.Value.Raw)
			}
			fmt.Fprintln(stdio.Stdout)
		}
	}
	if err != nil {
		scanner.PrintError(stdio.Stderr, err)
	}
	return err
}
