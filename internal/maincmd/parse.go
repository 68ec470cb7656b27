package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/lama/lang/ast"
	"github.com/mna/lama/lang/parser"
	"github.com/mna/lama/lang/scanner"
	"github.com/mna/mainer"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFiles(ctx, stdio, args...)
}

func ParseFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	progs, err := parser.ParseFiles(ctx, files...)
	for _, prog := range progs {
		if err := ast.Fprint(stdio.Stdout, prog); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}
	if err != nil {
		scanner.PrintError(stdio.Stderr, err)
	}
	return err
}
