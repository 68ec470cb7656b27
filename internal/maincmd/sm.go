package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/lama/lang/compiler"
	"github.com/mna/lama/lang/parser"
	"github.com/mna/lama/lang/scanner"
	"github.com/mna/lama/lang/sm"
	"github.com/mna/mainer"
)

func (c *Cmd) Sm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		prog, err := compileFile(ctx, file)
		if err != nil {
			scanner.PrintError(stdio.Stderr, err)
			return err
		}
		fmt.Fprint(stdio.Stdout, sm.Dump(prog))
	}
	return nil
}

// compileFile runs the front end and the stack-machine translation on one
// source file.
func compileFile(ctx context.Context, file string) ([]sm.Insn, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	prog, err := parser.ParseChunk(ctx, file, b)
	if err != nil {
		return nil, err
	}
	code, err := compiler.Compile(ctx, prog)
	if err != nil {
		return nil, err
	}
	if err := sm.Check(code); err != nil {
		return nil, fmt.Errorf("%s: internal error: %w", file, err)
	}
	return code, nil
}
