package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/lama/lang/machine"
	"github.com/mna/lama/lang/scanner"
	"github.com/mna/mainer"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		prog, err := compileFile(ctx, file)
		if err != nil {
			scanner.PrintError(stdio.Stderr, err)
			return err
		}
		th := machine.Thread{Stdin: stdio.Stdin, Stdout: stdio.Stdout}
		if err := th.Run(ctx, prog); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}
	return nil
}
