package maincmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/mna/lama/lang/scanner"
	"github.com/mna/lama/lang/x86"
	"github.com/mna/mainer"
)

// buildConfig is the environment-provided configuration of the build
// command.
type buildConfig struct {
	// Runtime is the directory containing the compiled runtime.o the
	// executable links against.
	Runtime string `env:"LAMA_RUNTIME" envDefault:"../runtime"`
}

func (c *Cmd) Build(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var cfg buildConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	for _, file := range args {
		prog, err := compileFile(ctx, file)
		if err != nil {
			scanner.PrintError(stdio.Stderr, err)
			return err
		}
		asm, err := x86.Generate(prog)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}

		base := strings.TrimSuffix(file, filepath.Ext(file))
		asmFile := base + ".s"
		if err := os.WriteFile(asmFile, []byte(asm), 0o644); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}

		cmd := exec.CommandContext(ctx, "gcc", "-g", "-m32", "-o", base,
			filepath.Join(cfg.Runtime, "runtime.o"), asmFile)
		cmd.Stdout = stdio.Stdout
		cmd.Stderr = stdio.Stderr
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, err)
			return err
		}
	}
	return nil
}
