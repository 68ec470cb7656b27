// Package machine implements the interpreter that executes stack-machine
// programs directly. It mirrors the semantics of the generated x86 code and
// of the C runtime, which makes it the execution oracle for the code
// generator: a program must behave identically under both.
package machine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"
	"github.com/mna/lama/lang/sm"
)

// A Thread executes programs. The zero value reads from os.Stdin and writes
// to os.Stdout.
type Thread struct {
	Stdin  io.Reader
	Stdout io.Writer

	// MaxSteps aborts runaway programs when > 0.
	MaxSteps int
}

// Run executes a stack-machine program. The program must be well-formed in
// the sm.Check sense; execution starts at its first instruction and stops
// when the entry function returns.
func (th *Thread) Run(ctx context.Context, prog []sm.Insn) error {
	if err := sm.Check(prog); err != nil {
		return err
	}

	stdin := th.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := th.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	ex := &execution{
		prog:    prog,
		labels:  make(map[string]int),
		globals: swiss.NewMap[string, *Value](8),
		stdin:   bufio.NewReader(stdin),
		stdout:  stdout,
	}
	for pc, in := range prog {
		if l, ok := in.(sm.Label); ok {
			ex.labels[l.Name] = pc
		}
	}
	return ex.run(ctx, th.MaxSteps)
}

// frame is one function activation.
type frame struct {
	args   []Value
	locals []Value
	retpc  int
}

type execution struct {
	prog    []sm.Insn
	labels  map[string]int
	globals *swiss.Map[string, *Value]
	stack   []Value
	frames  []frame
	stdin   *bufio.Reader
	stdout  io.Writer
}

func (ex *execution) push(v Value) {
	ex.stack = append(ex.stack, v)
}

func (ex *execution) pop() (Value, error) {
	if len(ex.stack) == 0 {
		return nil, fmt.Errorf("operand stack underflow")
	}
	v := ex.stack[len(ex.stack)-1]
	ex.stack = ex.stack[:len(ex.stack)-1]
	return v, nil
}

func (ex *execution) popInt(op string) (int, error) {
	v, err := ex.pop()
	if err != nil {
		return 0, err
	}
	return asInt(v, op)
}

// slot returns the storage slot a location designates in the current frame.
func (ex *execution) slot(loc sm.Loc) (*Value, error) {
	fr := &ex.frames[len(ex.frames)-1]
	switch loc := loc.(type) {
	case sm.Arg:
		if loc.Index >= len(fr.args) {
			return nil, fmt.Errorf("argument %d out of range", loc.Index)
		}
		return &fr.args[loc.Index], nil
	case sm.Local:
		if loc.Index >= len(fr.locals) {
			return nil, fmt.Errorf("local %d out of range", loc.Index)
		}
		return &fr.locals[loc.Index], nil
	case sm.Glob:
		p, ok := ex.globals.Get(loc.Name)
		if !ok {
			return nil, fmt.Errorf("undeclared global %s", loc.Name)
		}
		return p, nil
	default:
		panic(fmt.Sprintf("unexpected location %T", loc))
	}
}

func (ex *execution) run(ctx context.Context, maxSteps int) error {
	// the entry function's frame; its END stops execution
	ex.frames = append(ex.frames, frame{retpc: -1})

	pc, steps := 0, 0
	for {
		if pc < 0 || pc >= len(ex.prog) {
			return fmt.Errorf("program counter %d out of range", pc)
		}
		if steps++; maxSteps > 0 && steps > maxSteps {
			return fmt.Errorf("execution aborted after %d steps", maxSteps)
		}

		in := ex.prog[pc]
		switch in := in.(type) {
		case sm.Label:
			// jump target, no effect

		case sm.Global:
			if _, ok := ex.globals.Get(in.Name); !ok {
				v := Value(Int(0))
				ex.globals.Put(in.Name, &v)
			}

		case sm.Const:
			ex.push(Int(in.Value))

		case sm.Str:
			ex.push(&Str{B: []byte(in.Value)})

		case sm.Array:
			elems := make([]Value, in.N)
			for i := 0; i < in.N; i++ {
				v, err := ex.pop()
				if err != nil {
					return ex.errat(pc, in, err)
				}
				elems[i] = v
			}
			ex.push(&Array{Elems: elems})

		case sm.Sexp:
			args := make([]Value, in.N)
			for i := 0; i < in.N; i++ {
				v, err := ex.pop()
				if err != nil {
					return ex.errat(pc, in, err)
				}
				args[i] = v
			}
			ex.push(&Sexp{Tag: in.Tag, Args: args})

		case sm.Binop:
			if err := ex.binop(in.Op); err != nil {
				return ex.errat(pc, in, err)
			}

		case sm.Dup:
			v, err := ex.pop()
			if err != nil {
				return ex.errat(pc, in, err)
			}
			ex.push(v)
			ex.push(v)

		case sm.Drop:
			if _, err := ex.pop(); err != nil {
				return ex.errat(pc, in, err)
			}

		case sm.Load:
			p, err := ex.slot(in.From)
			if err != nil {
				return ex.errat(pc, in, err)
			}
			ex.push(*p)

		case sm.LoadAddr:
			p, err := ex.slot(in.From)
			if err != nil {
				return ex.errat(pc, in, err)
			}
			ex.push(Ref{Slot: p})

		case sm.Store:
			if len(ex.stack) == 0 {
				return ex.errat(pc, in, fmt.Errorf("operand stack underflow"))
			}
			p, err := ex.slot(in.To)
			if err != nil {
				return ex.errat(pc, in, err)
			}
			*p = ex.stack[len(ex.stack)-1]

		case sm.StoreInd:
			v, err := ex.pop()
			if err != nil {
				return ex.errat(pc, in, err)
			}
			rv, err := ex.pop()
			if err != nil {
				return ex.errat(pc, in, err)
			}
			ref, ok := rv.(Ref)
			if !ok {
				return ex.errat(pc, in, fmt.Errorf("want a reference, got %s", rv.Type()))
			}
			*ref.Slot = v
			ex.push(v)

		case sm.Elem:
			if err := ex.elem(); err != nil {
				return ex.errat(pc, in, err)
			}

		case sm.Sta:
			if err := ex.sta(); err != nil {
				return ex.errat(pc, in, err)
			}

		case sm.Jump:
			pc = ex.labels[in.To]
			if err := ctx.Err(); err != nil {
				return err
			}

		case sm.CondJump:
			v, err := ex.popInt("conditional jump")
			if err != nil {
				return ex.errat(pc, in, err)
			}
			if (in.Cond == "z") == (v == 0) {
				pc = ex.labels[in.To]
				if err := ctx.Err(); err != nil {
					return err
				}
			}

		case sm.Call:
			ex.frames = append(ex.frames, frame{retpc: pc + 1})
			pc = ex.labels[in.Fn]

		case sm.Begin:
			fr := &ex.frames[len(ex.frames)-1]
			fr.args = make([]Value, in.NArgs)
			for i := 0; i < in.NArgs; i++ {
				v, err := ex.pop()
				if err != nil {
					return ex.errat(pc, in, err)
				}
				fr.args[i] = v
			}
			fr.locals = make([]Value, in.NLocals)
			for i := range fr.locals {
				fr.locals[i] = Int(0)
			}

		case sm.End:
			fr := ex.frames[len(ex.frames)-1]
			ex.frames = ex.frames[:len(ex.frames)-1]
			if fr.retpc < 0 {
				return nil // the entry function returns nothing
			}
			v, err := ex.pop()
			if err != nil {
				return ex.errat(pc, in, err)
			}
			ex.push(v)
			pc = fr.retpc
			continue

		case sm.Builtin:
			if err := ex.builtin(in.Name, in.N); err != nil {
				return ex.errat(pc, in, err)
			}

		default:
			return ex.errat(pc, in, fmt.Errorf("unsupported instruction"))
		}
		pc++
	}
}

func (ex *execution) errat(pc int, in sm.Insn, err error) error {
	return fmt.Errorf("%s (at %d: %s)", err, pc, in)
}

func (ex *execution) binop(op string) error {
	bv, err := ex.pop()
	if err != nil {
		return err
	}
	av, err := ex.pop()
	if err != nil {
		return err
	}
	a, err := asInt(av, op)
	if err != nil {
		return err
	}
	b, err := asInt(bv, op)
	if err != nil {
		return err
	}

	var r int
	switch op {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return fmt.Errorf("division by zero")
		}
		r = a / b
	case "%":
		if b == 0 {
			return fmt.Errorf("division by zero")
		}
		r = a % b
	case "^":
		r = a ^ b
	case "==":
		r = b2i(a == b)
	case "!=":
		r = b2i(a != b)
	case "<":
		r = b2i(a < b)
	case "<=":
		r = b2i(a <= b)
	case ">":
		r = b2i(a > b)
	case ">=":
		r = b2i(a >= b)
	case "&&":
		r = b2i(a != 0 && b != 0)
	case "||":
		r = b2i(a != 0 || b != 0)
	default:
		return fmt.Errorf("unsupported operator %q", op)
	}
	ex.push(Int(r))
	return nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (ex *execution) elem() error {
	i, err := ex.popInt("element access")
	if err != nil {
		return err
	}
	x, err := ex.pop()
	if err != nil {
		return err
	}
	switch x := x.(type) {
	case *Array:
		if i < 0 || i >= len(x.Elems) {
			return fmt.Errorf("index %d out of range [0:%d]", i, len(x.Elems))
		}
		ex.push(x.Elems[i])
	case *Str:
		if i < 0 || i >= len(x.B) {
			return fmt.Errorf("index %d out of range [0:%d]", i, len(x.B))
		}
		ex.push(Int(x.B[i]))
	case *Sexp:
		if i < 0 || i >= len(x.Args) {
			return fmt.Errorf("index %d out of range [0:%d]", i, len(x.Args))
		}
		ex.push(x.Args[i])
	default:
		return fmt.Errorf("cannot index a %s", x.Type())
	}
	return nil
}

func (ex *execution) sta() error {
	v, err := ex.pop()
	if err != nil {
		return err
	}
	i, err := ex.popInt("element assignment")
	if err != nil {
		return err
	}
	x, err := ex.pop()
	if err != nil {
		return err
	}
	switch x := x.(type) {
	case *Array:
		if i < 0 || i >= len(x.Elems) {
			return fmt.Errorf("index %d out of range [0:%d]", i, len(x.Elems))
		}
		x.Elems[i] = v
	case *Str:
		b, err := asInt(v, "string element assignment")
		if err != nil {
			return err
		}
		if i < 0 || i >= len(x.B) {
			return fmt.Errorf("index %d out of range [0:%d]", i, len(x.B))
		}
		x.B[i] = byte(b)
	case *Sexp:
		if i < 0 || i >= len(x.Args) {
			return fmt.Errorf("index %d out of range [0:%d]", i, len(x.Args))
		}
		x.Args[i] = v
	default:
		return fmt.Errorf("cannot index a %s", x.Type())
	}
	ex.push(v)
	return nil
}

func (ex *execution) builtin(name string, nargs int) error {
	switch name {
	case "read":
		var n int
		if _, err := fmt.Fscan(ex.stdin, &n); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		ex.push(Int(n))

	case "write":
		n, err := ex.popInt("write")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(ex.stdout, "%d\n", n); err != nil {
			return err
		}
		ex.push(Int(0))

	case "length":
		v, err := ex.pop()
		if err != nil {
			return err
		}
		switch v := v.(type) {
		case *Str:
			ex.push(Int(len(v.B)))
		case *Array:
			ex.push(Int(len(v.Elems)))
		case *Sexp:
			ex.push(Int(len(v.Args)))
		default:
			return fmt.Errorf("length: want a string, array or sexp, got %s", v.Type())
		}

	default:
		return fmt.Errorf("unknown builtin %q", name)
	}
	return nil
}
