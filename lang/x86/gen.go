// Package x86 lowers stack-machine programs to 32-bit x86 assembly in AT&T
// syntax. The runtime operand stack is mirrored at compile time by a
// symbolic stack that assigns each value to a register or a frame slot, so
// that most stack traffic never touches memory; the generated code follows
// the cdecl convention and links against the C runtime.
package x86

import (
	"fmt"
	"strings"

	"github.com/mna/lama/lang/sm"
)

// Generate lowers a well-formed program to its assembly text.
func Generate(prog []sm.Insn) (string, error) {
	g := &gen{env: newEnv()}
	for _, in := range prog {
		g.emit(Comment{Text: in.String()})
		if err := g.insn(in); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	sb.WriteString("\t.data\n")
	for _, glb := range g.env.globals {
		fmt.Fprintf(&sb, "%s:\t.int\t0\n", glb)
	}
	for k, s := range g.env.strs {
		fmt.Fprintf(&sb, "string_%d:\t.string\t\"%s\"\n", k, s)
	}
	sb.WriteString("\t.text\n")
	sb.WriteString("\t.global\tmain\n")
	sb.WriteString(render(g.code))
	return sb.String(), nil
}

type gen struct {
	env  *env
	code []Insn
}

func (g *gen) emit(insns ...Insn) {
	g.code = append(g.code, insns...)
}

// loc returns the operand addressing a storage location in the current
// frame: arguments above the return address, locals below the frame
// pointer, globals in the data section.
func (g *gen) loc(l sm.Loc) Opnd {
	switch l := l.(type) {
	case sm.Arg:
		return Slot{N: -1 - l.Index}
	case sm.Local:
		return Slot{N: l.Index}
	case sm.Glob:
		return Mem{Name: g.env.global(l.Name)}
	default:
		panic(fmt.Sprintf("unexpected location %T", l))
	}
}

// move emits a register- or memory-to-anything move, routing through %eax
// when both sides are in memory.
func (g *gen) move(src, dst Opnd) {
	if src == dst {
		return
	}
	if inMemory(src) && inMemory(dst) {
		g.emit(Mov{Src: src, Dst: eax}, Mov{Src: eax, Dst: dst})
		return
	}
	g.emit(Mov{Src: src, Dst: dst})
}

func (g *gen) insn(in sm.Insn) error {
	switch in := in.(type) {
	case sm.Const:
		dst := g.env.allocate()
		g.emit(Mov{Src: Imm{N: in.Value}, Dst: dst})

	case sm.Global:
		g.env.global(in.Name)

	case sm.Str:
		lbl := g.env.literal(escape(in.Value))
		dst := g.env.allocate()
		if inMemory(dst) {
			g.emit(Lea{Src: Mem{Name: lbl}, Dst: eax}, Mov{Src: eax, Dst: dst})
		} else {
			g.emit(Lea{Src: Mem{Name: lbl}, Dst: dst})
		}
		g.call("Bstring", 1, false)

	case sm.Load:
		src := g.loc(in.From)
		dst := g.env.allocate()
		g.move(src, dst)

	case sm.LoadAddr:
		src := g.loc(in.From)
		dst := g.env.allocate()
		if inMemory(dst) {
			g.emit(Lea{Src: src, Dst: eax}, Mov{Src: eax, Dst: dst})
		} else {
			g.emit(Lea{Src: src, Dst: dst})
		}

	case sm.Store:
		g.move(g.env.peek(), g.loc(in.To))

	case sm.StoreInd:
		v := g.env.pop()
		a := g.env.pop()
		ref := a
		if inMemory(a) {
			g.emit(Mov{Src: a, Dst: edx})
			ref = edx
		}
		g.move(v, Ind{Off: 0, Reg: ref.String()})
		g.env.push(v)

	case sm.Binop:
		src := g.env.pop()
		dst := g.env.pop()
		g.binop(in.Op, dst, src)
		g.env.push(dst)

	case sm.Label:
		if g.env.barrier {
			g.env.restore(in.Name)
			g.env.barrier = false
		}
		g.emit(Label{Name: in.Name})

	case sm.Jump:
		g.emit(Jmp{To: in.To})
		g.env.barrier = true

	case sm.CondJump:
		v := g.env.pop()
		g.env.snapshot(in.To)
		g.emit(Cmp{Src: Imm{N: 0}, Dst: v}, CJmp{Cond: in.Cond, To: in.To})

	case sm.Drop:
		g.env.pop()

	case sm.Call:
		g.call(in.Fn, in.N, true)

	case sm.Builtin:
		g.call("L"+in.Name, in.N, true)

	case sm.Elem:
		g.call("Belem", 2, false)

	case sm.Sta:
		g.call("Bsta", 3, true)

	case sm.Array:
		args := g.env.popn(in.N)
		pushes := append(args, Imm{N: in.N})
		g.callWith("Barray", pushes)

	case sm.Sexp:
		args := g.env.popn(in.N)
		pushes := make([]Opnd, 0, in.N+2)
		pushes = append(pushes, Imm{N: int(sm.TagHash(in.Tag))})
		pushes = append(pushes, args...)
		pushes = append(pushes, Imm{N: in.N + 1})
		g.callWith("Bsexp", pushes)

	case sm.Begin:
		g.env.enterFunction(in.Fn, in.NLocals)
		g.emit(
			Push{Op: ebp},
			Mov{Src: esp, Dst: ebp},
			Binop{Op: "-", Src: Mem{Name: "$" + in.Fn + "_SIZE"}, Dst: esp},
		)

	case sm.End:
		if g.env.fname == "main" {
			g.emit(
				Mov{Src: ebp, Dst: esp},
				Pop{Op: ebp},
				Binop{Op: "^", Src: eax, Dst: eax},
				Ret{},
			)
		} else {
			y := g.env.pop()
			// the result may live in a frame slot, read it before the frame goes
			g.emit(
				Mov{Src: y, Dst: eax},
				Mov{Src: ebp, Dst: esp},
				Pop{Op: ebp},
				Ret{},
			)
		}
		g.emit(Meta{Text: fmt.Sprintf("\t.set\t%s_SIZE,\t%d", g.env.fname, (g.env.nlocals+g.env.slots)*4)})
		g.env.barrier = true

	default:
		return fmt.Errorf("codegeneration for instruction %s is not yet implemented", in)
	}
	return nil
}

// call lowers a call to target with n operands popped off the symbolic
// stack. When reversed, the operands are pushed in reverse pop order, so
// that the first-popped one ends up at the lowest address (the leftmost
// cdecl argument); the runtime constructors instead take their trailing
// arguments in pop order.
func (g *gen) call(target string, n int, reversed bool) {
	args := g.env.popn(n)
	if reversed {
		for i, j := 0, len(args)-1; i < j; i, j = i+1, j-1 {
			args[i], args[j] = args[j], args[i]
		}
	}
	g.callWith(target, args)
}

// callWith emits the full call sequence: live registers are saved around the
// call, the operands are pushed in the order given, the caller cleans up and
// the result moves from %eax to a freshly allocated operand.
func (g *gen) callWith(target string, pushes []Opnd) {
	live := g.env.liveRegs()
	for _, r := range live {
		g.emit(Push{Op: r})
	}
	for _, p := range pushes {
		g.emit(Push{Op: p})
	}
	g.emit(Call{To: target})
	if len(pushes) > 0 {
		g.emit(Binop{Op: "+", Src: Imm{N: 4 * len(pushes)}, Dst: esp})
	}
	for i := len(live) - 1; i >= 0; i-- {
		g.emit(Pop{Op: live[i]})
	}
	dst := g.env.allocate()
	g.emit(Mov{Src: eax, Dst: dst})
}

var cmpSuffixes = map[string]string{
	"<":  "l",
	"<=": "le",
	"==": "e",
	"!=": "ne",
	">=": "ge",
	">":  "g",
}

// binop lowers one binary operation; dst is the left operand and receives
// the result, src is the right operand.
func (g *gen) binop(op string, dst, src Opnd) {
	switch op {
	case "+", "-", "*", "^":
		if inMemory(dst) {
			g.emit(
				Mov{Src: dst, Dst: eax},
				Binop{Op: op, Src: src, Dst: eax},
				Mov{Src: eax, Dst: dst},
			)
			return
		}
		g.emit(Binop{Op: op, Src: src, Dst: dst})

	case "&&", "||":
		// normalize both operands to 0/1, combine, store
		g.emit(
			Binop{Op: "^", Src: eax, Dst: eax},
			Cmp{Src: Imm{N: 0}, Dst: dst},
			Set{Cond: "ne", Dst: "%al"},
			Binop{Op: "^", Src: edx, Dst: edx},
			Cmp{Src: Imm{N: 0}, Dst: src},
			Set{Cond: "ne", Dst: "%dl"},
			Binop{Op: op, Src: edx, Dst: eax},
			Mov{Src: eax, Dst: dst},
		)

	case "/":
		g.emit(
			Mov{Src: dst, Dst: eax},
			Cltd{},
			IDiv{Op: src},
			Mov{Src: eax, Dst: dst},
		)

	case "%":
		g.emit(
			Mov{Src: dst, Dst: eax},
			Cltd{},
			IDiv{Op: src},
			Mov{Src: edx, Dst: dst},
		)

	case "==", "!=", "<", "<=", ">", ">=":
		g.emit(Binop{Op: "^", Src: eax, Dst: eax})
		left := dst
		if inMemory(src) {
			g.emit(Mov{Src: dst, Dst: edx})
			left = edx
		}
		g.emit(
			Cmp{Src: src, Dst: left},
			Set{Cond: cmpSuffixes[op], Dst: "%al"},
			Mov{Src: eax, Dst: dst},
		)

	default:
		panic(fmt.Sprintf("unsupported operator %q", op))
	}
}

// escape encodes a string literal for the data section: quotes are doubled,
// newlines and tabs become their backslash escapes, everything else is kept
// verbatim.
func escape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch b := s[i]; b {
		case '"':
			sb.WriteString(`""`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}
