package sm

import "fmt"

// Check verifies the structural well-formedness of a program:
//
//   - every Call target has a matching Label;
//   - every Jump and CondJump target has a matching Label;
//   - no label is defined twice;
//   - every function is shaped Label .. Begin .. End, with the Begin naming
//     the preceding label, and no instruction lives outside a function.
//
// A violation is a compiler bug, but checking is cheap and the textual IR
// can also be produced by hand, so Check returns an error instead of
// panicking.
func Check(prog []Insn) error {
	labels := make(map[string]bool)
	for _, in := range prog {
		if l, ok := in.(Label); ok {
			if labels[l.Name] {
				return fmt.Errorf("label %s defined twice", l.Name)
			}
			labels[l.Name] = true
		}
	}

	var fn string // current function label, "" outside a function
	var pendingBegin bool
	for i, in := range prog {
		if pendingBegin {
			b, ok := in.(Begin)
			if !ok {
				return fmt.Errorf("instruction %d: function %s: expected BEGIN after function label, got %s", i, fn, in)
			}
			if b.Fn != fn {
				return fmt.Errorf("instruction %d: BEGIN %s under label %s", i, b.Fn, fn)
			}
			pendingBegin = false
			continue
		}

		switch in := in.(type) {
		case Label:
			if fn == "" {
				fn = in.Name
				pendingBegin = true
			}
		case Begin:
			return fmt.Errorf("instruction %d: BEGIN %s without a function label", i, in.Fn)
		case End:
			if fn == "" {
				return fmt.Errorf("instruction %d: END outside a function", i)
			}
			fn = ""
		case Jump:
			if !labels[in.To] {
				return fmt.Errorf("instruction %d: jump to undefined label %s", i, in.To)
			}
		case CondJump:
			if in.Cond != "z" && in.Cond != "nz" {
				return fmt.Errorf("instruction %d: invalid jump condition %q", i, in.Cond)
			}
			if !labels[in.To] {
				return fmt.Errorf("instruction %d: jump to undefined label %s", i, in.To)
			}
		case Call:
			if !labels[in.Fn] {
				return fmt.Errorf("instruction %d: call to undefined label %s", i, in.Fn)
			}
		default:
			if fn == "" {
				return fmt.Errorf("instruction %d: %s outside a function", i, in)
			}
		}
	}
	if pendingBegin || fn != "" {
		return fmt.Errorf("function %s not terminated by END", fn)
	}
	return nil
}
