package machine

import (
	"fmt"
	"strconv"
)

// A Value is a runtime value of the machine: an integer, a boxed string,
// array or s-expression, or a reference to a storage slot.
type Value interface {
	fmt.Stringer

	// Type returns the name of the value's type, for error messages.
	Type() string
}

// Int is a machine integer.
type Int int

func (v Int) String() string { return strconv.Itoa(int(v)) }
func (v Int) Type() string   { return "int" }

// Str is a boxed mutable string. Each string literal evaluation produces a
// fresh box, mirroring the copying runtime.
type Str struct {
	B []byte
}

func (v *Str) String() string { return strconv.Quote(string(v.B)) }
func (v *Str) Type() string   { return "string" }

// Array is a boxed array.
type Array struct {
	Elems []Value
}

func (v *Array) String() string { return fmt.Sprintf("array[%d]", len(v.Elems)) }
func (v *Array) Type() string   { return "array" }

// Sexp is a boxed tagged s-expression.
type Sexp struct {
	Tag  string
	Args []Value
}

func (v *Sexp) String() string { return fmt.Sprintf("`%s[%d]", v.Tag, len(v.Args)) }
func (v *Sexp) Type() string   { return "sexp" }

// Ref is a reference to a storage slot, produced by taking the address of an
// argument, local or global.
type Ref struct {
	Slot *Value
}

func (v Ref) String() string { return "ref" }
func (v Ref) Type() string   { return "reference" }

// asInt returns the integer in v or an error naming the operation.
func asInt(v Value, op string) (int, error) {
	n, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("%s: want an int, got %s", op, v.Type())
	}
	return int(n), nil
}
