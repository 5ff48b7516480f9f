// Package types implements RuneScript's primitive type system: the
// primitive kinds, the three parallel stack domains they belong to, and
// the flattened tuple type used for multi-value script returns.
package types

import "strings"

// Domain is one of the three parallel operand stacks the runtime
// maintains.
type Domain int

const (
	INT Domain = iota
	STRING
	LONG
)

func (d Domain) String() string {
	switch d {
	case INT:
		return "int"
	case STRING:
		return "string"
	case LONG:
		return "long"
	default:
		return "unknown"
	}
}

// Primitive is a single RuneScript value type.
type Primitive int

const (
	Void Primitive = iota
	Int
	Long
	StringType
	Bool
)

var primitiveNames = map[Primitive]string{
	Void:       "void",
	Int:        "int",
	Long:       "long",
	StringType: "string",
	Bool:       "bool",
}

var namesToPrimitive = map[string]Primitive{
	"void":   Void,
	"int":    Int,
	"long":   Long,
	"string": StringType,
	"bool":   Bool,
}

func (p Primitive) String() string {
	if s, ok := primitiveNames[p]; ok {
		return s
	}
	return "invalid"
}

// Lookup resolves a type name to a Primitive.
func Lookup(name string) (Primitive, bool) {
	p, ok := namesToPrimitive[name]
	return p, ok
}

// Domain returns the stack domain a primitive is pushed/popped on.
func (p Primitive) Domain() Domain {
	switch p {
	case StringType:
		return STRING
	case Long:
		return LONG
	default: // Int, Bool, Void (void never pushed)
		return INT
	}
}

// Type is either a single primitive or a flattened tuple of primitives,
// used to represent a script's (possibly multi-value) return type.
type Type struct {
	Elems []Primitive
}

// Scalar returns a single-element Type.
func Scalar(p Primitive) Type {
	return Type{Elems: []Primitive{p}}
}

// Tuple returns a flattened multi-element Type. An empty Tuple is the void
// type.
func Tuple(elems ...Primitive) Type {
	return Type{Elems: elems}
}

// IsVoid reports whether the type carries no values.
func (t Type) IsVoid() bool {
	return len(t.Elems) == 0
}

// IsScalar reports whether the type is exactly one primitive.
func (t Type) IsScalar() bool {
	return len(t.Elems) == 1
}

// Equal reports whether two types have the same flattened element
// sequence.
func (t Type) Equal(other Type) bool {
	if len(t.Elems) != len(other.Elems) {
		return false
	}
	for i := range t.Elems {
		if t.Elems[i] != other.Elems[i] {
			return false
		}
	}
	return true
}

// DomainCounts returns, for each stack domain, how many flattened elements
// of that domain this type contributes. Used by codegen to compute how
// many POP_*_DISCARD instructions an expression statement needs.
func (t Type) DomainCounts() map[Domain]int {
	counts := make(map[Domain]int)
	for _, p := range t.Elems {
		counts[p.Domain()]++
	}
	return counts
}

func (t Type) String() string {
	parts := make([]string, len(t.Elems))
	for i, p := range t.Elems {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
