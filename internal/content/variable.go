package content

import "fmt"

// VarKind tags which variant a Variable currently holds.
type VarKind int

const (
	KindInt VarKind = iota
	KindFloat
	KindString
	KindBool
	KindDivert
)

// Variable is the tagged value stored for every story variable (spec §3).
// Type is fixed at definition; only Int<->Float cross-assignment is
// permitted afterwards.
type Variable struct {
	Kind   VarKind
	Int    int64
	Float  float64
	String string
	Bool   bool
	// Divert holds the target address when Kind == KindDivert.
	Divert Address
}

func Int(i int64) Variable      { return Variable{Kind: KindInt, Int: i} }
func Float(f float64) Variable  { return Variable{Kind: KindFloat, Float: f} }
func Str(s string) Variable     { return Variable{Kind: KindString, String: s} }
func Bool(b bool) Variable      { return Variable{Kind: KindBool, Bool: b} }
func DivertVar(a Address) Variable { return Variable{Kind: KindDivert, Divert: a} }

// SameKind reports whether v and other are assignment-compatible in place:
// identical kind, or an int/float pair.
func (v Variable) SameKind(other Variable) bool {
	if v.Kind == other.Kind {
		return true
	}
	return (v.Kind == KindInt && other.Kind == KindFloat) ||
		(v.Kind == KindFloat && other.Kind == KindInt)
}

// Format renders a Variable the way the line processor inserts expression
// results into text (spec §4.6 step 2): integers without a decimal point,
// floats with a minimal representation, booleans as true/false, strings
// verbatim.
func (v Variable) Format() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return formatFloat(v.Float)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.String
	case KindDivert:
		return v.Divert.String()
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
