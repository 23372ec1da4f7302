// Package eval implements the expression and condition evaluator
// (component E of the spec): arithmetic and predicate evaluation against
// the live variable store and visit counters.
package eval

import (
	"fmt"

	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/store"
)

// ErrDivisionByZero is the one runtime error the evaluator itself can
// produce (spec §4.5).
type ErrDivisionByZero struct{}

func (e *ErrDivisionByZero) Error() string { return "division by zero" }

// Evaluator evaluates Expression/Condition trees against a story's mutable
// state: its variable store and visit counters.
type Evaluator struct {
	Vars   *store.Store
	Visits *node.VisitCounters
}

// New builds an Evaluator bound to the given mutable state.
func New(vars *store.Store, visits *node.VisitCounters) *Evaluator {
	return &Evaluator{Vars: vars, Visits: visits}
}

func (e *Evaluator) visitsAt(a content.Address) (int, error) {
	loc, ok := a.AsLocation()
	if !ok {
		return 0, fmt.Errorf("NumVisits used with a non-location address: %s", a)
	}
	return e.Visits.Get(node.NodeID{Loc: loc}), nil
}

// EvalExpression walks an Expression tree and produces the Variable it
// represents (spec §4.5): literal, variable reference, visit-count query,
// arithmetic, comparisons and logical not.
func (e *Evaluator) EvalExpression(expr *content.Expression) (content.Variable, error) {
	switch expr.Kind {
	case content.ExprLiteral:
		return expr.Literal, nil

	case content.ExprVarRef:
		return e.Vars.Get(expr.VarName)

	case content.ExprNumVisits:
		n, err := e.visitsAt(expr.VisitAddr)
		if err != nil {
			return content.Variable{}, err
		}
		return content.Int(int64(n)), nil

	case content.ExprBinOp:
		return e.evalBinOp(expr)

	case content.ExprCompare:
		cmp, err := e.evalCompare(expr)
		if err != nil {
			return content.Variable{}, err
		}
		return content.Bool(cmp), nil

	case content.ExprNot:
		l, err := e.EvalExpression(expr.Left)
		if err != nil {
			return content.Variable{}, err
		}
		return content.Bool(!truthy(l)), nil

	default:
		return content.Variable{}, fmt.Errorf("unknown expression kind %d", expr.Kind)
	}
}

func (e *Evaluator) evalBinOp(expr *content.Expression) (content.Variable, error) {
	l, err := e.EvalExpression(expr.Left)
	if err != nil {
		return content.Variable{}, err
	}
	r, err := e.EvalExpression(expr.Right)
	if err != nil {
		return content.Variable{}, err
	}

	if expr.Op == content.OpAdd && (l.Kind == content.KindString || r.Kind == content.KindString) {
		return content.Str(l.Format() + r.Format()), nil
	}

	if l.Kind == content.KindFloat || r.Kind == content.KindFloat {
		lf, rf := asFloat(l), asFloat(r)
		switch expr.Op {
		case content.OpAdd:
			return content.Float(lf + rf), nil
		case content.OpSub:
			return content.Float(lf - rf), nil
		case content.OpMul:
			return content.Float(lf * rf), nil
		case content.OpDiv:
			if rf == 0 {
				return content.Variable{}, &ErrDivisionByZero{}
			}
			return content.Float(lf / rf), nil
		case content.OpMod:
			if rf == 0 {
				return content.Variable{}, &ErrDivisionByZero{}
			}
			return content.Float(float64(int64(lf) % int64(rf))), nil
		}
	}

	li, ri := asInt(l), asInt(r)
	switch expr.Op {
	case content.OpAdd:
		return content.Int(li + ri), nil
	case content.OpSub:
		return content.Int(li - ri), nil
	case content.OpMul:
		return content.Int(li * ri), nil
	case content.OpDiv:
		if ri == 0 {
			return content.Variable{}, &ErrDivisionByZero{}
		}
		return content.Int(li / ri), nil
	case content.OpMod:
		if ri == 0 {
			return content.Variable{}, &ErrDivisionByZero{}
		}
		return content.Int(li % ri), nil
	default:
		return content.Variable{}, fmt.Errorf("unknown binary op %d", expr.Op)
	}
}

func (e *Evaluator) evalCompare(expr *content.Expression) (bool, error) {
	l, err := e.EvalExpression(expr.Left)
	if err != nil {
		return false, err
	}
	r, err := e.EvalExpression(expr.Right)
	if err != nil {
		return false, err
	}
	return expr.CompareOp.Apply(compare(l, r)), nil
}

// compare returns <0, 0 or >0 comparing two variables numerically,
// lexically (strings) or as booleans (false < true).
func compare(l, r content.Variable) int {
	if l.Kind == content.KindString || r.Kind == content.KindString {
		ls, rs := l.Format(), r.Format()
		switch {
		case ls < rs:
			return -1
		case ls > rs:
			return 1
		default:
			return 0
		}
	}
	if l.Kind == content.KindBool || r.Kind == content.KindBool {
		lb, rb := truthy(l), truthy(r)
		if lb == rb {
			return 0
		}
		if !lb {
			return -1
		}
		return 1
	}
	if l.Kind == content.KindFloat || r.Kind == content.KindFloat {
		lf, rf := asFloat(l), asFloat(r)
		switch {
		case lf < rf:
			return -1
		case lf > rf:
			return 1
		default:
			return 0
		}
	}
	li, ri := asInt(l), asInt(r)
	switch {
	case li < ri:
		return -1
	case li > ri:
		return 1
	default:
		return 0
	}
}

func truthy(v content.Variable) bool {
	switch v.Kind {
	case content.KindBool:
		return v.Bool
	case content.KindInt:
		return v.Int != 0
	case content.KindFloat:
		return v.Float != 0
	case content.KindString:
		return v.String != ""
	default:
		return false
	}
}

func asFloat(v content.Variable) float64 {
	if v.Kind == content.KindInt {
		return float64(v.Int)
	}
	return v.Float
}

func asInt(v content.Variable) int64 {
	if v.Kind == content.KindFloat {
		return int64(v.Float)
	}
	return v.Int
}

// EvalCondition evaluates a Condition tree to a boolean with short-circuit
// semantics (spec §4.5). An empty condition list (nil Condition) is always
// satisfied.
func (e *Evaluator) EvalCondition(c *content.Condition) (bool, error) {
	if c == nil {
		return true, nil
	}
	switch c.Kind {
	case content.CondTrue:
		return true, nil

	case content.CondNumVisits:
		n, err := e.visitsAt(c.VisitAddr)
		if err != nil {
			return false, err
		}
		return c.Op.Apply(compareInt(int64(n), c.IntValue)), nil

	case content.CondVariable:
		v, err := e.Vars.Get(c.VarName)
		if err != nil {
			return false, err
		}
		return c.Op.Apply(compare(v, c.Value)), nil

	case content.CondAnd:
		l, err := e.EvalCondition(c.Left)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return e.EvalCondition(c.Right)

	case content.CondOr:
		l, err := e.EvalCondition(c.Left)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return e.EvalCondition(c.Right)

	case content.CondNot:
		l, err := e.EvalCondition(c.Left)
		if err != nil {
			return false, err
		}
		return !l, nil

	default:
		return false, fmt.Errorf("unknown condition kind %d", c.Kind)
	}
}

// ConditionsSatisfied evaluates a list of conditions as an implicit AND,
// short-circuiting on the first false or error. An empty list is always
// satisfied (spec §4.5).
func (e *Evaluator) ConditionsSatisfied(conds []content.Condition) (bool, error) {
	for i := range conds {
		ok, err := e.EvalCondition(&conds[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
