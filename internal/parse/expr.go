package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
)

// parseNumericLiteral parses a bare integer or float literal, used by VAR
// declarations and as the fallback case of parseVarLiteral.
func parseNumericLiteral(s string) (content.Variable, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return content.Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return content.Float(f), nil
	}
	return content.Variable{}, fmt.Errorf("unrecognized literal %q", s)
}

// exprParser is a small hand-rolled recursive-descent parser for the
// arithmetic/comparison expressions embedded in `{...}` spans (spec.md
// §4.5); VAR initializers are read by parseVarLiteral instead. The grammar is deliberately closed — no
// user-defined functions, only the `visits(address)` builtin — so a
// general-purpose expression evaluator from the retrieval pack would add
// an external dependency to parse a handful of operators (see DESIGN.md).
type exprParser struct {
	s   string
	pos int
}

func parseExpression(s string) (*content.Expression, error) {
	p := &exprParser{s: s}
	e, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("unexpected trailing input in expression %q at %d", s, p.pos)
	}
	return e, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peekOp(ops ...string) string {
	p.skipSpace()
	for _, op := range ops {
		if strings.HasPrefix(p.s[p.pos:], op) {
			return op
		}
	}
	return ""
}

func (p *exprParser) parseComparison() (*content.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op := p.peekOp("==", "!=", "<=", ">=", "<", ">")
	if op == "" {
		return left, nil
	}
	p.pos += len(op)
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return content.Compare(compareOpFor(op), left, right), nil
}

func compareOpFor(op string) content.CompareOp {
	switch op {
	case "==":
		return content.CmpEq
	case "!=":
		return content.CmpNeq
	case "<=":
		return content.CmpLe
	case ">=":
		return content.CmpGe
	case "<":
		return content.CmpLt
	default:
		return content.CmpGt
	}
}

func (p *exprParser) parseAdditive() (*content.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peekOp("+", "-")
		if op == "" {
			return left, nil
		}
		p.pos += len(op)
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			left = content.BinaryOp(content.OpAdd, left, right)
		} else {
			left = content.BinaryOp(content.OpSub, left, right)
		}
	}
}

func (p *exprParser) parseMultiplicative() (*content.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peekOp("*", "/", "%")
		if op == "" {
			return left, nil
		}
		p.pos += len(op)
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch op {
		case "*":
			left = content.BinaryOp(content.OpMul, left, right)
		case "/":
			left = content.BinaryOp(content.OpDiv, left, right)
		default:
			left = content.BinaryOp(content.OpMod, left, right)
		}
	}
}

func (p *exprParser) parseUnary() (*content.Expression, error) {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == '!' {
		p.pos++
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return content.LogicalNot(e), nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (*content.Expression, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unexpected end of expression %q", p.s)
	}

	if p.s[p.pos] == '(' {
		p.pos++
		e, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ')' {
			return nil, fmt.Errorf("missing ')' in expression %q", p.s)
		}
		p.pos++
		return e, nil
	}

	if p.s[p.pos] == '"' {
		end := strings.IndexByte(p.s[p.pos+1:], '"')
		if end == -1 {
			return nil, fmt.Errorf("unterminated string literal in %q", p.s)
		}
		lit := p.s[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return content.Lit(content.Str(lit)), nil
	}

	ident := p.scanIdent()
	if ident == "" {
		return nil, fmt.Errorf("unexpected character %q in expression %q", p.s[p.pos], p.s)
	}

	switch ident {
	case "true":
		return content.Lit(content.Bool(true)), nil
	case "false":
		return content.Lit(content.Bool(false)), nil
	case "visits":
		a, err := p.scanCall()
		if err != nil {
			return nil, err
		}
		return content.VisitCount(a), nil
	}

	if isNumberStart(ident) {
		v, err := parseNumericLiteral(ident)
		if err != nil {
			return nil, err
		}
		return content.Lit(v), nil
	}

	return content.VarRef(ident), nil
}

// scanIdent consumes a run of identifier/number characters: letters,
// digits, '_' and, for numbers, '.'.
func (p *exprParser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.s[start:p.pos]
}

func isNumberStart(s string) bool {
	return len(s) > 0 && (s[0] >= '0' && s[0] <= '9')
}

// scanCall parses "(knot.stitch)" immediately following a `visits` token,
// returning the address as Raw (resolved later by internal/validate).
func (p *exprParser) scanCall() (content.Address, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '(' {
		return content.Address{}, fmt.Errorf("expected '(' after 'visits' in %q", p.s)
	}
	end := strings.IndexByte(p.s[p.pos:], ')')
	if end == -1 {
		return content.Address{}, fmt.Errorf("missing ')' after 'visits(' in %q", p.s)
	}
	raw := strings.TrimSpace(p.s[p.pos+1 : p.pos+end])
	p.pos += end + 1
	return addr.Raw(raw), nil
}

// condParser implements the restricted boolean grammar of conditions
// (spec.md §3, §4.5): True, NumVisits/Variable comparisons, and AND/OR/NOT
// combinators. Unlike exprParser's arithmetic, a condition's leaves only
// ever compare a visits(...) call or a variable name against a literal, so
// this is intentionally a separate, smaller grammar rather than a generic
// boolean wrapper over Expression.
type condParser struct {
	s   string
	pos int
}

func parseCondition(s string) (content.Condition, error) {
	p := &condParser{s: s}
	c, err := p.parseOr()
	if err != nil {
		return content.Condition{}, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return content.Condition{}, fmt.Errorf("unexpected trailing input in condition %q at %d", s, p.pos)
	}
	return c, nil
}

func (p *condParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *condParser) consumeWord(word string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.s[p.pos:], word) {
		after := p.pos + len(word)
		if after == len(p.s) || p.s[after] == ' ' || p.s[after] == '(' {
			p.pos = after
			return true
		}
	}
	return false
}

func (p *condParser) consumeOp(op string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.s[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *condParser) parseOr() (content.Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return content.Condition{}, err
	}
	for p.consumeOp("||") || p.consumeWord("or") {
		right, err := p.parseAnd()
		if err != nil {
			return content.Condition{}, err
		}
		left = content.Or(left, right)
	}
	return left, nil
}

func (p *condParser) parseAnd() (content.Condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return content.Condition{}, err
	}
	for p.consumeOp("&&") || p.consumeWord("and") {
		right, err := p.parseNot()
		if err != nil {
			return content.Condition{}, err
		}
		left = content.And(left, right)
	}
	return left, nil
}

func (p *condParser) parseNot() (content.Condition, error) {
	if p.consumeOp("!") || p.consumeWord("not") {
		inner, err := p.parseNot()
		if err != nil {
			return content.Condition{}, err
		}
		return content.Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (content.Condition, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return content.Condition{}, fmt.Errorf("unexpected end of condition %q", p.s)
	}

	if p.s[p.pos] == '(' {
		p.pos++
		c, err := p.parseOr()
		if err != nil {
			return content.Condition{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ')' {
			return content.Condition{}, fmt.Errorf("missing ')' in condition %q", p.s)
		}
		p.pos++
		return c, nil
	}

	if p.consumeWord("true") {
		return content.True(), nil
	}

	if p.consumeWord("visits") {
		a, err := p.scanCall()
		if err != nil {
			return content.Condition{}, err
		}
		op, err := p.scanCompareOp()
		if err != nil {
			return content.Condition{}, err
		}
		n, err := p.scanIntLiteral()
		if err != nil {
			return content.Condition{}, err
		}
		return content.NumVisits(a, op, n), nil
	}

	name := p.scanIdent()
	if name == "" {
		return content.Condition{}, fmt.Errorf("unexpected character %q in condition %q", p.s[p.pos], p.s)
	}
	p.skipSpace()
	if p.pos >= len(p.s) || !isCompareOpStart(p.s[p.pos:]) {
		return content.VarCompare(name, content.CmpEq, content.Bool(true)), nil
	}
	op, err := p.scanCompareOp()
	if err != nil {
		return content.Condition{}, err
	}
	v, err := p.scanLiteral()
	if err != nil {
		return content.Condition{}, err
	}
	return content.VarCompare(name, op, v), nil
}

func isCompareOpStart(s string) bool {
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

func (p *condParser) scanCompareOp() (content.CompareOp, error) {
	p.skipSpace()
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if strings.HasPrefix(p.s[p.pos:], op) {
			p.pos += len(op)
			return compareOpFor(op), nil
		}
	}
	return 0, fmt.Errorf("expected a comparison operator in condition %q at %d", p.s, p.pos)
}

func (p *condParser) scanCall() (content.Address, error) {
	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '(' {
		return content.Address{}, fmt.Errorf("expected '(' after 'visits' in %q", p.s)
	}
	end := strings.IndexByte(p.s[p.pos:], ')')
	if end == -1 {
		return content.Address{}, fmt.Errorf("missing ')' after 'visits(' in %q", p.s)
	}
	raw := strings.TrimSpace(p.s[p.pos+1 : p.pos+end])
	p.pos += end + 1
	return addr.Raw(raw), nil
}

func (p *condParser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.s[start:p.pos]
}

func (p *condParser) scanIntLiteral() (int64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && (p.s[p.pos] == '-' || (p.s[p.pos] >= '0' && p.s[p.pos] <= '9')) {
		p.pos++
	}
	n, err := strconv.ParseInt(p.s[start:p.pos], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expected an integer in condition %q at %d: %w", p.s, start, err)
	}
	return n, nil
}

func (p *condParser) scanLiteral() (content.Variable, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return content.Variable{}, fmt.Errorf("expected a literal in condition %q", p.s)
	}
	if p.s[p.pos] == '"' {
		end := strings.IndexByte(p.s[p.pos+1:], '"')
		if end == -1 {
			return content.Variable{}, fmt.Errorf("unterminated string literal in %q", p.s)
		}
		lit := p.s[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return content.Str(lit), nil
	}
	if p.consumeWord("true") {
		return content.Bool(true), nil
	}
	if p.consumeWord("false") {
		return content.Bool(false), nil
	}
	start := p.pos
	for p.pos < len(p.s) && (p.s[p.pos] == '-' || p.s[p.pos] == '.' || (p.s[p.pos] >= '0' && p.s[p.pos] <= '9')) {
		p.pos++
	}
	return parseNumericLiteral(p.s[start:p.pos])
}
