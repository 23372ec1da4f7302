// Package validate implements the single post-parse validation pass
// (component D of the spec): every Raw address in the story is resolved to
// a Validated one, in place, with every failure aggregated rather than
// aborting on the first one (spec §4.4).
package validate

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/sets/hashset"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/store"
)

// ErrorKind mirrors spec §7's load-time taxonomy.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	UsedVariableAsLocation
	UsedLocationAsVariable
	AmbiguousNameClash
)

// InvalidAddressError is one entry in the aggregated load-time error list.
type InvalidAddressError struct {
	Kind       ErrorKind
	Name       string
	SourceLine int
}

func (e *InvalidAddressError) Error() string {
	switch e.Kind {
	case UsedVariableAsLocation:
		return fmt.Sprintf("line %d: %q names a variable but is used as a location", e.SourceLine, e.Name)
	case UsedLocationAsVariable:
		return fmt.Sprintf("line %d: %q names a knot or stitch but is used as a variable", e.SourceLine, e.Name)
	case AmbiguousNameClash:
		return fmt.Sprintf("%q is declared as both a knot and a variable", e.Name)
	default:
		return fmt.Sprintf("line %d: unknown address %q", e.SourceLine, e.Name)
	}
}

// Errors aggregates every InvalidAddressError found during a pass.
type Errors []*InvalidAddressError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d invalid address(es): %s", len(e), strings.Join(parts, "; "))
}

type walker struct {
	ns     *addr.Namespace
	vars   *store.Store
	errors Errors
}

// Validate runs the single pass described by spec §4.4 over the whole
// story, returning the populated namespace the rest of the engine can rely
// on, plus any aggregated errors. A non-empty Errors means the story is not
// ready and must not be followed.
func Validate(s *node.Story, vars *store.Store) (*addr.Namespace, Errors) {
	w := &walker{ns: buildNamespace(s, vars), vars: vars}
	w.checkNameClashes(s)
	it := s.Knots.Iterator()
	for it.Next() {
		knot := it.Value().(*node.Knot)
		sit := knot.Stitches.Iterator()
		for sit.Next() {
			stitch := sit.Value().(*node.Stitch)
			w.walkItems(stitch.Root.Items, knot.Name)
		}
	}
	return w.ns, w.errors
}

func buildNamespace(s *node.Story, vars *store.Store) *addr.Namespace {
	ns := addr.NewNamespace()
	it := s.Knots.Iterator()
	for it.Next() {
		knot := it.Value().(*node.Knot)
		stitches := make(map[string]bool)
		sit := knot.Stitches.Iterator()
		for sit.Next() {
			stitches[sit.Key().(string)] = true
		}
		ns.Stitches[knot.Name] = stitches
		ns.Defaults[knot.Name] = knot.DefaultStitch
	}
	for _, name := range vars.Names() {
		ns.Variables[name] = true
	}
	return ns
}

// checkNameClashes enforces spec §4.1: "knots and variables sharing a name
// is an error at load time".
func (w *walker) checkNameClashes(s *node.Story) {
	knotSet := hashset.New()
	for _, name := range s.KnotNames() {
		knotSet.Add(name)
	}
	for _, name := range w.vars.Names() {
		if knotSet.Contains(name) {
			w.errors = append(w.errors, &InvalidAddressError{Kind: AmbiguousNameClash, Name: name})
		}
	}
}

func (w *walker) walkItems(items []node.NodeItem, currentKnot string) {
	for i := range items {
		item := &items[i]
		switch item.Kind {
		case node.ItemLine:
			w.walkLine(item.Line, currentKnot)
		case node.ItemBranchingChoice:
			for _, branch := range item.Branches {
				w.walkChoice(branch.Choice, currentKnot)
				w.walkItems(branch.Items, currentKnot)
			}
		}
	}
}

func (w *walker) walkChoice(c *content.InternalChoice, currentKnot string) {
	w.walkLine(&c.SelectionText, currentKnot)
	w.walkLine(&c.DisplayText, currentKnot)
	for i := range c.Conditions {
		w.walkCondition(&c.Conditions[i], currentKnot, c.SelectionText.SourceLine)
	}
}

func (w *walker) walkLine(line *content.InternalLine, currentKnot string) {
	w.walkChunk(&line.Chunk, currentKnot, line.SourceLine)
}

func (w *walker) walkChunk(chunk *content.LineChunk, currentKnot string, sourceLine int) {
	if chunk.Condition != nil {
		w.walkCondition(chunk.Condition, currentKnot, sourceLine)
	}
	w.walkContentList(chunk.Items, currentKnot, sourceLine)
	w.walkContentList(chunk.ElseItems, currentKnot, sourceLine)
}

func (w *walker) walkContentList(items []content.Content, currentKnot string, sourceLine int) {
	for i := range items {
		item := &items[i]
		switch item.Kind {
		case content.Divert:
			item.DivertTo = w.resolveLocation(item.DivertTo, currentKnot, sourceLine)
		case content.AlternativeContent:
			for j := range item.Alt.SubChunks {
				w.walkChunk(&item.Alt.SubChunks[j], currentKnot, sourceLine)
			}
		case content.ExpressionContent:
			w.walkExpression(item.Expr, currentKnot, sourceLine)
		case content.Nested:
			w.walkChunk(item.NestedChunk, currentKnot, sourceLine)
		}
	}
}

func (w *walker) walkExpression(e *content.Expression, currentKnot string, sourceLine int) {
	if e == nil {
		return
	}
	switch e.Kind {
	case content.ExprNumVisits:
		e.VisitAddr = w.resolveLocation(e.VisitAddr, currentKnot, sourceLine)
	case content.ExprVarRef:
		if !w.vars.Has(e.VarName) {
			w.errors = append(w.errors, &InvalidAddressError{Kind: Unknown, Name: e.VarName, SourceLine: sourceLine})
		}
	}
	w.walkExpression(e.Left, currentKnot, sourceLine)
	w.walkExpression(e.Right, currentKnot, sourceLine)
}

func (w *walker) walkCondition(c *content.Condition, currentKnot string, sourceLine int) {
	if c == nil {
		return
	}
	switch c.Kind {
	case content.CondNumVisits:
		c.VisitAddr = w.resolveLocation(c.VisitAddr, currentKnot, sourceLine)
	case content.CondVariable:
		if !w.vars.Has(c.VarName) {
			w.errors = append(w.errors, &InvalidAddressError{Kind: Unknown, Name: c.VarName, SourceLine: sourceLine})
		}
	case content.CondAnd, content.CondOr:
		w.walkCondition(c.Left, currentKnot, sourceLine)
		w.walkCondition(c.Right, currentKnot, sourceLine)
	case content.CondNot:
		w.walkCondition(c.Left, currentKnot, sourceLine)
	}
}

// resolveLocation resolves a Raw address that the grammar position
// requires to be a location, appending an error and returning the address
// unchanged (still Raw) on failure so that later passes can detect and
// refuse to traverse it (spec invariant 1 in §8).
func (w *walker) resolveLocation(a content.Address, currentKnot string, sourceLine int) content.Address {
	if !a.IsRaw() {
		return a
	}
	resolved, err := w.ns.ResolveAsLocation(a.RawName(), currentKnot)
	if err != nil {
		w.errors = append(w.errors, &InvalidAddressError{
			Kind:       mapFailureKind(err.Kind),
			Name:       err.Name,
			SourceLine: sourceLine,
		})
		return a
	}
	return resolved
}

func mapFailureKind(k addr.FailureKind) ErrorKind {
	switch k {
	case addr.ValidatedAsVariableUsedAsLocation:
		return UsedVariableAsLocation
	case addr.ValidatedAsLocationUsedAsVariable:
		return UsedLocationAsVariable
	default:
		return Unknown
	}
}
