// Package parse implements the line-oriented textual reader that turns
// story source into the raw node graph and initial variable store
// described by the content model and node graph packages. It never
// resolves an address itself — every Address it emits is Raw, and
// internal/validate is solely responsible for turning those into
// validated Locations and Variables.
package parse

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/store"
)

// Parser holds the mutable state threaded through one Parse call: the
// knot/stitch currently being populated, the stack of open choice-nesting
// levels, and the running counter that assigns each Alternative its
// source-order Position.
type Parser struct {
	story  *node.Story
	vars   *store.Store
	knot   *node.Knot
	stitch *node.Stitch
	levels *arraystack.Stack
	altPos int
	lineNo int
}

// Parse reads source text and builds the raw story graph plus the initial
// variable store. Every address embedded in the result is unresolved
// (addr.KindRaw); call internal/validate.Validate before following it.
func Parse(source string) (*node.Story, *store.Store, error) {
	p := &Parser{
		story:  node.NewStory(),
		vars:   store.New(),
		levels: arraystack.New(),
	}

	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		p.lineNo++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if err := p.dispatchLine(trimmed); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", p.lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner error: %w", err)
	}
	if p.story.Knots.Size() == 0 {
		return nil, nil, fmt.Errorf("story has no knots")
	}

	return p.story, p.vars, nil
}

func (p *Parser) dispatchLine(trimmed string) error {
	switch {
	case isKnotHeader(trimmed):
		return p.startKnot(trimmed)
	case isStitchHeader(trimmed):
		return p.startStitch(trimmed)
	case strings.HasPrefix(trimmed, "VAR "):
		return p.parseVarDecl(trimmed)
	case p.knot == nil && strings.HasPrefix(trimmed, "->"):
		// A bare divert before any knot is declared is redundant: the first
		// declared knot is already the story's root (spec §4.2), so there is
		// nowhere else such a divert could usefully send the reader.
		return nil
	case p.knot == nil:
		return fmt.Errorf("content before first knot declaration")
	case isChoiceMarker(trimmed):
		return p.parseChoiceLine(trimmed)
	default:
		return p.appendPlainLine(trimmed)
	}
}

func isKnotHeader(s string) bool {
	return strings.HasPrefix(s, "==") && strings.HasSuffix(s, "==") && len(strings.Trim(s, "= ")) > 0
}

func isStitchHeader(s string) bool {
	return strings.HasPrefix(s, "=") && !strings.HasPrefix(s, "==")
}

func isChoiceMarker(s string) bool {
	return s[0] == '*' || s[0] == '+'
}

func (p *Parser) startKnot(trimmed string) error {
	name := strings.TrimSpace(strings.Trim(trimmed, "= "))
	if name == "" {
		return fmt.Errorf("knot header has an empty name")
	}
	k := node.NewKnot(name)
	p.story.AddKnot(k)
	p.knot = k
	p.stitch = nil
	p.levels.Clear()
	return nil
}

func (p *Parser) startStitch(trimmed string) error {
	if p.knot == nil {
		return fmt.Errorf("stitch header before any knot declaration")
	}
	name := strings.TrimSpace(strings.TrimLeft(trimmed, "="))
	if name == "" {
		return fmt.Errorf("stitch header has an empty name")
	}
	st := &node.Stitch{Name: name, Root: &node.RootNode{}}
	p.knot.AddStitch(st)
	p.stitch = st
	p.levels.Clear()
	return nil
}

// ensureStitch lazily opens the knot's implicit, unnamed default stitch the
// first time content appears directly under a knot header with no explicit
// stitch header of its own.
func (p *Parser) ensureStitch() {
	if p.stitch == nil {
		st := &node.Stitch{Name: "", Root: &node.RootNode{}}
		p.knot.AddStitch(st)
		p.stitch = st
	}
}

func (p *Parser) parseVarDecl(trimmed string) error {
	rest := strings.TrimSpace(trimmed[len("VAR "):])
	eq := strings.Index(rest, "=")
	if eq == -1 {
		return fmt.Errorf("VAR declaration missing '='")
	}
	name := strings.TrimSpace(rest[:eq])
	valStr := strings.TrimSpace(rest[eq+1:])
	if name == "" {
		return fmt.Errorf("VAR declaration has an empty name")
	}
	v, err := parseVarLiteral(valStr)
	if err != nil {
		return fmt.Errorf("VAR %s: %w", name, err)
	}
	p.vars.Define(name, v)
	return nil
}

func parseVarLiteral(s string) (content.Variable, error) {
	switch {
	case strings.HasPrefix(s, "->"):
		return content.DivertVar(addr.Raw(strings.TrimSpace(s[2:]))), nil
	case s == "true":
		return content.Bool(true), nil
	case s == "false":
		return content.Bool(false), nil
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		return content.Str(s[1 : len(s)-1]), nil
	default:
		return parseNumericLiteral(s)
	}
}

func (p *Parser) appendPlainLine(trimmed string) error {
	p.ensureStitch()
	line, err := p.parseInternalLine(trimmed)
	if err != nil {
		return err
	}
	items := p.targetItems()
	*items = append(*items, node.NodeItem{Kind: node.ItemLine, Line: &line})
	return nil
}

// targetItems returns the items list that the next NodeItem belongs to:
// the current stitch's root items if no choice is currently open, or the
// most recently added branch at the deepest open nesting level otherwise.
func (p *Parser) targetItems() *[]node.NodeItem {
	if p.levels.Empty() {
		return &p.stitch.Root.Items
	}
	v, _ := p.levels.Peek()
	return &v.(*choiceLevel).lastBranch.Items
}
