package parse

import (
	"fmt"
	"strings"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/node"
)

// choiceLevel is one entry on the open-nesting stack: the BranchingChoice
// NodeItem currently open at this depth, and the branch of it that the
// next deeper marker run or plain text line belongs to.
type choiceLevel struct {
	group      *node.NodeItem
	lastBranch *node.Branch
}

// markerRun consumes the leading run of '*'/'+' characters, tolerating a
// single space between consecutive markers ("* * text"), and returns the
// markers (spaces dropped) plus the trimmed remaining text. The caller
// checks the run for '+' (a sticky choice).
func markerRun(s string) (run, rest string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '*' || c == '+' {
			run += string(c)
			i++
			continue
		}
		if c == ' ' && i+1 < len(s) && (s[i+1] == '*' || s[i+1] == '+') {
			i++
			continue
		}
		break
	}
	return run, strings.TrimSpace(s[i:])
}

// parseChoiceLine handles one '*'/'+' marker line: it places the new
// branch under the correctly-nested BranchingChoice, creating that
// BranchingChoice item the first time a depth is reached and reusing it
// for every sibling choice at the same depth afterward.
func (p *Parser) parseChoiceLine(trimmed string) error {
	p.ensureStitch()

	run, rest := markerRun(trimmed)
	depth := len(run)
	if depth == 0 {
		return fmt.Errorf("malformed choice line")
	}
	sticky := strings.Contains(run, "+")

	if depth > p.levels.Size()+1 {
		return fmt.Errorf("choice nesting skipped a level (depth %d after depth %d)", depth, p.levels.Size())
	}
	for p.levels.Size() > depth {
		p.levels.Pop()
	}

	var group *node.NodeItem
	if p.levels.Size() == depth {
		v, _ := p.levels.Peek()
		group = v.(*choiceLevel).group
	} else {
		parentItems := p.targetItems()
		*parentItems = append(*parentItems, node.NodeItem{Kind: node.ItemBranchingChoice})
		group = &(*parentItems)[len(*parentItems)-1]
		p.levels.Push(&choiceLevel{group: group})
	}

	choice, err := p.buildChoice(rest, sticky)
	if err != nil {
		return err
	}
	branch := &node.Branch{Choice: choice}
	group.Branches = append(group.Branches, branch)

	v, _ := p.levels.Peek()
	v.(*choiceLevel).lastBranch = branch
	return nil
}

// buildChoice parses everything after the marker run: an optional leading
// "{condition}", an optional "text[selection-only]display-suffix" bracket
// split, and a trailing "-> target" divert.
func (p *Parser) buildChoice(rest string, sticky bool) (*content.InternalChoice, error) {
	var conditions []content.Condition
	if strings.HasPrefix(rest, "{") {
		if end := matchingBrace(rest, 0); end != -1 {
			condStr := rest[1:end]
			cond, err := parseCondition(condStr)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, cond)
			rest = strings.TrimSpace(rest[end+1:])
		}
	}

	target := ""
	beforeArrow := rest
	if idx := findTopLevelArrow(rest); idx != -1 {
		beforeArrow = strings.TrimSpace(rest[:idx])
		target = strings.TrimSpace(rest[idx+2:])
	}

	selectionRaw, displayRaw, hasBrackets := splitBracket(beforeArrow)

	isFallback := !hasBrackets && selectionRaw == "" && target != ""

	selItems, err := p.parseInlineItems(selectionRaw)
	if err != nil {
		return nil, err
	}
	dispItems, err := p.parseInlineItems(displayRaw)
	if err != nil {
		return nil, err
	}
	if target != "" {
		dispItems = append(dispItems, content.NewDivert(addr.Raw(target)))
	}

	return &content.InternalChoice{
		SelectionText: content.InternalLine{Chunk: content.NewLineChunk(selItems), SourceLine: p.lineNo},
		DisplayText:   content.InternalLine{Chunk: content.NewLineChunk(dispItems), SourceLine: p.lineNo},
		Conditions:    conditions,
		IsSticky:      sticky,
		IsFallback:    isFallback,
	}, nil
}

// splitBracket splits "before[inside]after" into (before+inside,
// before+after); if s has no brackets both results equal s and ok is false.
func splitBracket(s string) (selection, display string, ok bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return strings.TrimSpace(s), strings.TrimSpace(s), false
	}
	end := strings.IndexByte(s[start:], ']')
	if end == -1 {
		return strings.TrimSpace(s), strings.TrimSpace(s), false
	}
	end += start
	before := s[:start]
	inside := s[start+1 : end]
	after := s[end+1:]
	return strings.TrimSpace(before + inside), strings.TrimSpace(before + after), true
}
