package parse

import (
	"fmt"
	"strings"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
)

// findTopLevelByte returns the index of the first occurrence of target
// outside any {...} span, or -1.
func findTopLevelByte(s string, target byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && s[i] == target {
				return i
			}
		}
	}
	return -1
}

// findTopLevelArrow returns the index of the first "->" outside any {...}
// span, or -1.
func findTopLevelArrow(s string) int {
	depth := 0
	for i := 0; i+1 < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && s[i] == '-' && s[i+1] == '>' {
			return i
		}
	}
	return -1
}

// matchingBrace returns the index of the '}' matching the '{' at s[open],
// or -1 if unmatched.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on every occurrence of sep that sits outside any
// nested {...} span.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && s[i] == sep {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// parseInternalLine builds a full InternalLine from one non-structural
// source line: trailing tags, leading/trailing glue, then either the
// "{cond}trueText|falseText" whole-line conditional form or plain content.
func (p *Parser) parseInternalLine(trimmed string) (content.InternalLine, error) {
	text := trimmed
	var tags []string
	if i := findTopLevelByte(text, '#'); i != -1 {
		tagPart := strings.TrimSpace(text[i+1:])
		text = strings.TrimSpace(text[:i])
		for _, t := range strings.Split(tagPart, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	glueBegin := false
	if strings.HasPrefix(text, "<>") {
		glueBegin = true
		text = strings.TrimSpace(strings.TrimPrefix(text, "<>"))
	}
	glueEnd := false
	if strings.HasSuffix(text, "<>") {
		glueEnd = true
		text = strings.TrimSpace(strings.TrimSuffix(text, "<>"))
	}

	if strings.HasPrefix(text, "{") {
		if end := matchingBrace(text, 0); end != -1 {
			afterCond := text[end+1:]
			if bar := findTopLevelByte(afterCond, '|'); bar != -1 {
				condStr := text[1:end]
				trueText := afterCond[:bar]
				falseText := afterCond[bar+1:]

				cond, err := parseCondition(condStr)
				if err != nil {
					return content.InternalLine{}, err
				}
				trueItems, err := p.parseBranchText(trueText)
				if err != nil {
					return content.InternalLine{}, err
				}
				falseItems, err := p.parseBranchText(falseText)
				if err != nil {
					return content.InternalLine{}, err
				}
				if len(trueItems) == 0 {
					trueItems = []content.Content{content.NewEmpty()}
				}
				chunk := content.LineChunk{Condition: &cond, Items: trueItems, ElseItems: falseItems}
				return content.InternalLine{
					Chunk: chunk, Tags: tags, GlueBegin: glueBegin, GlueEnd: glueEnd, SourceLine: p.lineNo,
				}, nil
			}
		}
	}

	items, err := p.parseBranchText(text)
	if err != nil {
		return content.InternalLine{}, err
	}
	return content.InternalLine{
		Chunk: content.NewLineChunk(items), Tags: tags, GlueBegin: glueBegin, GlueEnd: glueEnd, SourceLine: p.lineNo,
	}, nil
}

// parseBranchText extracts a trailing "-> target" divert, if present, then
// expands everything before it into content items.
func (p *Parser) parseBranchText(text string) ([]content.Content, error) {
	body := text
	target := ""
	if idx := findTopLevelArrow(text); idx != -1 {
		body = text[:idx]
		target = strings.TrimSpace(text[idx+2:])
	}
	items, err := p.parseInlineItems(body)
	if err != nil {
		return nil, err
	}
	if target != "" {
		if len(items) == 1 && items[0].Kind == content.Empty {
			items = items[:0]
		}
		items = append(items, content.NewDivert(addr.Raw(target)))
	}
	return items, nil
}

// parseInlineItems expands plain text interspersed with {...} spans into
// an ordered Content list: Text runs verbatim, {...} spans become either
// an Alternative (cycle/once-only/shuffle/sequence) or a single embedded
// Expression.
func (p *Parser) parseInlineItems(text string) ([]content.Content, error) {
	var items []content.Content
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			items = append(items, content.NewText(buf.String()))
			buf.Reset()
		}
	}

	i := 0
	for i < len(text) {
		if text[i] == '{' {
			end := matchingBrace(text, i)
			if end == -1 {
				return nil, fmt.Errorf("unmatched '{' in line text %q", text)
			}
			flush()
			item, err := p.buildSpan(text[i+1 : end])
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			i = end + 1
			continue
		}
		buf.WriteByte(text[i])
		i++
	}
	flush()
	if len(items) == 0 {
		items = []content.Content{content.NewEmpty()}
	}
	return items, nil
}

// buildSpan classifies one {...} span's interior per spec.md §4.6: a
// leading '&'/'!'/'~' selects Cycle/OnceOnly/Shuffle, a bare '|'-delimited
// list with no prefix is a Sequence, and anything else is a single
// embedded Expression.
func (p *Parser) buildSpan(inner string) (content.Content, error) {
	kind := content.Sequence
	body := inner
	switch {
	case strings.HasPrefix(inner, "&"):
		kind, body = content.Cycle, inner[1:]
	case strings.HasPrefix(inner, "!"):
		kind, body = content.OnceOnly, inner[1:]
	case strings.HasPrefix(inner, "~"):
		kind, body = content.Shuffle, inner[1:]
	default:
		if findTopLevelByte(inner, '|') == -1 {
			expr, err := parseExpression(strings.TrimSpace(inner))
			if err != nil {
				return content.Content{}, err
			}
			return content.NewExpression(expr), nil
		}
	}

	pos := p.altPos
	p.altPos++
	parts := splitTopLevel(body, '|')
	subChunks := make([]content.LineChunk, len(parts))
	for i, part := range parts {
		subItems, err := p.parseInlineItems(part)
		if err != nil {
			return content.Content{}, err
		}
		subChunks[i] = content.NewLineChunk(subItems)
	}

	alt := content.NewAlternative(kind, pos, subChunks)
	return content.NewAlternativeContent(alt), nil
}
