// Package process implements the line processor (component F of the
// spec): it expands one validated InternalLine into finished text, tags
// and glue flags, halting early if it encounters a divert.
package process

import (
	"hash/fnv"
	"strings"

	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/eval"
)

// Fragment is the finished result of processing one InternalLine (spec
// §4.6): the assembled text, its tags, its glue flags, and the divert
// target if the line halted on one.
type Fragment struct {
	Text      string
	Tags      []string
	GlueBegin bool
	GlueEnd   bool
	Divert    *content.Address
}

// Processor expands InternalLines using an Evaluator for embedded
// expressions and conditions.
type Processor struct {
	Eval *eval.Evaluator
}

// New builds a Processor bound to the given evaluator.
func New(e *eval.Evaluator) *Processor {
	return &Processor{Eval: e}
}

// Process runs the four steps of spec §4.6 against a single InternalLine.
func (p *Processor) Process(line *content.InternalLine) (Fragment, error) {
	return p.process(line, false)
}

// Preview renders a line the same way Process does, but without advancing
// any Alternative counters it passes through. Used where the text is only
// being listed, not actually traversed (e.g. a choice's selection text
// while computing the visible choice list) — listing a choice must not
// itself count as a visit to an alternative embedded in its text.
func (p *Processor) Preview(line *content.InternalLine) (Fragment, error) {
	return p.process(line, true)
}

func (p *Processor) process(line *content.InternalLine, peek bool) (Fragment, error) {
	var buf strings.Builder
	divert, err := p.processChunk(&buf, &line.Chunk, peek)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{
		Text:      buf.String(),
		Tags:      line.Tags,
		GlueBegin: line.GlueBegin,
		GlueEnd:   line.GlueEnd,
		Divert:    divert,
	}, nil
}

// processChunk walks one LineChunk's chosen items (condition picks items
// vs else_items), appending text to buf. It returns the divert target
// encountered, if any; per spec §4.6, once a divert is found no further
// items at any nesting level are processed.
func (p *Processor) processChunk(buf *strings.Builder, chunk *content.LineChunk, peek bool) (*content.Address, error) {
	satisfied, err := p.Eval.EvalCondition(chunk.Condition)
	if err != nil {
		return nil, err
	}

	items := chunk.Items
	if chunk.Condition != nil && !satisfied {
		items = chunk.ElseItems
	}

	for i := range items {
		divert, err := p.processItem(buf, &items[i], peek)
		if err != nil {
			return nil, err
		}
		if divert != nil {
			return divert, nil
		}
	}
	return nil, nil
}

func (p *Processor) processItem(buf *strings.Builder, item *content.Content, peek bool) (*content.Address, error) {
	switch item.Kind {
	case content.Text:
		buf.WriteString(item.TextValue)
		return nil, nil

	case content.Divert:
		addr := item.DivertTo
		return &addr, nil

	case content.ExpressionContent:
		v, err := p.Eval.EvalExpression(item.Expr)
		if err != nil {
			return nil, err
		}
		buf.WriteString(v.Format())
		return nil, nil

	case content.AlternativeContent:
		var idx int
		var ok bool
		if peek {
			idx, ok = item.Alt.Peek(shuffleIndex)
		} else {
			idx, ok = item.Alt.Select(shuffleIndex)
		}
		if !ok {
			return nil, nil
		}
		return p.processChunk(buf, &item.Alt.SubChunks[idx], peek)

	case content.Nested:
		return p.processChunk(buf, item.NestedChunk, peek)

	case content.Empty:
		return nil, nil

	default:
		return nil, nil
	}
}

// shuffleIndex deterministically selects a Shuffle alternative's sub-chunk
// from its textual position and current visit count (SPEC_FULL.md Open
// Questions), rather than from wall-clock entropy.
func shuffleIndex(position, visits, n int) int {
	h := fnv.New64a()
	h.Write([]byte{
		byte(position), byte(position >> 8), byte(position >> 16), byte(position >> 24),
		byte(visits), byte(visits >> 8), byte(visits >> 16), byte(visits >> 24),
	})
	return int(h.Sum64() % uint64(n))
}
