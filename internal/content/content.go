// Package content holds the pure data model for story content: line
// chunks, alternatives, conditions, expressions and variables (component B
// of the spec). It has no traversal behavior beyond the structural
// invariants spec §4.2 names.
package content

import "github.com/windlore/inkrunner/internal/addr"

// Address is a re-export of addr.Address so callers of this package don't
// need a second import for the type embedded throughout the content model.
type Address = addr.Address

// ContentKind tags which variant a Content value holds.
type ContentKind int

const (
	Text ContentKind = iota
	Divert
	AlternativeContent
	ExpressionContent
	Nested
	Empty
)

// Content is one item inside a LineChunk's items/else_items list (spec §3).
type Content struct {
	Kind ContentKind

	TextValue string
	DivertTo  Address
	Alt       *Alternative
	Expr      *Expression
	NestedChunk *LineChunk
}

func NewText(s string) Content                 { return Content{Kind: Text, TextValue: s} }
func NewDivert(a Address) Content               { return Content{Kind: Divert, DivertTo: a} }
func NewAlternativeContent(a *Alternative) Content { return Content{Kind: AlternativeContent, Alt: a} }
func NewExpression(e *Expression) Content       { return Content{Kind: ExpressionContent, Expr: e} }
func NewNested(c *LineChunk) Content            { return Content{Kind: Nested, NestedChunk: c} }
func NewEmpty() Content                         { return Content{Kind: Empty} }

// LineChunk is an optional condition plus the two branches of content it
// gates (spec §3). Invariant (spec §4.2): Items is never empty (an Empty
// Content is inserted if the parser produced nothing), and ElseItems is
// only populated when Condition is set.
type LineChunk struct {
	Condition *Condition
	Items     []Content
	ElseItems []Content
}

// NewLineChunk builds a LineChunk, enforcing the "never empty" invariant.
func NewLineChunk(items []Content) LineChunk {
	if len(items) == 0 {
		items = []Content{NewEmpty()}
	}
	return LineChunk{Items: items}
}

// InternalLine carries a root chunk plus tags and glue flags (spec §3).
type InternalLine struct {
	Chunk      LineChunk
	Tags       []string
	GlueBegin  bool
	GlueEnd    bool
	SourceLine int
}

// NewInternalLine builds an InternalLine from plain text, the common case
// used by tests that build lines without a parse.
func NewInternalLine(text string) InternalLine {
	return InternalLine{Chunk: NewLineChunk([]Content{NewText(text)})}
}

// InternalChoice is a single branch-introducing choice (spec §3).
type InternalChoice struct {
	SelectionText InternalLine
	DisplayText   InternalLine
	Conditions    []Condition
	IsSticky      bool
	IsFallback    bool
}
