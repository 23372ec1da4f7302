package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/store"
)

func lineWithDivert(raw string) *content.InternalLine {
	return &content.InternalLine{Chunk: content.NewLineChunk([]content.Content{content.NewDivert(addr.Raw(raw))})}
}

func storyWithTwoStitches() (*node.Story, *store.Store) {
	s := node.NewStory()
	knot := node.NewKnot("hallway")
	knot.AddStitch(&node.Stitch{Name: "entrance", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: lineWithDivert("far_end")},
	}}})
	knot.AddStitch(&node.Stitch{Name: "far_end", Root: &node.RootNode{}})
	s.AddKnot(knot)
	return s, store.New()
}

func TestValidateResolvesLocalStitchDivert(t *testing.T) {
	s, vars := storyWithTwoStitches()
	ns, errs := Validate(s, vars)
	require.Empty(t, errs)
	require.NotNil(t, ns)

	stitch, _ := s.Knot("hallway")
	entrance, _ := stitch.Stitch("entrance")
	resolved := entrance.Root.Items[0].Line.Chunk.Items[0].DivertTo
	loc, ok := resolved.AsLocation()
	require.True(t, ok)
	assert.Equal(t, "far_end", loc.Stitch)
}

func TestValidateReportsUnknownAddress(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("hallway")
	knot.AddStitch(&node.Stitch{Name: "entrance", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: lineWithDivert("nowhere")},
	}}})
	s.AddKnot(knot)

	_, errs := Validate(s, store.New())
	require.Len(t, errs, 1)
	assert.Equal(t, Unknown, errs[0].Kind)
}

func TestValidateReportsVariableUsedAsLocation(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("hallway")
	knot.AddStitch(&node.Stitch{Name: "entrance", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: lineWithDivert("has_key")},
	}}})
	s.AddKnot(knot)

	vars := store.New()
	vars.Define("has_key", content.Bool(true))

	_, errs := Validate(s, vars)
	require.Len(t, errs, 1)
	assert.Equal(t, UsedVariableAsLocation, errs[0].Kind)
}

func TestValidateReportsKnotVariableNameClash(t *testing.T) {
	s := node.NewStory()
	s.AddKnot(node.NewKnot("hallway"))
	vars := store.New()
	vars.Define("hallway", content.Int(1))

	_, errs := Validate(s, vars)
	require.Len(t, errs, 1)
	assert.Equal(t, AmbiguousNameClash, errs[0].Kind)
}

func TestValidateWalksIntoBranchingChoices(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("hallway")
	choice := &content.InternalChoice{
		SelectionText: content.NewInternalLine("go west"),
		DisplayText:   content.NewInternalLine("go west"),
	}
	branch := &node.Branch{
		Choice: choice,
		Items:  []node.NodeItem{{Kind: node.ItemLine, Line: lineWithDivert("missing_target")}},
	}
	knot.AddStitch(&node.Stitch{Name: "entrance", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemBranchingChoice, Branches: []*node.Branch{branch}},
	}}})
	s.AddKnot(knot)

	_, errs := Validate(s, store.New())
	require.Len(t, errs, 1)
	assert.Equal(t, Unknown, errs[0].Kind)
}
