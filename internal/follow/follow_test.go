package follow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/eval"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/process"
	"github.com/windlore/inkrunner/internal/store"
)

func line(text string) content.InternalLine {
	return content.NewInternalLine(text)
}

func lineGlue(text string, glueBegin, glueEnd bool) content.InternalLine {
	l := content.NewInternalLine(text)
	l.GlueBegin = glueBegin
	l.GlueEnd = glueEnd
	return l
}

func divertLine(text, knot, stitch string) content.InternalLine {
	return content.InternalLine{Chunk: content.NewLineChunk([]content.Content{
		content.NewText(text),
		content.NewDivert(addr.NewLocation(addr.Location{Knot: knot, Stitch: stitch})),
	})}
}

func newTestEngine(s *node.Story) *Engine {
	vars := store.New()
	visits := node.NewVisitCounters()
	ev := eval.New(vars, visits)
	proc := process.New(ev)
	return New(s, visits, proc, ev)
}

func TestResumeLinearStoryReachesEnd(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("start")
	l := line("You stand in a hallway.")
	knot.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &l},
	}}})
	s.AddKnot(knot)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	outcome, err := e.Resume(state, buf)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	require.Len(t, buf.Entries, 1)
	assert.Equal(t, "You stand in a hallway.", buf.Entries[0].Text)
}

func TestResumeAfterDoneDoesNotReenterStory(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("start")
	l := line("You stand in a hallway.")
	knot.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &l},
	}}})
	s.AddKnot(knot)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	outcome, err := e.Resume(state, buf)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	require.Len(t, buf.Entries, 1)

	outcome, err = e.Resume(state, buf)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	assert.Len(t, buf.Entries, 1, "a second Resume past Done must not re-emit the story's prose")
	assert.Equal(t, 1, e.VisitCount(addr.Location{Knot: "start", Stitch: ""}), "a second Resume past Done must not re-count the visit")
}

func TestResumeFollowsDivertAcrossStitches(t *testing.T) {
	s := node.NewStory()
	hallway := node.NewKnot("hallway")
	l1 := divertLine("Leaving.", "garden", "")
	hallway.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &l1},
	}}})
	s.AddKnot(hallway)

	garden := node.NewKnot("garden")
	l2 := line("You are in the garden.")
	garden.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &l2},
	}}})
	s.AddKnot(garden)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "hallway", Stitch: ""})
	buf := &LineBuffer{}
	outcome, err := e.Resume(state, buf)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	assert.Equal(t, addr.Location{Knot: "garden", Stitch: ""}, state.Loc)
	require.Len(t, buf.Entries, 2)
	assert.Equal(t, "Leaving.", buf.Entries[0].Text)
	assert.Equal(t, "You are in the garden.", buf.Entries[1].Text)
}

func buildBranchingStory() *node.Story {
	s := node.NewStory()
	start := node.NewKnot("start")
	intro := line("You enter a room.")
	goNorth := divertLine("You go north.", "north", "")
	branchNorth := &node.Branch{Choice: &content.InternalChoice{
		SelectionText: line("go north"),
		DisplayText:   goNorth,
	}}
	branchSouth := &node.Branch{Choice: &content.InternalChoice{
		SelectionText: line("go south"),
		DisplayText:   line("You go south."),
	}, Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: ptr(line("It's dark."))},
	}}
	start.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &intro},
		{Kind: node.ItemBranchingChoice, Branches: []*node.Branch{branchNorth, branchSouth}},
	}}})
	s.AddKnot(start)

	north := node.NewKnot("north")
	outdoors := line("You are outdoors.")
	north.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &outdoors},
	}}})
	s.AddKnot(north)
	return s
}

func ptr(l content.InternalLine) *content.InternalLine { return &l }

func TestResumeSuspendsOnVisibleChoices(t *testing.T) {
	s := buildBranchingStory()
	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	outcome, err := e.Resume(state, buf)
	require.NoError(t, err)
	assert.False(t, outcome.Done)
	require.Len(t, outcome.Choices, 2)
	assert.Equal(t, "go north", outcome.Choices[0].Text)
	assert.Equal(t, "go south", outcome.Choices[1].Text)
	assert.True(t, state.HasPendingChoice())
}

func TestMakeChoiceDivertingBranchReachesEnd(t *testing.T) {
	s := buildBranchingStory()
	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	_, err := e.Resume(state, buf)
	require.NoError(t, err)

	buf2 := &LineBuffer{}
	outcome, err := e.MakeChoice(state, 0, buf2)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	require.Len(t, buf2.Entries, 2)
	assert.Equal(t, "You go north.", buf2.Entries[0].Text)
	assert.Equal(t, "You are outdoors.", buf2.Entries[1].Text)
	assert.Equal(t, addr.Location{Knot: "north", Stitch: ""}, state.Loc)
}

func TestMakeChoiceNonDivertingBranchReturnsToParent(t *testing.T) {
	s := buildBranchingStory()
	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	_, err := e.Resume(state, buf)
	require.NoError(t, err)

	buf2 := &LineBuffer{}
	outcome, err := e.MakeChoice(state, 1, buf2)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	require.Len(t, buf2.Entries, 2)
	assert.Equal(t, "You go south.", buf2.Entries[0].Text)
	assert.Equal(t, "It's dark.", buf2.Entries[1].Text)
}

func TestMakeChoiceWithoutPendingChoiceErrors(t *testing.T) {
	s := buildBranchingStory()
	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	_, err := e.MakeChoice(state, 0, &LineBuffer{})
	require.Error(t, err)
	assert.IsType(t, &ErrMadeChoiceWithoutChoice{}, err)
}

func TestMakeChoiceOutOfBoundsErrors(t *testing.T) {
	s := buildBranchingStory()
	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	_, err := e.Resume(state, &LineBuffer{})
	require.NoError(t, err)

	_, err = e.MakeChoice(state, 5, &LineBuffer{})
	require.Error(t, err)
	assert.IsType(t, &ErrOutOfBoundsChoice{}, err)
}

func TestNonStickyChoiceHidesAfterOneVisit(t *testing.T) {
	s := node.NewStory()
	loop := node.NewKnot("loop")
	branch := &node.Branch{Choice: &content.InternalChoice{
		SelectionText: line("check note"),
		DisplayText:   divertLine("You check the note.", "loop", ""),
		IsSticky:      false,
	}}
	loop.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemBranchingChoice, Branches: []*node.Branch{branch}},
	}}})
	s.AddKnot(loop)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "loop", Stitch: ""})

	outcome, err := e.Resume(state, &LineBuffer{})
	require.NoError(t, err)
	require.Len(t, outcome.Choices, 1)

	outcome, err = e.MakeChoice(state, 0, &LineBuffer{})
	require.NoError(t, err)
	assert.True(t, outcome.Done, "the non-sticky choice must not reappear on the second visit")
	assert.Empty(t, outcome.Choices)
}

func TestStickyChoiceReappearsAfterVisit(t *testing.T) {
	s := node.NewStory()
	loop := node.NewKnot("loop")
	branch := &node.Branch{Choice: &content.InternalChoice{
		SelectionText: line("check note"),
		DisplayText:   divertLine("You check the note.", "loop", ""),
		IsSticky:      true,
	}}
	loop.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemBranchingChoice, Branches: []*node.Branch{branch}},
	}}})
	s.AddKnot(loop)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "loop", Stitch: ""})

	_, err := e.Resume(state, &LineBuffer{})
	require.NoError(t, err)
	outcome, err := e.MakeChoice(state, 0, &LineBuffer{})
	require.NoError(t, err)
	require.Len(t, outcome.Choices, 1, "a sticky choice stays visible after being taken")
}

func TestFallbackBranchTakenAutomaticallyWhenNoChoiceVisible(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("start")
	fallback := &node.Branch{Choice: &content.InternalChoice{
		DisplayText: line("The story continues on its own."),
		IsFallback:  true,
	}}
	knot.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemBranchingChoice, Branches: []*node.Branch{fallback}},
	}}})
	s.AddKnot(knot)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	outcome, err := e.Resume(state, buf)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	require.Len(t, buf.Entries, 1)
	assert.Equal(t, "The story continues on its own.", buf.Entries[0].Text)
}

func TestConditionGatesChoiceVisibility(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("start")
	cond := content.VarCompare("has_key", content.CmpEq, content.Bool(true))
	gated := &node.Branch{Choice: &content.InternalChoice{
		SelectionText: line("unlock the door"),
		DisplayText:   line("The door swings open."),
		Conditions:    []content.Condition{cond},
	}}
	knot.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemBranchingChoice, Branches: []*node.Branch{gated}},
	}}})
	s.AddKnot(knot)

	vars := store.New()
	vars.Define("has_key", content.Bool(false))
	visits := node.NewVisitCounters()
	ev := eval.New(vars, visits)
	e := New(s, visits, process.New(ev), ev)

	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	outcome, err := e.Resume(state, &LineBuffer{})
	require.NoError(t, err)
	assert.True(t, outcome.Done, "an unsatisfied condition with no fallback ends the story")
	assert.Empty(t, outcome.Choices)
}

func TestLineBufferMergesGluedFragments(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("start")
	l1 := lineGlue("Hello", false, true)
	l2 := lineGlue(", world.", true, false)
	knot.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &l1},
		{Kind: node.ItemLine, Line: &l2},
	}}})
	s.AddKnot(knot)

	e := newTestEngine(s)
	state := NewState(addr.Location{Knot: "start", Stitch: ""})
	buf := &LineBuffer{}
	outcome, err := e.Resume(state, buf)
	require.NoError(t, err)
	assert.True(t, outcome.Done)
	require.Len(t, buf.Entries, 1, "glue must merge the two fragments into one entry")
	assert.Equal(t, "Hello, world.", buf.Entries[0].Text)
}

func TestVisitCountIncrementsOnEachEntry(t *testing.T) {
	s := node.NewStory()
	knot := node.NewKnot("start")
	l := line("Hello.")
	knot.AddStitch(&node.Stitch{Name: "", Root: &node.RootNode{Items: []node.NodeItem{
		{Kind: node.ItemLine, Line: &l},
	}}})
	s.AddKnot(knot)

	e := newTestEngine(s)
	loc := addr.Location{Knot: "start", Stitch: ""}
	assert.Equal(t, 0, e.VisitCount(loc))

	state := NewState(loc)
	_, err := e.Resume(state, &LineBuffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.VisitCount(loc))
}
