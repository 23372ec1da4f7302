// Package follow implements the stack-driven walk over the node graph
// (component G of the spec, "the core algorithm"): it expands inline
// content line by line, following diverts as it goes, until it reaches a
// visible choice set or the end of a story.
package follow

import (
	"github.com/rs/zerolog"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/eval"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/process"
)

// ChoiceInfo describes one visible choice, as handed back to the caller
// (spec §4.7 "Visible choice list" / §6 "Choice(list of {index, text, tags})").
type ChoiceInfo struct {
	Index int
	Text  string
	Tags  []string
}

// Outcome is the result of a single drive-loop run: either the story ended
// (Done) or it suspended on a non-empty visible choice set (spec §4.7
// "Termination modes").
type Outcome struct {
	Done    bool
	Choices []ChoiceInfo
}

// State is everything the follow engine needs to resume a session: the
// current location, the traversal Stack (spec §3), and — only meaningful
// between a suspension on a choice and the matching MakeChoice — which
// branching choice item is pending and which of its branches were visible.
type State struct {
	Loc            addr.Location
	Stack          []int
	PendingBCIndex int
	PendingVisible []int
	Done           bool
}

// NewState builds the initial state for a fresh session, entering at loc
// (spec §4.7 "Entry"): stack empty, no pending choice.
func NewState(loc addr.Location) *State {
	return &State{Loc: loc, PendingBCIndex: -1}
}

// HasPendingChoice reports whether the story is currently suspended on a
// choice (used by the session façade to enforce spec §4.8's
// ResumeWithoutChoice / MadeChoiceWithoutChoice preconditions).
func (s *State) HasPendingChoice() bool { return s.PendingBCIndex >= 0 }

// LineBuffer is the driver-supplied appendable list of (text, tags) pairs
// (spec §6). Consecutive fragments are merged into a single entry when
// glue suppresses the newline between them (spec §4.7 "Glue semantics",
// §8 invariant 6), otherwise each fragment becomes its own entry.
type LineBuffer struct {
	Entries     []LineEntry
	lastGlueEnd bool
}

// LineEntry is one (text, tags) pair in a LineBuffer.
type LineEntry struct {
	Text string
	Tags []string
}

// Append adds a processed Fragment to the buffer, merging it into the
// previous entry when either side glues the boundary.
func (b *LineBuffer) Append(f process.Fragment) {
	if len(b.Entries) > 0 && (b.lastGlueEnd || f.GlueBegin) {
		last := &b.Entries[len(b.Entries)-1]
		last.Text += f.Text
		last.Tags = append(last.Tags, f.Tags...)
	} else {
		tags := append([]string{}, f.Tags...)
		b.Entries = append(b.Entries, LineEntry{Text: f.Text, Tags: tags})
	}
	b.lastGlueEnd = f.GlueEnd
}

// Engine is the follow engine bound to one story's graph and mutable
// state (visit counters, variable store via the evaluator).
type Engine struct {
	Story  *node.Story
	Visits *node.VisitCounters
	Proc   *process.Processor
	Eval   *eval.Evaluator
	Log    *zerolog.Logger // optional; nil means silent
}

// New builds an Engine over a validated story.
func New(story *node.Story, visits *node.VisitCounters, proc *process.Processor, ev *eval.Evaluator) *Engine {
	return &Engine{Story: story, Visits: visits, Proc: proc, Eval: ev}
}

func (e *Engine) logf(event *zerolog.Event, msg string) {
	if e.Log == nil {
		return
	}
	event.Msg(msg)
}

// frame is one level of the in-progress traversal: the items list being
// walked and the index of the next item to execute.
type frame struct {
	items  []node.NodeItem
	idx    int
	nodeID node.NodeID
}

// Resume runs the drive loop of spec §4.7 from state's current position,
// appending emitted prose to buf until the next suspension.
func (e *Engine) Resume(state *State, buf *LineBuffer) (Outcome, error) {
	if state.Done {
		return Outcome{Done: true}, nil
	}
	frames, err := e.rebuildFrames(state.Loc, state.Stack)
	if err != nil {
		return Outcome{}, err
	}
	if len(state.Stack) == 0 {
		e.Visits.Increment(node.NodeID{Loc: state.Loc})
	}
	return e.drive(state, frames, buf)
}

// MakeChoice validates selection against the pending choice list, takes
// that branch (incrementing its visit counter, emitting its display text),
// pushes the stack, and resumes the drive loop inside the branch (spec
// §4.7 "Resuming after a choice").
func (e *Engine) MakeChoice(state *State, selection int, buf *LineBuffer) (Outcome, error) {
	if !state.HasPendingChoice() {
		return Outcome{}, &ErrMadeChoiceWithoutChoice{}
	}

	frames, err := e.rebuildFrames(state.Loc, state.Stack)
	if err != nil {
		return Outcome{}, err
	}
	top := frames[len(frames)-1]
	if state.PendingBCIndex >= len(top.items) || top.items[state.PendingBCIndex].Kind != node.ItemBranchingChoice {
		return Outcome{}, &InternalError{Kind: ExpectedBranchingPoint, Detail: "pending branching choice index is stale"}
	}
	branches := top.items[state.PendingBCIndex].Branches

	if selection < 0 || selection >= len(branches) {
		return Outcome{}, &ErrOutOfBoundsChoice{Selection: selection}
	}
	if !containsInt(state.PendingVisible, selection) {
		return Outcome{}, &ErrInvalidChoice{Selection: selection}
	}

	branch := branches[selection]
	childID := top.nodeID.Child(state.PendingBCIndex, selection)
	e.Visits.Increment(childID)

	frag, err := e.Proc.Process(&branch.Choice.DisplayText)
	if err != nil {
		return Outcome{}, err
	}
	buf.Append(frag)

	state.Stack = append(state.Stack, state.PendingBCIndex, selection)
	state.PendingBCIndex = -1
	state.PendingVisible = nil

	if frag.Divert != nil {
		return e.divertTo(state, *frag.Divert, buf)
	}

	frames = append(frames, frame{items: branch.Items, idx: 0, nodeID: childID})
	return e.drive(state, frames, buf)
}

// drive is the loop of spec §4.7 steps 3-4, operating on an already
// positioned frame stack.
func (e *Engine) drive(state *State, frames []frame, buf *LineBuffer) (Outcome, error) {
	for {
		top := &frames[len(frames)-1]

		if top.idx >= len(top.items) {
			if len(frames) == 1 {
				state.Stack = nil
				state.PendingBCIndex = -1
				state.Done = true
				return Outcome{Done: true}, nil
			}
			bcIdx := state.Stack[len(state.Stack)-2]
			state.Stack = state.Stack[:len(state.Stack)-2]
			frames = frames[:len(frames)-1]
			parent := &frames[len(frames)-1]
			parent.idx = bcIdx + 1
			continue
		}

		item := top.items[top.idx]
		switch item.Kind {
		case node.ItemLine:
			frag, err := e.Proc.Process(item.Line)
			if err != nil {
				return Outcome{}, err
			}
			if frag.Divert != nil {
				buf.Append(frag)
				return e.divertTo(state, *frag.Divert, buf)
			}
			buf.Append(frag)
			top.idx++

		case node.ItemBranchingChoice:
			visible, err := e.visibleChoices(item.Branches, top.nodeID, top.idx)
			if err != nil {
				return Outcome{}, err
			}
			if len(visible) > 0 {
				state.PendingBCIndex = top.idx
				state.PendingVisible = make([]int, len(visible))
				for i, c := range visible {
					state.PendingVisible[i] = c.Index
				}
				state.Stack = currentStack(frames)
				return Outcome{Choices: visible}, nil
			}

			fbIdx, branch := e.firstEligibleFallback(item.Branches)
			if branch == nil {
				top.idx++
				continue
			}
			childID := top.nodeID.Child(top.idx, fbIdx)
			e.Visits.Increment(childID)
			frag, err := e.Proc.Process(&branch.Choice.DisplayText)
			if err != nil {
				return Outcome{}, err
			}
			bcIdx := top.idx
			state.Stack = append(currentStack(frames), bcIdx, fbIdx)
			if frag.Divert != nil {
				buf.Append(frag)
				return e.divertTo(state, *frag.Divert, buf)
			}
			buf.Append(frag)
			frames = append(frames, frame{items: branch.Items, idx: 0, nodeID: childID})

		default:
			return Outcome{}, &InternalError{Kind: ExpectedBranchingPoint, Detail: "unknown node item kind"}
		}
	}
}

// divertTo clears the stack and restarts the drive loop at the divert's
// target stitch (spec §4.7 step 3 "Line:").
func (e *Engine) divertTo(state *State, target content.Address, buf *LineBuffer) (Outcome, error) {
	loc, ok := target.AsLocation()
	if !ok {
		if _, isVar := target.AsVariable(); isVar {
			return Outcome{}, &InternalError{Kind: VariableUsedAsLocation, Detail: "divert targeted a variable address"}
		}
		return Outcome{}, &InternalError{Kind: UnvalidatedAddress, Detail: "divert targeted an unvalidated address"}
	}
	state.Loc = loc
	state.Stack = nil
	state.PendingBCIndex = -1
	state.PendingVisible = nil
	return e.Resume(state, buf)
}

// visibleChoices computes the visible choice list for one BranchingChoice
// item, per spec §4.7: conditions satisfied, and either sticky or never
// visited.
func (e *Engine) visibleChoices(branches []*node.Branch, parent node.NodeID, bcIdx int) ([]ChoiceInfo, error) {
	var out []ChoiceInfo
	for i, branch := range branches {
		if branch.Choice.IsFallback {
			continue
		}
		ok, err := e.Eval.ConditionsSatisfied(branch.Choice.Conditions)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !branch.Choice.IsSticky {
			childID := parent.Child(bcIdx, i)
			if e.Visits.Get(childID) > 0 {
				continue
			}
		}
		frag, err := e.Proc.Preview(&branch.Choice.SelectionText)
		if err != nil {
			return nil, err
		}
		out = append(out, ChoiceInfo{Index: i, Text: frag.Text, Tags: frag.Tags})
	}
	return out, nil
}

// firstEligibleFallback returns the first fallback branch, in declaration
// order, whose own conditions hold (spec §4.7 step 3 "BranchingChoice:").
func (e *Engine) firstEligibleFallback(branches []*node.Branch) (int, *node.Branch) {
	for i, branch := range branches {
		if !branch.Choice.IsFallback {
			continue
		}
		ok, err := e.Eval.ConditionsSatisfied(branch.Choice.Conditions)
		if err != nil || !ok {
			continue
		}
		return i, branch
	}
	return -1, nil
}

// rebuildFrames descends the graph from loc using stack (spec §3's
// even/odd indexing rule), reconstructing one frame per level. Every
// rebuilt frame starts at idx 0: MakeChoice locates the pending item by
// state.PendingBCIndex, and a frame's idx is set from the stack when the
// level below it is popped.
func (e *Engine) rebuildFrames(loc addr.Location, stack []int) ([]frame, error) {
	stitch, err := e.Story.StitchAt(loc)
	if err != nil {
		return nil, &InternalError{Kind: UnvalidatedAddress, Detail: err.Error()}
	}
	frames := []frame{{items: stitch.Root.Items, idx: 0, nodeID: node.NodeID{Loc: loc}}}

	if len(stack)%2 != 0 {
		return nil, &InternalError{Kind: StackOutOfBounds, Detail: "traversal stack has odd length"}
	}

	for i := 0; i < len(stack); i += 2 {
		bcIdx, branchIdx := stack[i], stack[i+1]
		top := frames[len(frames)-1]
		if bcIdx < 0 || bcIdx >= len(top.items) {
			return nil, &InternalError{Kind: StackOutOfBounds, Detail: "stack item index out of range"}
		}
		item := top.items[bcIdx]
		if item.Kind != node.ItemBranchingChoice {
			return nil, &InternalError{Kind: ExpectedBranchingPoint, Detail: "stack expected a branching choice"}
		}
		if branchIdx < 0 || branchIdx >= len(item.Branches) {
			return nil, &InternalError{Kind: StackOutOfBounds, Detail: "stack branch index out of range"}
		}
		branch := item.Branches[branchIdx]
		childID := top.nodeID.Child(bcIdx, branchIdx)
		frames = append(frames, frame{items: branch.Items, idx: 0, nodeID: childID})
	}

	return frames, nil
}

// currentStack flattens a frame stack back into the (bcIndex, branchIndex)
// pair encoding of spec §3, for persisting between suspensions.
func currentStack(frames []frame) []int {
	if len(frames) <= 1 {
		return nil
	}
	stack := make([]int, 0, (len(frames)-1)*2)
	for i := 1; i < len(frames); i++ {
		stack = append(stack, frames[i].nodeID.Path[len(frames[i].nodeID.Path)-2], frames[i].nodeID.Path[len(frames[i].nodeID.Path)-1])
	}
	return stack
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// VisitCount exposes a node's visit counter for the session façade's
// num_visits operation (spec §4.8).
func (e *Engine) VisitCount(loc addr.Location) int {
	return e.Visits.Get(node.NodeID{Loc: loc})
}
