package follow

import "fmt"

// InternalErrorKind distinguishes the logically-unreachable-post-validation
// bugs of spec §7 from ordinary runtime errors, so a host can report them
// as engine bugs instead of content errors.
type InternalErrorKind int

const (
	EmptyStack InternalErrorKind = iota
	ExpectedBranchingPoint
	StackOutOfBounds
	UnvalidatedAddress
	VariableUsedAsLocation
)

// InternalError signals a bug: the stack disagreed with the graph shape,
// an unvalidated address reached the follow engine, or similar (spec §7).
type InternalError struct {
	Kind   InternalErrorKind
	Detail string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal follow engine error: %s", e.Detail)
}

// ErrOutOfBoundsChoice is returned by MakeChoice when the selection index
// does not name any branch at all (spec §4.7, §7).
type ErrOutOfBoundsChoice struct{ Selection int }

func (e *ErrOutOfBoundsChoice) Error() string {
	return fmt.Sprintf("choice selection %d is out of bounds", e.Selection)
}

// ErrInvalidChoice is returned by MakeChoice when the selection names a
// real branch that is not in the currently visible choice list (spec
// §4.7, §7).
type ErrInvalidChoice struct{ Selection int }

func (e *ErrInvalidChoice) Error() string {
	return fmt.Sprintf("choice selection %d is not currently available", e.Selection)
}

// ErrMadeChoiceWithoutChoice is returned by MakeChoice when no choice is
// currently pending (spec §4.8).
type ErrMadeChoiceWithoutChoice struct{}

func (e *ErrMadeChoiceWithoutChoice) Error() string {
	return "made a choice but no choice is pending"
}
