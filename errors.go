package inkrunner

import (
	"errors"
	"fmt"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/validate"
)

// LoadError is returned by LoadStory when the story fails validation
// (spec §7's load-time error taxonomy); it aggregates every
// InvalidAddressError found rather than stopping at the first (spec §4.4).
type LoadError struct {
	Errors validate.Errors
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("inkrunner: story failed validation: %s", e.Errors.Error())
}

func (e *LoadError) Unwrap() error { return e.Errors }

// InvalidTargetError is returned by MoveTo when the given name does not
// resolve to a knot or stitch.
type InvalidTargetError struct {
	Name  string
	Cause *addr.ResolveError
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("inkrunner: move_to %q: %s", e.Name, e.Cause.Error())
}

func (e *InvalidTargetError) Unwrap() error { return e.Cause }

// ErrResumeWithoutChoice is returned by Resume when the story is currently
// suspended on a pending choice; call MakeChoice instead (spec §4.8).
var ErrResumeWithoutChoice = errors.New("inkrunner: resume called while a choice is pending")
