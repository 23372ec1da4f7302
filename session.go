// Package inkrunner is the session façade (component H): the one
// exported surface a host program needs to load a story and drive it
// turn by turn. Everything under internal/ is plumbing; this package is
// the only thing other modules should import.
package inkrunner

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
	"github.com/windlore/inkrunner/internal/eval"
	"github.com/windlore/inkrunner/internal/follow"
	"github.com/windlore/inkrunner/internal/node"
	"github.com/windlore/inkrunner/internal/parse"
	"github.com/windlore/inkrunner/internal/process"
	"github.com/windlore/inkrunner/internal/store"
	"github.com/windlore/inkrunner/internal/validate"
)

// Session is a loaded, validated story plus everything needed to drive it:
// the mutable variable store, visit counters, and the follow engine's
// traversal state (spec §6).
type Session struct {
	ID uuid.UUID

	story *node.Story
	ns    *addr.Namespace
	vars  *store.Store

	engine *follow.Engine
	state  *follow.State

	log *zerolog.Logger
}

// Option configures a Session at load time.
type Option func(*Session)

// WithLogger attaches a structured logger; by default a Session is silent.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.log = &l
		s.engine.Log = &l
	}
}

// Prompt is what a host renders after every operation: the prose emitted
// since the last prompt, and either a non-empty Choices list to present or
// Done signaling the story has ended (spec §4.7 "Termination modes", §6).
type Prompt struct {
	Done    bool
	Lines   []follow.LineEntry
	Choices []follow.ChoiceInfo
}

// LoadStory parses, validates and prepares a story for its first Resume
// call. A non-nil *LoadError means the story is not safe to follow.
func LoadStory(source string, opts ...Option) (*Session, error) {
	story, vars, err := parse.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("inkrunner: parse: %w", err)
	}

	ns, verrs := validate.Validate(story, vars)
	if len(verrs) > 0 {
		return nil, &LoadError{Errors: verrs}
	}

	rootKnot, ok := story.Knot(story.RootKnot)
	if !ok {
		return nil, fmt.Errorf("inkrunner: story declares no root knot")
	}
	entry := addr.Location{Knot: rootKnot.Name, Stitch: rootKnot.DefaultStitch}

	visits := node.NewVisitCounters()
	ev := eval.New(vars, visits)
	proc := process.New(ev)
	engine := follow.New(story, visits, proc, ev)

	sess := &Session{
		ID:     uuid.New(),
		story:  story,
		ns:     ns,
		vars:   vars,
		engine: engine,
		state:  follow.NewState(entry),
	}
	for _, opt := range opts {
		opt(sess)
	}
	return sess, nil
}

// Resume continues the story from wherever it last stopped. It is an
// error to call Resume while a choice is pending; call MakeChoice instead
// (spec §4.8).
func (s *Session) Resume() (*Prompt, error) {
	if s.state.HasPendingChoice() {
		return nil, ErrResumeWithoutChoice
	}
	buf := &follow.LineBuffer{}
	outcome, err := s.engine.Resume(s.state, buf)
	if err != nil {
		s.logWarn("resume failed", err)
		return nil, err
	}
	return s.prompt(outcome, buf), nil
}

// MakeChoice selects one of the choices from the most recent Prompt and
// continues the story (spec §4.7, §4.8). It is an error to call this when
// no choice is pending.
func (s *Session) MakeChoice(selection int) (*Prompt, error) {
	buf := &follow.LineBuffer{}
	outcome, err := s.engine.MakeChoice(s.state, selection, buf)
	if err != nil {
		s.logWarn("make_choice failed", err)
		return nil, err
	}
	return s.prompt(outcome, buf), nil
}

// MoveTo jumps directly to a named knot or stitch, clearing any in-progress
// traversal stack and pending choice, then resumes from there (spec §4.8's
// move_to operation).
func (s *Session) MoveTo(target string) (*Prompt, error) {
	a, rerr := s.ns.ResolveAsLocation(target, "")
	if rerr != nil {
		return nil, &InvalidTargetError{Name: target, Cause: rerr}
	}
	loc, _ := a.AsLocation()
	s.state = follow.NewState(loc)
	return s.Resume()
}

// GetVariable returns a story variable's current value (spec §4.8's
// get_variable).
func (s *Session) GetVariable(name string) (content.Variable, error) {
	return s.vars.Get(name)
}

// SetVariable assigns a story variable's value, subject to the store's
// int/float-compatible kind rule (spec §4.8's set_variable).
func (s *Session) SetVariable(name string, v content.Variable) error {
	return s.vars.Set(name, v)
}

// NumVisits reports how many times the named stitch's root node has been
// visited (spec §4.8's num_visits).
func (s *Session) NumVisits(knot, stitch string) int {
	return s.engine.VisitCount(addr.Location{Knot: knot, Stitch: stitch})
}

func (s *Session) prompt(outcome follow.Outcome, buf *follow.LineBuffer) *Prompt {
	return &Prompt{Done: outcome.Done, Lines: buf.Entries, Choices: outcome.Choices}
}

func (s *Session) logWarn(msg string, err error) {
	if s.log == nil {
		return
	}
	s.log.Warn().Err(err).Str("session", s.ID.String()).Msg(msg)
}
