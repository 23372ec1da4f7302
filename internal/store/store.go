// Package store holds the live variable store mutated by explicit
// assignment during a session (spec §3's "Variable store", §4.8's
// set_variable/get_variable).
package store

import (
	"fmt"

	"github.com/windlore/inkrunner/internal/content"
)

// ErrUnknownVariable is returned when a name has no entry in the store.
type ErrUnknownVariable struct{ Name string }

func (e *ErrUnknownVariable) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// ErrKindMismatch is returned when an assignment's kind is incompatible
// with the variable's kind at definition (spec §3: "int<->float allowed;
// other cross-kind assignment is an error at runtime").
type ErrKindMismatch struct {
	Name     string
	Expected content.VarKind
	Got      content.VarKind
}

func (e *ErrKindMismatch) Error() string {
	return fmt.Sprintf("variable %q has kind %d, cannot assign value of kind %d", e.Name, e.Expected, e.Got)
}

// Store is the mapping from name to tagged Variable (spec §3).
type Store struct {
	vars map[string]content.Variable
}

// New builds an empty Store.
func New() *Store {
	return &Store{vars: make(map[string]content.Variable)}
}

// Define installs the initial value of a variable, called only while
// loading a story (before any session operation can observe the store).
func (s *Store) Define(name string, v content.Variable) {
	s.vars[name] = v
}

// Get returns the named variable's current value.
func (s *Store) Get(name string) (content.Variable, error) {
	v, ok := s.vars[name]
	if !ok {
		return content.Variable{}, &ErrUnknownVariable{Name: name}
	}
	return v, nil
}

// Has reports whether name is a known variable.
func (s *Store) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Set assigns a new value to an existing variable, enforcing the
// int/float-compatible, otherwise-exact kind rule.
func (s *Store) Set(name string, v content.Variable) error {
	current, ok := s.vars[name]
	if !ok {
		return &ErrUnknownVariable{Name: name}
	}
	if !current.SameKind(v) {
		return &ErrKindMismatch{Name: name, Expected: current.Kind, Got: v.Kind}
	}
	// Preserve the variable's own kind on int<->float coercion rather than
	// adopting the assigned value's kind.
	if current.Kind == content.KindInt && v.Kind == content.KindFloat {
		v = content.Int(int64(v.Float))
	} else if current.Kind == content.KindFloat && v.Kind == content.KindInt {
		v = content.Float(float64(v.Int))
	}
	s.vars[name] = v
	return nil
}

// Names returns every defined variable name, used by the validator to
// populate the namespace.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	return names
}
