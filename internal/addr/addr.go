// Package addr implements the two-level knot/stitch namespace and the
// tagged Address value used everywhere else in inkrunner.
package addr

import "fmt"

// Kind tags which variant an Address currently holds.
type Kind int

const (
	// KindRaw is an unresolved symbolic name straight from the parser.
	// No component past the validator may see a KindRaw value.
	KindRaw Kind = iota
	// KindLocation names a knot+stitch pair known to exist.
	KindLocation
	// KindVariable names an entry in the variable store.
	KindVariable
)

// Location is a validated (knot, stitch) pair.
type Location struct {
	Knot    string
	Stitch  string
}

func (l Location) String() string {
	return fmt.Sprintf("%s.%s", l.Knot, l.Stitch)
}

// Address is the tagged value described in spec §3: Raw, Validated(Location)
// or Validated(GlobalVariable).
type Address struct {
	kind     Kind
	raw      string
	location Location
	variable string
}

// Raw builds an unresolved address as emitted by the parser.
func Raw(name string) Address {
	return Address{kind: KindRaw, raw: name}
}

// NewLocation builds a validated location address.
func NewLocation(loc Location) Address {
	return Address{kind: KindLocation, location: loc}
}

// Variable builds a validated global-variable address.
func Variable(name string) Address {
	return Address{kind: KindVariable, variable: name}
}

// IsRaw reports whether this address still needs validation.
func (a Address) IsRaw() bool { return a.kind == KindRaw }

// Kind returns the address's current variant.
func (a Address) Kind() Kind { return a.kind }

// RawName returns the unresolved name; only meaningful when IsRaw().
func (a Address) RawName() string { return a.raw }

// AsLocation returns the location and true if this address is a validated
// location.
func (a Address) AsLocation() (Location, bool) {
	if a.kind != KindLocation {
		return Location{}, false
	}
	return a.location, true
}

// AsVariable returns the variable name and true if this address is a
// validated global-variable reference.
func (a Address) AsVariable() (string, bool) {
	if a.kind != KindVariable {
		return "", false
	}
	return a.variable, true
}

func (a Address) String() string {
	switch a.kind {
	case KindRaw:
		return fmt.Sprintf("Raw(%s)", a.raw)
	case KindLocation:
		return a.location.String()
	case KindVariable:
		return a.variable
	default:
		return "<invalid address>"
	}
}

// FailureKind enumerates the ways resolution can fail (spec §4.1).
type FailureKind int

const (
	UnknownAddress FailureKind = iota
	ValidatedAsVariableUsedAsLocation
	ValidatedAsLocationUsedAsVariable
)

// ResolveError is returned by Namespace.Resolve on failure.
type ResolveError struct {
	Kind FailureKind
	Name string
}

func (e *ResolveError) Error() string {
	switch e.Kind {
	case ValidatedAsVariableUsedAsLocation:
		return fmt.Sprintf("address %q names a variable but is used as a location", e.Name)
	case ValidatedAsLocationUsedAsVariable:
		return fmt.Sprintf("address %q names a location but is used as a variable", e.Name)
	default:
		return fmt.Sprintf("unknown address %q", e.Name)
	}
}

// Namespace is a read-only view of every known knot, stitch and variable
// name, sufficient to resolve Raw addresses per spec §4.1. It holds no
// content model types so that this package never imports internal/node.
type Namespace struct {
	// Stitches maps knot name -> set of stitch names declared in that knot.
	Stitches map[string]map[string]bool
	// Defaults maps knot name -> its default stitch name.
	Defaults map[string]string
	// Variables is the set of known global variable names.
	Variables map[string]bool
}

// NewNamespace builds an empty Namespace ready to be populated by the
// validator before resolution begins.
func NewNamespace() *Namespace {
	return &Namespace{
		Stitches:  make(map[string]map[string]bool),
		Defaults:  make(map[string]string),
		Variables: make(map[string]bool),
	}
}

func (ns *Namespace) hasKnot(name string) bool {
	_, ok := ns.Stitches[name]
	return ok
}

func (ns *Namespace) hasStitch(knot, stitch string) bool {
	stitches, ok := ns.Stitches[knot]
	if !ok {
		return false
	}
	return stitches[stitch]
}

// Resolve turns a raw name into a validated Address per the rules of
// spec §4.1:
//
//	"knot"        -> that knot's default stitch
//	"knot.stitch" -> explicit location
//	"stitch"      -> (currentKnot, stitch) if such a stitch exists there,
//	                 else (stitch, default) if stitch names a knot,
//	                 else a global variable.
func (ns *Namespace) Resolve(raw string, currentKnot string) (Address, *ResolveError) {
	if knot, stitch, ok := splitDotted(raw); ok {
		if !ns.hasStitch(knot, stitch) {
			return Address{}, &ResolveError{Kind: UnknownAddress, Name: raw}
		}
		return NewLocation(Location{Knot: knot, Stitch: stitch}), nil
	}

	if currentKnot != "" && ns.hasStitch(currentKnot, raw) {
		return NewLocation(Location{Knot: currentKnot, Stitch: raw}), nil
	}

	if ns.hasKnot(raw) {
		return NewLocation(Location{Knot: raw, Stitch: ns.Defaults[raw]}), nil
	}

	if ns.Variables[raw] {
		return Variable(raw), nil
	}

	return Address{}, &ResolveError{Kind: UnknownAddress, Name: raw}
}

// ResolveAsVariable resolves a name that the grammar position requires to
// be a variable. Returns ValidatedAsLocationUsedAsVariable if the name
// instead names a knot. Stitch names are not checked: a name that is only
// a stitch (bare or dotted) yields UnknownAddress.
func (ns *Namespace) ResolveAsVariable(raw string) (Address, *ResolveError) {
	if ns.Variables[raw] {
		return Variable(raw), nil
	}
	if ns.hasKnot(raw) {
		return Address{}, &ResolveError{Kind: ValidatedAsLocationUsedAsVariable, Name: raw}
	}
	return Address{}, &ResolveError{Kind: UnknownAddress, Name: raw}
}

// ResolveAsLocation resolves a name that the grammar position requires to
// be a location (e.g. a divert target). Returns
// ValidatedAsVariableUsedAsLocation if the name instead names a variable.
func (ns *Namespace) ResolveAsLocation(raw string, currentKnot string) (Address, *ResolveError) {
	a, err := ns.Resolve(raw, currentKnot)
	if err != nil {
		return Address{}, err
	}
	if _, ok := a.AsVariable(); ok {
		return Address{}, &ResolveError{Kind: ValidatedAsVariableUsedAsLocation, Name: raw}
	}
	return a, nil
}

func splitDotted(raw string) (knot, stitch string, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			return raw[:i], raw[i+1:], true
		}
	}
	return "", "", false
}
