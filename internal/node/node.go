// Package node implements the story's node graph: knot/stitch root nodes,
// branch sub-nodes and the visit-counter table (component C of the spec).
package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/google/uuid"

	"github.com/windlore/inkrunner/internal/addr"
	"github.com/windlore/inkrunner/internal/content"
)

// ItemKind tags which variant a NodeItem holds (spec §3).
type ItemKind int

const (
	ItemLine ItemKind = iota
	ItemBranchingChoice
)

// NodeItem is one entry in a node's item list: a Line or a non-empty,
// ordered BranchingChoice (spec §3).
type NodeItem struct {
	Kind     ItemKind
	Line     *content.InternalLine
	Branches []*Branch
}

// RootNode is the ordered sequence of items owned by a single stitch (spec
// §3). It carries no visit counter of its own; see VisitCounters.
type RootNode struct {
	Items []NodeItem
}

// Branch is a node introduced by one InternalChoice inside a
// BranchingChoice (spec §3). Like RootNode it is a tree of NodeItems; it
// carries no visit counter of its own.
type Branch struct {
	Choice *content.InternalChoice
	Items  []NodeItem
}

// Stitch owns a single root node (spec §3).
type Stitch struct {
	Name string
	Root *RootNode
}

// Knot is a mapping from stitch name to stitch, with one designated
// default (spec §3). Stitches uses a linked hash map so the validator's
// error accumulation walks stitches in declaration order, matching spec
// §4.4's order-stable aggregation.
type Knot struct {
	Name          string
	DefaultStitch string
	Stitches      *linkedhashmap.Map // string -> *Stitch
}

// NewKnot builds an empty Knot.
func NewKnot(name string) *Knot {
	return &Knot{Name: name, Stitches: linkedhashmap.New()}
}

// Stitch looks up a stitch by name.
func (k *Knot) Stitch(name string) (*Stitch, bool) {
	v, found := k.Stitches.Get(name)
	if !found {
		return nil, false
	}
	return v.(*Stitch), true
}

// AddStitch installs a stitch, marking it as the default if it is the
// first one declared.
func (k *Knot) AddStitch(s *Stitch) {
	if k.Stitches.Size() == 0 {
		k.DefaultStitch = s.Name
	}
	k.Stitches.Put(s.Name, s)
}

// Story is the whole parsed/validated story: every knot, plus the name of
// the first-declared (root) knot (spec §3). It carries no variable store
// of its own — see internal/store — keeping the immutable graph and the
// mutable store separate per spec §3's lifecycle rule.
type Story struct {
	ID       uuid.UUID
	RootKnot string
	Knots    *linkedhashmap.Map // string -> *Knot
}

// NewStory builds an empty Story ready for the parser to populate.
func NewStory() *Story {
	return &Story{ID: uuid.New(), Knots: linkedhashmap.New()}
}

// Knot looks up a knot by name.
func (s *Story) Knot(name string) (*Knot, bool) {
	v, found := s.Knots.Get(name)
	if !found {
		return nil, false
	}
	return v.(*Knot), true
}

// AddKnot installs a knot, marking it as the root knot if it is the first
// one declared (spec §3: "The first knot declared in source is the
// designated root knot").
func (s *Story) AddKnot(k *Knot) {
	if s.Knots.Size() == 0 {
		s.RootKnot = k.Name
	}
	s.Knots.Put(k.Name, k)
}

// StitchAt resolves a validated location to its owning Stitch.
func (s *Story) StitchAt(loc addr.Location) (*Stitch, error) {
	knot, ok := s.Knot(loc.Knot)
	if !ok {
		return nil, fmt.Errorf("no such knot: %s", loc.Knot)
	}
	stitch, ok := knot.Stitch(loc.Stitch)
	if !ok {
		return nil, fmt.Errorf("no such stitch: %s", loc.String())
	}
	return stitch, nil
}

// KnotNames returns every knot name in declaration order.
func (s *Story) KnotNames() []string {
	names := make([]string, 0, s.Knots.Size())
	it := s.Knots.Iterator()
	for it.Next() {
		names = append(names, it.Key().(string))
	}
	return names
}

// NodeID identifies a single RootNode or Branch for the purposes of the
// visit-counter table (spec §9: keep counters in a parallel table keyed by
// node identity rather than mutating otherwise-immutable graph nodes).
// Path is the sequence of (item index, branch index) pairs descended
// through to reach a Branch, empty for a stitch's RootNode.
type NodeID struct {
	Loc  addr.Location
	Path []int
}

func (id NodeID) key() string {
	var b strings.Builder
	b.WriteString(id.Loc.Knot)
	b.WriteByte('.')
	b.WriteString(id.Loc.Stitch)
	for _, p := range id.Path {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// Child returns the NodeID of the branch reached by taking branch index
// branchIdx out of the BranchingChoice at item index bcIdx in this node.
// Path mirrors the public traversal Stack one-for-one (spec §3): each
// level contributes the (item index, branch index) pair that selected it.
func (id NodeID) Child(bcIdx, branchIdx int) NodeID {
	path := make([]int, len(id.Path)+2)
	copy(path, id.Path)
	path[len(path)-2] = bcIdx
	path[len(path)-1] = branchIdx
	return NodeID{Loc: id.Loc, Path: path}
}

// VisitCounters is the parallel table of per-node visit counts (spec §3,
// §9). Zero value is ready to use; every node starts at 0 visits.
type VisitCounters struct {
	counts map[string]int
}

// NewVisitCounters builds an empty counter table.
func NewVisitCounters() *VisitCounters {
	return &VisitCounters{counts: make(map[string]int)}
}

// Increment bumps a node's visit count by one and returns the new value.
func (c *VisitCounters) Increment(id NodeID) int {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	k := id.key()
	c.counts[k]++
	return c.counts[k]
}

// Get returns a node's current visit count (0 if never visited).
func (c *VisitCounters) Get(id NodeID) int {
	return c.counts[id.key()]
}
