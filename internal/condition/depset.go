package condition

import "github.com/reflexrun/reflex/internal/arena"

// DependencySet is the set of conditions consulted while producing a
// result (spec §3.4, §4.D). Union/Difference/Len are the only operations
// the evaluator needs; both are implemented over a Go map keyed by
// structural hash rather than the original's persistent Tree, since Go's
// evaluator never needs structural sharing between two DependencySet
// values the way the arena-resident term graph does — ToSignalList/
// FromSignalList below provide the Tree-backed heap representation for
// the cases (cross-heap transfer, Signal term construction) that do.
type DependencySet struct {
	items map[uint64]Condition
}

// NewDependencySet returns an empty set.
func NewDependencySet() *DependencySet {
	return &DependencySet{items: make(map[uint64]Condition)}
}

// Add inserts c, a no-op if already present.
func (d *DependencySet) Add(c Condition) {
	d.items[c.Hash()] = c
}

// Union returns a new set containing every condition in d or other.
func (d *DependencySet) Union(other *DependencySet) *DependencySet {
	out := NewDependencySet()
	for k, v := range d.items {
		out.items[k] = v
	}
	if other != nil {
		for k, v := range other.items {
			out.items[k] = v
		}
	}
	return out
}

// Difference returns a new set containing every condition in d not in other.
func (d *DependencySet) Difference(other *DependencySet) *DependencySet {
	out := NewDependencySet()
	for k, v := range d.items {
		if other == nil {
			out.items[k] = v
			continue
		}
		if _, excluded := other.items[k]; !excluded {
			out.items[k] = v
		}
	}
	return out
}

// Len reports the number of distinct conditions.
func (d *DependencySet) Len() int {
	return len(d.items)
}

// Contains reports whether c (by hash) is a member.
func (d *DependencySet) Contains(c Condition) bool {
	_, ok := d.items[c.Hash()]
	return ok
}

// Conditions returns the members in unspecified order.
func (d *DependencySet) Conditions() []Condition {
	out := make([]Condition, 0, len(d.items))
	for _, v := range d.items {
		out = append(out, v)
	}
	return out
}

// Pointers returns the member conditions' heap pointers, for constructing a
// Signal term.
func (d *DependencySet) Pointers() []arena.Pointer {
	out := make([]arena.Pointer, 0, len(d.items))
	for _, v := range d.items {
		out = append(out, v.Ptr)
	}
	return out
}
