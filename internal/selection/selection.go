// Package selection implements ordered, duplicate-free sets of particle
// indices and containers of such sets (one per molecule or isolate).
//
// A Selection keeps its indices in the order it was given them. Two derived
// views are built lazily against an explicit upper bound: a dense membership
// mask and an inverse index → position map. Both are cached until the
// indices change or ClearRepresentations is called.
package selection

import (
	"fmt"
	"iter"
	"slices"

	"github.com/banshee-data/nblist/internal/status"
)

// Selection is an ordered set of unique non-negative indices.
type Selection struct {
	indices []int

	// Derived views; nil until first requested.
	flags          []bool
	flagsBound     int
	positions      []int
	positionsBound int
}

// FromIndices creates a selection from explicit indices. Duplicates are
// dropped (first occurrence wins); order is otherwise preserved.
func FromIndices(indices []int) (*Selection, error) {
	if err := status.CheckCapacity(len(indices)); err != nil {
		return nil, fmt.Errorf("selection of %d indices: %w", len(indices), err)
	}
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 {
			return nil, fmt.Errorf("negative index %d: %w", i, status.ErrInvalidArgument)
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return &Selection{indices: out}, nil
}

// MustFromIndices is FromIndices for literal inputs known to be valid.
func MustFromIndices(indices ...int) *Selection {
	s, err := FromIndices(indices)
	if err != nil {
		panic(err)
	}
	return s
}

// FromFlags creates a selection of the positions of the true entries in flags,
// in ascending order.
func FromFlags(flags []bool) *Selection {
	out := make([]int, 0, len(flags))
	for i, f := range flags {
		if f {
			out = append(out, i)
		}
	}
	return &Selection{indices: out}
}

// Range creates the selection {lower, ..., upper-1}.
func Range(lower, upper int) (*Selection, error) {
	if lower < 0 || upper < lower {
		return nil, fmt.Errorf("range [%d, %d): %w", lower, upper, status.ErrInvalidArgument)
	}
	out := make([]int, upper-lower)
	for i := range out {
		out[i] = lower + i
	}
	return &Selection{indices: out}, nil
}

// OrEmpty collapses a failed construction into an empty selection.
func OrEmpty(s *Selection, err error) *Selection {
	if err != nil || s == nil {
		return &Selection{}
	}
	return s
}

// Len returns the number of indices.
func (s *Selection) Len() int { return len(s.indices) }

// Item returns the index at position i.
func (s *Selection) Item(i int) (int, error) {
	if i < 0 || i >= len(s.indices) {
		return -1, fmt.Errorf("item %d of %d: %w", i, len(s.indices), status.ErrIndexOutOfRange)
	}
	return s.indices[i], nil
}

// SetItem replaces the index at position i and drops the cached views.
// The caller is responsible for keeping the indices unique.
func (s *Selection) SetItem(i, value int) error {
	if i < 0 || i >= len(s.indices) {
		return fmt.Errorf("item %d of %d: %w", i, len(s.indices), status.ErrIndexOutOfRange)
	}
	if value < 0 {
		return fmt.Errorf("negative index %d: %w", value, status.ErrInvalidArgument)
	}
	s.indices[i] = value
	s.ClearRepresentations()
	return nil
}

// Indices returns a copy of the indices in selection order.
func (s *Selection) Indices() []int { return slices.Clone(s.indices) }

// All iterates over (position, index) without copying the indices.
func (s *Selection) All() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for p, i := range s.indices {
			if !yield(p, i) {
				return
			}
		}
	}
}

// Clone returns a deep copy without the cached views.
func (s *Selection) Clone() *Selection {
	return &Selection{indices: slices.Clone(s.indices)}
}

// Sort orders the indices ascending.
func (s *Selection) Sort() {
	if !slices.IsSorted(s.indices) {
		slices.Sort(s.indices)
		s.ClearRepresentations()
	}
}

// IsSorted reports whether the indices are in ascending order.
func (s *Selection) IsSorted() bool { return slices.IsSorted(s.indices) }

// UpperBound returns the largest index plus one, or zero when empty.
func (s *Selection) UpperBound() int {
	if len(s.indices) == 0 {
		return 0
	}
	return slices.Max(s.indices) + 1
}

// Increment adds offset to every index.
func (s *Selection) Increment(offset int) error {
	for _, i := range s.indices {
		if i+offset < 0 {
			return fmt.Errorf("index %d + %d: %w", i, offset, status.ErrInvalidArgument)
		}
	}
	for k := range s.indices {
		s.indices[k] += offset
	}
	s.ClearRepresentations()
	return nil
}

// ClearRepresentations drops the cached mask and position views.
func (s *Selection) ClearRepresentations() {
	s.flags, s.flagsBound = nil, 0
	s.positions, s.positionsBound = nil, 0
}

// Flags returns the membership mask of length upperBound. The mask is cached
// and must not be modified by the caller.
func (s *Selection) Flags(upperBound int) ([]bool, error) {
	if s.flags != nil && s.flagsBound == upperBound {
		return s.flags, nil
	}
	if err := s.checkBound(upperBound); err != nil {
		return nil, err
	}
	flags := make([]bool, upperBound)
	for _, i := range s.indices {
		flags[i] = true
	}
	s.flags, s.flagsBound = flags, upperBound
	return flags, nil
}

// Positions returns the inverse map of length upperBound: Positions[i] is the
// position of index i in the selection or -1. The slice is cached and must not
// be modified by the caller.
func (s *Selection) Positions(upperBound int) ([]int, error) {
	if s.positions != nil && s.positionsBound == upperBound {
		return s.positions, nil
	}
	if err := s.checkBound(upperBound); err != nil {
		return nil, err
	}
	positions := make([]int, upperBound)
	for k := range positions {
		positions[k] = -1
	}
	for p, i := range s.indices {
		positions[i] = p
	}
	s.positions, s.positionsBound = positions, upperBound
	return positions, nil
}

func (s *Selection) checkBound(upperBound int) error {
	if err := status.CheckCapacity(upperBound); err != nil {
		return fmt.Errorf("upper bound %d: %w", upperBound, err)
	}
	for _, i := range s.indices {
		if i >= upperBound {
			return fmt.Errorf("index %d not below upper bound %d: %w", i, upperBound, status.ErrIndexOutOfRange)
		}
	}
	return nil
}

// Contains reports whether i is in the selection. The first call builds the
// membership mask against the selection's own upper bound.
func (s *Selection) Contains(i int) bool {
	if i < 0 {
		return false
	}
	flags := s.flags
	if flags == nil {
		flags, _ = s.Flags(s.UpperBound())
	}
	return i < len(flags) && flags[i]
}

// Position returns the position of i in the selection or -1.
func (s *Selection) Position(i int) int {
	if i < 0 {
		return -1
	}
	positions := s.positions
	if positions == nil {
		positions, _ = s.Positions(s.UpperBound())
	}
	if i >= len(positions) {
		return -1
	}
	return positions[i]
}

// Complement returns the sorted indices in [0, upperBound) not in s.
func (s *Selection) Complement(upperBound int) (*Selection, error) {
	flags, err := s.Flags(upperBound)
	if err != nil {
		return nil, fmt.Errorf("complement: %w", err)
	}
	out := make([]int, 0, upperBound-len(s.indices))
	for i, f := range flags {
		if !f {
			out = append(out, i)
		}
	}
	return &Selection{indices: out}, nil
}

// Prune intersects s with other and renumbers the survivors to their
// positions within other. The result follows the order of s.
func (s *Selection) Prune(other *Selection) (*Selection, error) {
	if other == nil {
		return nil, fmt.Errorf("prune against nil selection: %w", status.ErrInvalidArgument)
	}
	bound := max(s.UpperBound(), other.UpperBound())
	positions, err := other.Positions(bound)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	out := make([]int, 0, min(len(s.indices), other.Len()))
	for _, i := range s.indices {
		if p := positions[i]; p >= 0 {
			out = append(out, p)
		}
	}
	return &Selection{indices: out}, nil
}

// Equal reports whether both selections hold the same indices in the same order.
func (s *Selection) Equal(other *Selection) bool {
	return other != nil && slices.Equal(s.indices, other.indices)
}

func (s *Selection) String() string {
	return fmt.Sprintf("Selection%v", s.indices)
}
