package selection

import (
	"fmt"

	"github.com/banshee-data/nblist/internal/status"
)

// Set algebra over any number of selections. All results are sorted and
// every operation fails with ErrInvalidArgument when given no sets.

// Union returns the indices present in at least one set.
func Union(sets ...*Selection) (*Selection, error) {
	return combine("union", sets, func(count, n int, inFirst bool) bool { return count > 0 })
}

// Intersection returns the indices present in every set.
func Intersection(sets ...*Selection) (*Selection, error) {
	return combine("intersection", sets, func(count, n int, inFirst bool) bool { return count == n })
}

// Difference returns the indices of the first set absent from all the others.
func Difference(sets ...*Selection) (*Selection, error) {
	return combine("difference", sets, func(count, n int, inFirst bool) bool { return inFirst && count == 1 })
}

// SymmetricDifference returns the indices present in an odd number of sets.
// For two sets this is the usual exclusive-or.
func SymmetricDifference(sets ...*Selection) (*Selection, error) {
	return combine("symmetric difference", sets, func(count, n int, inFirst bool) bool { return count%2 == 1 })
}

func combine(op string, sets []*Selection, keep func(count, n int, inFirst bool) bool) (*Selection, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%s of zero sets: %w", op, status.ErrInvalidArgument)
	}
	bound := 0
	for k, s := range sets {
		if s == nil {
			return nil, fmt.Errorf("%s: set %d is nil: %w", op, k, status.ErrInvalidArgument)
		}
		bound = max(bound, s.UpperBound())
	}
	counts := make([]int, bound)
	for _, s := range sets {
		for _, i := range s.indices {
			counts[i]++
		}
	}
	first, err := sets[0].Flags(bound)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]int, 0)
	for i, c := range counts {
		if keep(c, len(sets), first[i]) {
			out = append(out, i)
		}
	}
	return &Selection{indices: out}, nil
}
