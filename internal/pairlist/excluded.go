package pairlist

import (
	"fmt"
	"slices"

	"github.com/banshee-data/nblist/internal/status"
)

// PairConnections is a pair list flattened into two parallel columns.
type PairConnections struct {
	ItemsI []int
	ItemsJ []int
}

// Len returns the number of pairs.
func (c PairConnections) Len() int { return len(c.ItemsI) }

// MakeConnections flattens p in record order. Both columns hold exactly
// NumberOfPairs entries.
func (p *PairList) MakeConnections() PairConnections {
	n := p.NumberOfPairs()
	c := PairConnections{ItemsI: make([]int, 0, n), ItemsJ: make([]int, 0, n)}
	for i, j := range p.All() {
		c.ItemsI = append(c.ItemsI, i)
		c.ItemsJ = append(c.ItemsJ, j)
	}
	return c
}

// PairExcluded is a per-particle exclusion table. A symmetric table stores
// every pair in both orientations; a directed one keeps (i, j) as given,
// with i indexing the first set of a cross search and j the second.
// Activate loads one particle's exclusions into a work array so
// IsActiveExcluded is a single lookup. The work array makes a PairExcluded
// unsafe for concurrent use.
type PairExcluded struct {
	partners [][]int
	work     []bool
	active   int
	directed bool
}

// NewPairExcluded builds a symmetric table from flat runs. Run k describes
// particle k as a count followed by that many partner indices.
func NewPairExcluded(upperBound int, flat []int) (*PairExcluded, error) {
	return parseExcluded(upperBound, flat, false)
}

// NewDirectedPairExcluded is NewPairExcluded for cross searches between two
// sets: run k lists the second-set partners excluded from first-set
// particle k. upperBound must cover both sets.
func NewDirectedPairExcluded(upperBound int, flat []int) (*PairExcluded, error) {
	return parseExcluded(upperBound, flat, true)
}

func parseExcluded(upperBound int, flat []int, directed bool) (*PairExcluded, error) {
	if err := status.CheckCapacity(upperBound); err != nil {
		return nil, fmt.Errorf("exclusion bound %d: %w", upperBound, err)
	}
	pairs := make([][2]int, 0, len(flat))
	for k, owner := 0, 0; k < len(flat); owner++ {
		count := flat[k]
		k++
		if count < 0 || k+count > len(flat) {
			return nil, fmt.Errorf("exclusion run for %d has count %d: %w", owner, count, status.ErrInvalidArgument)
		}
		for _, j := range flat[k : k+count] {
			pairs = append(pairs, [2]int{owner, j})
		}
		k += count
	}
	return newPairExcluded(upperBound, pairs, directed)
}

// MakeExcluded builds the table from the pairs of p. A self list gives a
// symmetric table and a cross list a directed one.
func MakeExcluded(p *PairList, upperBound int) (*PairExcluded, error) {
	if err := status.CheckCapacity(upperBound); err != nil {
		return nil, fmt.Errorf("exclusion bound %d: %w", upperBound, err)
	}
	return newPairExcluded(upperBound, p.Pairs(), !p.IsSelf)
}

func newPairExcluded(upperBound int, pairs [][2]int, directed bool) (*PairExcluded, error) {
	e := &PairExcluded{
		partners: make([][]int, upperBound),
		work:     make([]bool, upperBound),
		active:   -1,
		directed: directed,
	}
	for _, ij := range pairs {
		i, j := ij[0], ij[1]
		if i < 0 || j < 0 || i >= upperBound || j >= upperBound {
			return nil, fmt.Errorf("excluded pair (%d, %d) outside [0, %d): %w", i, j, upperBound, status.ErrIndexOutOfRange)
		}
		e.partners[i] = append(e.partners[i], j)
		if !directed && i != j {
			e.partners[j] = append(e.partners[j], i)
		}
	}
	for i, ps := range e.partners {
		slices.Sort(ps)
		e.partners[i] = slices.Compact(ps)
	}
	return e, nil
}

// UpperBound returns the number of particles covered.
func (e *PairExcluded) UpperBound() int { return len(e.partners) }

// Partners returns the exclusions of i, sorted. The slice is shared.
func (e *PairExcluded) Partners(i int) []int {
	if i < 0 || i >= len(e.partners) {
		return nil
	}
	return e.partners[i]
}

// Directed reports whether pairs are stored in one orientation only.
func (e *PairExcluded) Directed() bool { return e != nil && e.directed }

// IsExcluded reports whether the ordered pair (i, j) is excluded.
func (e *PairExcluded) IsExcluded(i, j int) bool {
	if e == nil {
		return false
	}
	_, ok := slices.BinarySearch(e.Partners(i), j)
	return ok
}

// Excludes reports whether either orientation of {i, j} is excluded. It is
// the test for searches within a single set.
func (e *PairExcluded) Excludes(i, j int) bool {
	return e.IsExcluded(i, j) || e.Directed() && e.IsExcluded(j, i)
}

// Activate loads the exclusions of i into the work array.
func (e *PairExcluded) Activate(i int) {
	if e == nil || i == e.active {
		return
	}
	for _, j := range e.Partners(e.active) {
		e.work[j] = false
	}
	for _, j := range e.Partners(i) {
		e.work[j] = true
	}
	e.active = i
}

// IsActiveExcluded reports whether j is excluded from the active particle.
func (e *PairExcluded) IsActiveExcluded(j int) bool {
	if e == nil || j < 0 || j >= len(e.work) {
		return false
	}
	return e.work[j]
}
