package pairlist

import (
	"fmt"

	"github.com/banshee-data/nblist/internal/selection"
	"github.com/banshee-data/nblist/internal/status"
)

// builder collects pairs owner by owner.
type builder struct {
	out      *PairList
	owner    int
	partners []int
}

func newBuilder(isSelf bool) *builder {
	return &builder{out: Empty(isSelf), owner: -1}
}

func (b *builder) add(i, j int) {
	if i != b.owner {
		b.flush()
		b.owner = i
	}
	b.partners = append(b.partners, j)
}

func (b *builder) flush() {
	if b.owner >= 0 && len(b.partners) > 0 {
		_ = b.out.Append(b.owner, b.partners)
	}
	b.partners = b.partners[:0]
}

func (b *builder) finish() *PairList {
	b.flush()
	b.out.Sort()
	return b.out
}

func (p *PairList) requireSelf(op string) error {
	if !p.IsSelf {
		return fmt.Errorf("%s on a cross list: %w", op, status.ErrInvalidArgument)
	}
	return nil
}

// ToSelfPairList filters a self list. A pair survives when both ends are in
// and and at least one end is in or; a nil selection imposes no condition.
// With a non-nil and the result is renumbered to positions in and.
func (p *PairList) ToSelfPairList(and, or *selection.Selection) (*PairList, error) {
	return p.ToSelfPairListExcluded(and, or, nil)
}

// ToSelfPairListExcluded is ToSelfPairList that also drops the pairs in ex,
// tested on the original indices.
func (p *PairList) ToSelfPairListExcluded(and, or *selection.Selection, ex *PairExcluded) (*PairList, error) {
	if err := p.requireSelf("self list derivation"); err != nil {
		return nil, err
	}
	b := newBuilder(true)
	for _, r := range p.records {
		i := r.Index
		if and != nil && !and.Contains(i) {
			continue
		}
		ex.Activate(i)
		for _, j := range r.Indices {
			if and != nil && !and.Contains(j) {
				continue
			}
			if or != nil && !or.Contains(i) && !or.Contains(j) {
				continue
			}
			if ex.IsActiveExcluded(j) || ex.Directed() && ex.IsExcluded(j, i) {
				continue
			}
			if and != nil {
				b.add(and.Position(i), and.Position(j))
			} else {
				b.add(i, j)
			}
		}
	}
	return b.finish(), nil
}

// ToCrossPairList turns a self list into a cross list between and1 and
// and2, renumbered to positions in each. Either orientation of a stored
// pair qualifies. Particles in both selections are paired with themselves
// unless excludeSelf is set. At least one end must be in or when or is not
// nil.
func (p *PairList) ToCrossPairList(and1, and2, or *selection.Selection, excludeSelf bool) (*PairList, error) {
	return p.ToCrossPairListExcluded(and1, and2, or, excludeSelf, nil)
}

// ToCrossPairListExcluded is ToCrossPairList that also drops the pairs in
// ex, tested on the original indices in either orientation.
func (p *PairList) ToCrossPairListExcluded(and1, and2, or *selection.Selection, excludeSelf bool, ex *PairExcluded) (*PairList, error) {
	if err := p.requireSelf("cross list derivation"); err != nil {
		return nil, err
	}
	if and1 == nil || and2 == nil {
		return nil, fmt.Errorf("cross list derivation needs both selections: %w", status.ErrInvalidArgument)
	}
	keep := func(i, j int) bool {
		if !and1.Contains(i) || !and2.Contains(j) {
			return false
		}
		if or != nil && !or.Contains(i) && !or.Contains(j) {
			return false
		}
		return !ex.Excludes(i, j)
	}

	var pairs [][2]int
	for i, j := range p.All() {
		if keep(i, j) {
			pairs = append(pairs, [2]int{and1.Position(i), and2.Position(j)})
		}
		if keep(j, i) {
			pairs = append(pairs, [2]int{and1.Position(j), and2.Position(i)})
		}
	}
	if !excludeSelf {
		for _, i := range and1.All() {
			if keep(i, i) {
				pairs = append(pairs, [2]int{and1.Position(i), and2.Position(i)})
			}
		}
	}
	out, err := FromIndexPairs(false, pairs)
	if err != nil {
		return nil, fmt.Errorf("cross list derivation: %w", err)
	}
	return out, nil
}

// Renumber maps every index through mapping, drops pairs with a negative
// image and restores canonical order.
func (p *PairList) Renumber(mapping []int) error {
	check := func(i int) error {
		if i >= len(mapping) {
			return fmt.Errorf("index %d beyond mapping of %d: %w", i, len(mapping), status.ErrIndexOutOfRange)
		}
		return nil
	}
	for i, j := range p.All() {
		if err := check(i); err != nil {
			return err
		}
		if err := check(j); err != nil {
			return err
		}
	}
	kept := p.records[:0]
	for _, r := range p.records {
		owner := mapping[r.Index]
		if owner < 0 {
			continue
		}
		partners := r.Indices[:0]
		for _, j := range r.Indices {
			if m := mapping[j]; m >= 0 {
				partners = append(partners, m)
			}
		}
		if len(partners) > 0 {
			kept = append(kept, PairRecord{Index: owner, Indices: partners})
		}
	}
	clear(p.records[len(kept):])
	p.records = kept
	p.numberOfPairs = -1
	p.isSorted = false
	p.Sort()
	return nil
}

// ConnectedComponents treats a self list as an undirected graph on
// [0, upperBound) and returns its components, isolated particles included,
// each sorted and ordered by smallest member.
func (p *PairList) ConnectedComponents(upperBound int) (*selection.SelectionContainer, error) {
	if err := p.requireSelf("connected components"); err != nil {
		return nil, err
	}
	if err := status.CheckCapacity(upperBound); err != nil {
		return nil, fmt.Errorf("component bound %d: %w", upperBound, err)
	}
	parent := make([]int, upperBound)
	rank := make([]int, upperBound)
	for i := range parent {
		parent[i] = i
	}
	find := func(u int) int {
		for parent[u] != u {
			parent[u] = parent[parent[u]]
			u = parent[u]
		}
		return u
	}
	union := func(u, v int) {
		ru, rv := find(u), find(v)
		if ru == rv {
			return
		}
		if rank[ru] < rank[rv] {
			ru, rv = rv, ru
		}
		parent[rv] = ru
		if rank[ru] == rank[rv] {
			rank[ru]++
		}
	}

	c := p.MakeConnections()
	for k := range c.ItemsI {
		i, j := c.ItemsI[k], c.ItemsJ[k]
		if i >= upperBound || j >= upperBound {
			return nil, fmt.Errorf("pair (%d, %d) not below %d: %w", i, j, upperBound, status.ErrIndexOutOfRange)
		}
		union(i, j)
	}

	// Scanning in index order makes each component's first member its
	// smallest, so components come out in the required order.
	slot := make(map[int]int)
	var members [][]int
	for i := 0; i < upperBound; i++ {
		root := find(i)
		k, ok := slot[root]
		if !ok {
			k = len(members)
			slot[root] = k
			members = append(members, nil)
		}
		members[k] = append(members[k], i)
	}
	out := selection.NewContainer()
	for _, m := range members {
		s, err := selection.FromIndices(m)
		if err != nil {
			return nil, err
		}
		if err := out.Append(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
