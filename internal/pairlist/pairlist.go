// Package pairlist stores interacting particle pairs as per-owner records.
//
// A self list holds unordered pairs within one particle set; after Sort
// every partner is greater than its owner. A cross list holds ordered pairs
// between two sets, owners indexing the first and partners the second.
//
// Lists are not safe for concurrent mutation.
package pairlist

import (
	"fmt"
	"iter"
	"slices"

	"github.com/banshee-data/nblist/internal/status"
)

// PairRecord is one owner and its partners.
type PairRecord struct {
	Index   int
	Indices []int
}

// PairList is a set of pair records.
type PairList struct {
	IsSelf bool

	records       []PairRecord
	numberOfPairs int // -1 when stale
	isSorted      bool
}

// New returns an empty list with room for capacity records.
func New(isSelf bool, capacity int) (*PairList, error) {
	if err := status.CheckCapacity(capacity); err != nil {
		return nil, fmt.Errorf("pair list capacity %d: %w", capacity, err)
	}
	return &PairList{IsSelf: isSelf, records: make([]PairRecord, 0, capacity), isSorted: true}, nil
}

// Empty returns an empty list.
func Empty(isSelf bool) *PairList {
	return &PairList{IsSelf: isSelf, isSorted: true}
}

// OrEmpty returns p, or an empty list of the given kind when err is set.
func OrEmpty(p *PairList, err error, isSelf bool) *PairList {
	return status.OrElse(p, err, Empty(isSelf))
}

// FromIndexPairs builds a sorted list from explicit pairs.
func FromIndexPairs(isSelf bool, pairs [][2]int) (*PairList, error) {
	p, err := New(isSelf, 0)
	if err != nil {
		return nil, err
	}
	for _, ij := range pairs {
		if err := p.Append(ij[0], []int{ij[1]}); err != nil {
			return nil, err
		}
	}
	p.Sort()
	return p, nil
}

// Append adds a record for index. The partners are copied; an empty
// partner list adds nothing.
func (p *PairList) Append(index int, partners []int) error {
	if index < 0 {
		return fmt.Errorf("record owner %d: %w", index, status.ErrInvalidArgument)
	}
	for _, j := range partners {
		if j < 0 {
			return fmt.Errorf("partner %d of %d: %w", j, index, status.ErrInvalidArgument)
		}
	}
	if len(partners) == 0 {
		return nil
	}
	p.records = append(p.records, PairRecord{Index: index, Indices: slices.Clone(partners)})
	p.numberOfPairs = -1
	p.isSorted = false
	return nil
}

// Reallocate changes the record capacity. It fails without touching the
// stored records when capacity is too small or too large.
func (p *PairList) Reallocate(capacity int) error {
	if capacity < len(p.records) {
		return fmt.Errorf("capacity %d below %d records: %w", capacity, len(p.records), status.ErrInvalidArgument)
	}
	if err := status.CheckCapacity(capacity); err != nil {
		return fmt.Errorf("pair list capacity %d: %w", capacity, err)
	}
	grown := make([]PairRecord, len(p.records), capacity)
	copy(grown, p.records)
	p.records = grown
	return nil
}

// Capacity returns the record capacity.
func (p *PairList) Capacity() int { return cap(p.records) }

// Sort puts the list in canonical form: records ordered by owner, one
// record per owner, partners ascending and unique. In a self list pairs
// are normalised so the owner is the smaller index and i–i pairs are
// dropped.
func (p *PairList) Sort() {
	if p.isSorted {
		return
	}
	pairs := make([][2]int, 0, p.NumberOfPairs())
	for _, r := range p.records {
		for _, j := range r.Indices {
			i := r.Index
			if p.IsSelf {
				if i == j {
					continue
				}
				if j < i {
					i, j = j, i
				}
			}
			pairs = append(pairs, [2]int{i, j})
		}
	}
	slices.SortFunc(pairs, comparePairs)
	pairs = slices.Compact(pairs)

	records := p.records[:0]
	for k := 0; k < len(pairs); {
		i := pairs[k][0]
		e := k
		for e < len(pairs) && pairs[e][0] == i {
			e++
		}
		partners := make([]int, e-k)
		for m := k; m < e; m++ {
			partners[m-k] = pairs[m][1]
		}
		records = append(records, PairRecord{Index: i, Indices: partners})
		k = e
	}
	clear(p.records[len(records):])
	p.records = records
	p.numberOfPairs = len(pairs)
	p.isSorted = true
}

func comparePairs(a, b [2]int) int {
	if a[0] != b[0] {
		return a[0] - b[0]
	}
	return a[1] - b[1]
}

// IsSorted reports whether the list is in canonical form.
func (p *PairList) IsSorted() bool { return p.isSorted }

// UpperBound returns one more than the largest owner index. For self lists
// partners count as well. The list is sorted first.
func (p *PairList) UpperBound() int {
	p.Sort()
	bound := 0
	for _, r := range p.records {
		bound = max(bound, r.Index+1)
		if p.IsSelf {
			bound = max(bound, r.Indices[len(r.Indices)-1]+1)
		}
	}
	return bound
}

// UpperBound2 returns one more than the largest partner index. For a self
// list it equals UpperBound.
func (p *PairList) UpperBound2() int {
	if p.IsSelf {
		return p.UpperBound()
	}
	p.Sort()
	bound := 0
	for _, r := range p.records {
		bound = max(bound, r.Indices[len(r.Indices)-1]+1)
	}
	return bound
}

// MaximumRecordSize returns the largest partner count of any record.
func (p *PairList) MaximumRecordSize() int {
	n := 0
	for _, r := range p.records {
		n = max(n, len(r.Indices))
	}
	return n
}

// NumberOfPairs returns the total partner count.
func (p *PairList) NumberOfPairs() int {
	if p.numberOfPairs < 0 {
		n := 0
		for _, r := range p.records {
			n += len(r.Indices)
		}
		p.numberOfPairs = n
	}
	return p.numberOfPairs
}

// NumberOfRecords returns the number of records.
func (p *PairList) NumberOfRecords() int { return len(p.records) }

// Record returns record i. Its partner slice is shared with the list.
func (p *PairList) Record(i int) (PairRecord, error) {
	if i < 0 || i >= len(p.records) {
		return PairRecord{}, fmt.Errorf("record %d of %d: %w", i, len(p.records), status.ErrIndexOutOfRange)
	}
	return p.records[i], nil
}

// Records returns the records. The slice is shared with the list.
func (p *PairList) Records() []PairRecord { return p.records }

// All yields every stored pair as (owner, partner).
func (p *PairList) All() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for _, r := range p.records {
			for _, j := range r.Indices {
				if !yield(r.Index, j) {
					return
				}
			}
		}
	}
}

// Clone returns a deep copy.
func (p *PairList) Clone() *PairList {
	out := &PairList{
		IsSelf:        p.IsSelf,
		records:       make([]PairRecord, len(p.records)),
		numberOfPairs: p.numberOfPairs,
		isSorted:      p.isSorted,
	}
	for k, r := range p.records {
		out.records[k] = PairRecord{Index: r.Index, Indices: slices.Clone(r.Indices)}
	}
	return out
}

// Contains reports whether the pair (i, j) is stored. In a self list the
// order of i and j does not matter.
func (p *PairList) Contains(i, j int) bool {
	if p.IsSelf && j < i {
		i, j = j, i
	}
	if p.isSorted {
		k, ok := slices.BinarySearchFunc(p.records, i, func(r PairRecord, i int) int { return r.Index - i })
		if !ok {
			return false
		}
		_, ok = slices.BinarySearch(p.records[k].Indices, j)
		return ok
	}
	for a, b := range p.All() {
		if a == i && b == j || p.IsSelf && a == j && b == i {
			return true
		}
	}
	return false
}

// Pairs returns every stored pair in record order.
func (p *PairList) Pairs() [][2]int {
	out := make([][2]int, 0, p.NumberOfPairs())
	for i, j := range p.All() {
		out = append(out, [2]int{i, j})
	}
	return out
}

func (p *PairList) String() string {
	kind := "cross"
	if p.IsSelf {
		kind = "self"
	}
	return fmt.Sprintf("PairList(%s, %d records, %d pairs)", kind, p.NumberOfRecords(), p.NumberOfPairs())
}
