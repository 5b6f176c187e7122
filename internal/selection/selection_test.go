package selection

import (
	"errors"
	"slices"
	"testing"

	"github.com/banshee-data/nblist/internal/status"
)

func TestFromIndices_DedupesWithoutSorting(t *testing.T) {
	s, err := FromIndices([]int{5, 2, 5, 9, 2})
	if err != nil {
		t.Fatalf("FromIndices: %v", err)
	}
	if got, want := s.Indices(), []int{5, 2, 9}; !slices.Equal(got, want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}
	if s.IsSorted() {
		t.Error("IsSorted() = true, want false")
	}
	s.Sort()
	if got, want := s.Indices(), []int{2, 5, 9}; !slices.Equal(got, want) {
		t.Errorf("after Sort Indices() = %v, want %v", got, want)
	}
}

func TestFromIndices_Negative(t *testing.T) {
	_, err := FromIndices([]int{1, -3})
	if !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFromFlags(t *testing.T) {
	s := FromFlags([]bool{false, true, true, false, true})
	if got, want := s.Indices(), []int{1, 2, 4}; !slices.Equal(got, want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}
}

func TestItem_OutOfRange(t *testing.T) {
	s := MustFromIndices(3, 4)
	if v, err := s.Item(1); err != nil || v != 4 {
		t.Errorf("Item(1) = %d, %v; want 4, nil", v, err)
	}
	if _, err := s.Item(2); !errors.Is(err, status.ErrIndexOutOfRange) {
		t.Errorf("Item(2) err = %v, want ErrIndexOutOfRange", err)
	}
	if err := s.SetItem(-1, 0); !errors.Is(err, status.ErrIndexOutOfRange) {
		t.Errorf("SetItem(-1) err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestFlagsAndPositions(t *testing.T) {
	s := MustFromIndices(4, 1, 7)

	flags, err := s.Flags(8)
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	want := []bool{false, true, false, false, true, false, false, true}
	if !slices.Equal(flags, want) {
		t.Errorf("Flags(8) = %v, want %v", flags, want)
	}

	positions, err := s.Positions(8)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if positions[4] != 0 || positions[1] != 1 || positions[7] != 2 || positions[0] != -1 {
		t.Errorf("Positions(8) = %v", positions)
	}

	if _, err := s.Flags(5); !errors.Is(err, status.ErrIndexOutOfRange) {
		t.Errorf("Flags(5) err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestRepresentationsInvalidatedOnMutation(t *testing.T) {
	s := MustFromIndices(0, 2)
	if !s.Contains(2) || s.Contains(1) {
		t.Fatal("membership before mutation is wrong")
	}
	if err := s.SetItem(1, 1); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if s.Contains(2) {
		t.Error("Contains(2) = true after replacing 2 with 1")
	}
	if !s.Contains(1) {
		t.Error("Contains(1) = false after SetItem")
	}
	if s.Position(1) != 1 {
		t.Errorf("Position(1) = %d, want 1", s.Position(1))
	}
}

func TestComplement(t *testing.T) {
	s := MustFromIndices(1, 3)
	c, err := s.Complement(5)
	if err != nil {
		t.Fatalf("Complement: %v", err)
	}
	if got, want := c.Indices(), []int{0, 2, 4}; !slices.Equal(got, want) {
		t.Errorf("Complement(5) = %v, want %v", got, want)
	}
	if _, err := s.Complement(3); !errors.Is(err, status.ErrIndexOutOfRange) {
		t.Errorf("Complement(3) err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestPrune(t *testing.T) {
	s := MustFromIndices(9, 2, 5, 7)
	other := MustFromIndices(1, 2, 5, 8, 9)
	p, err := s.Prune(other)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	// 9 → 4, 2 → 1, 5 → 2; 7 is dropped.
	if got, want := p.Indices(), []int{4, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("Prune = %v, want %v", got, want)
	}
}

func TestIncrement(t *testing.T) {
	s := MustFromIndices(0, 3)
	if err := s.Increment(2); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if got, want := s.Indices(), []int{2, 5}; !slices.Equal(got, want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}
	if err := s.Increment(-3); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("Increment(-3) err = %v, want ErrInvalidArgument", err)
	}
}

func TestOrEmpty(t *testing.T) {
	s := OrEmpty(FromIndices([]int{-1}))
	if s == nil || s.Len() != 0 {
		t.Errorf("OrEmpty on failure = %v, want empty selection", s)
	}
}
