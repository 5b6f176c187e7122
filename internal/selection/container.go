package selection

import (
	"fmt"

	"github.com/banshee-data/nblist/internal/status"
)

// SelectionContainer groups selections, typically one per isolate.
type SelectionContainer struct {
	items []*Selection
}

// NewContainer creates a container owning the given selections.
func NewContainer(items ...*Selection) *SelectionContainer {
	c := &SelectionContainer{items: make([]*Selection, 0, len(items))}
	for _, s := range items {
		if s != nil {
			c.items = append(c.items, s)
		}
	}
	return c
}

// Append adds a selection to the container.
func (c *SelectionContainer) Append(s *Selection) error {
	if s == nil {
		return fmt.Errorf("append nil selection: %w", status.ErrInvalidArgument)
	}
	c.items = append(c.items, s)
	return nil
}

// Len returns the number of selections.
func (c *SelectionContainer) Len() int { return len(c.items) }

// Item returns selection i.
func (c *SelectionContainer) Item(i int) (*Selection, error) {
	if i < 0 || i >= len(c.items) {
		return nil, fmt.Errorf("item %d of %d: %w", i, len(c.items), status.ErrIndexOutOfRange)
	}
	return c.items[i], nil
}

// Items returns the selections. The slice is shared with the container.
func (c *SelectionContainer) Items() []*Selection { return c.items }

// UpperBound returns the largest upper bound of the items.
func (c *SelectionContainer) UpperBound() int {
	bound := 0
	for _, s := range c.items {
		bound = max(bound, s.UpperBound())
	}
	return bound
}

// Flatten returns the union of all items.
func (c *SelectionContainer) Flatten() *Selection {
	if len(c.items) == 0 {
		return &Selection{}
	}
	return OrEmpty(Union(c.items...))
}

// MakeMembership returns, for every index below upperBound, the position of
// the item containing it or -1. An index claimed by two items is an error.
func (c *SelectionContainer) MakeMembership(upperBound int) ([]int, error) {
	if err := status.CheckCapacity(upperBound); err != nil {
		return nil, fmt.Errorf("membership bound %d: %w", upperBound, err)
	}
	owner := make([]int, upperBound)
	for i := range owner {
		owner[i] = -1
	}
	for k, s := range c.items {
		for _, i := range s.indices {
			if i >= upperBound {
				return nil, fmt.Errorf("index %d in item %d not below %d: %w", i, k, upperBound, status.ErrIndexOutOfRange)
			}
			if owner[i] >= 0 {
				return nil, fmt.Errorf("index %d in items %d and %d: %w", i, owner[i], k, status.ErrInvalidArgument)
			}
			owner[i] = k
		}
	}
	return owner, nil
}
