package randsel

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lawnchairsociety/levelforge/internal/fault"
)

// ErrInvalidArgument is returned when a draw is attempted on a set whose
// total weight is zero.
var ErrInvalidArgument = fmt.Errorf("%w: invalid argument", fault.ErrValidation)

// ErrNegativeWeight is returned when a choice is added with a weight below zero.
var ErrNegativeWeight = errors.New("weight must not be negative")

// Choice pairs an item with its relative weight.
type Choice[T any] struct {
	Item   T
	Weight int
}

// WeightedSet is an insertion-ordered collection of choices. The order is
// part of the contract: a fixed seed only reproduces the same picks if the
// set is walked in the same order every time.
type WeightedSet[T any] struct {
	choices []Choice[T]
	total   int
}

// NewWeightedSet builds a set from choices, rejecting negative weights.
func NewWeightedSet[T any](choices ...Choice[T]) (WeightedSet[T], error) {
	var set WeightedSet[T]
	for _, c := range choices {
		if err := set.Add(c.Item, c.Weight); err != nil {
			return WeightedSet[T]{}, err
		}
	}
	return set, nil
}

// Add appends a choice.
func (w *WeightedSet[T]) Add(item T, weight int) error {
	if weight < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeWeight, weight)
	}
	w.choices = append(w.choices, Choice[T]{Item: item, Weight: weight})
	w.total += weight
	return nil
}

// Total returns the sum of all weights.
func (w WeightedSet[T]) Total() int {
	return w.total
}

// Len returns the number of choices, including zero-weight ones.
func (w WeightedSet[T]) Len() int {
	return len(w.choices)
}

// Choices returns a copy of the choices in insertion order.
func (w WeightedSet[T]) Choices() []Choice[T] {
	out := make([]Choice[T], len(w.choices))
	copy(out, w.choices)
	return out
}

// Pick draws one item. Zero-weight items are never returned.
func Pick[T any](set WeightedSet[T], s *Stream) (T, error) {
	var zero T
	if set.total <= 0 {
		return zero, fmt.Errorf("%w: total weight is zero (%d choices)", ErrInvalidArgument, len(set.choices))
	}

	roll := s.Intn(set.total)
	for _, c := range set.choices {
		if roll < c.Weight {
			return c.Item, nil
		}
		roll -= c.Weight
	}

	// Unreachable while total matches the choices.
	return zero, fmt.Errorf("%w: weights changed during draw", ErrInvalidArgument)
}

// Sample picks k distinct indexes out of n without replacement and returns
// them in ascending order. k >= n returns every index.
func Sample(n, k int, s *Stream) []int {
	if k >= n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher-Yates: the first k slots end up holding the sample.
	for i := 0; i < k; i++ {
		j := i + s.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	picked := idx[:k]
	sort.Ints(picked)
	return picked
}
