// Package randsel provides the seeded random stream and weighted selection
// used by every generation operation.
package randsel

import (
	"math/rand"
	"time"
)

// Stream is a stream-local PRNG. Draws never touch the global source, so a
// stream re-created from the same seed yields the same sequence.
type Stream struct {
	seed  int64
	src   *rand.Rand
	draws int64
}

// NewStream creates a stream from seed.
func NewStream(seed int64) *Stream {
	return &Stream{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Draws returns the number of values drawn so far.
func (s *Stream) Draws() int64 {
	return s.draws
}

// Intn returns a uniform integer in [0, n). It panics if n <= 0.
func (s *Stream) Intn(n int) int {
	s.draws++
	return s.src.Intn(n)
}

// Shuffle permutes n elements with swap, Fisher-Yates style.
func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

// Seed selects how an operation seeds its stream: a fixed value supplied by
// the caller, or a fresh one generated at the start of the operation.
type Seed struct {
	value int64
	fixed bool
}

// FixedSeed returns a Seed that always resolves to v.
func FixedSeed(v int64) Seed {
	return Seed{value: v, fixed: true}
}

// FreshSeed resolves to a newly generated seed.
var FreshSeed = Seed{}

// SeedFromFlag maps a command-line style value to a Seed: zero means fresh.
func SeedFromFlag(v int64) Seed {
	if v == 0 {
		return FreshSeed
	}
	return FixedSeed(v)
}

// IsFixed reports whether the seed was supplied by the caller.
func (s Seed) IsFixed() bool {
	return s.fixed
}

// Stream resolves the seed and creates the stream for one operation.
func (s Seed) Stream() *Stream {
	if s.fixed {
		return NewStream(s.value)
	}
	return NewStream(NewSeedValue())
}

// NewSeedValue generates a non-zero seed from the clock.
func NewSeedValue() int64 {
	v := time.Now().UnixNano()
	if v == 0 {
		v = 1
	}
	return v
}
