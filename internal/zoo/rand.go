package zoo

import "math/rand/v2"

// Rand is the randomness used by the simulation. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand draws from the concurrency-safe top-level math/rand/v2 source.
var DefaultRand Rand = globalRand{}

// Pick returns a uniformly chosen element of xs. xs must not be empty.
func Pick[T any](r Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}

// Chance reports true with probability p.
func Chance(r Rand, p float64) bool {
	return r.Float64() < p
}
