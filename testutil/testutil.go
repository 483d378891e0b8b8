package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// UniformRangeVector generates a random vector with values in range [-1, 1).
func (r *RNG) UniformRangeVector(dimensions int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vec := make([]float64, dimensions)
	for j := range vec {
		vec[j] = r.rand.Float64()*2 - 1
	}
	return vec
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unitVectorLocked(dimensions)
}

func (r *RNG) unitVectorLocked(dimensions int) []float64 {
	vec := make([]float64, dimensions)
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = v
		norm += v * v
	}

	if norm == 0 {
		norm = 1
	}

	inv := 1 / math.Sqrt(norm)
	for j := range vec {
		vec[j] *= inv
	}
	return vec
}

// Snapshot generates one unit vector per id, like an embeddings export.
func (r *RNG) Snapshot(ids []string, dimensions int) map[string][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(map[string][]float64, len(ids))
	for _, id := range ids {
		snap[id] = r.unitVectorLocked(dimensions)
	}
	return snap
}

// Drift returns a copy of snap with Gaussian noise of the given standard
// deviation added to every component. Small noise keeps cosine similarity
// close to 1; large noise pushes it toward 0.
func (r *RNG) Drift(snap map[string][]float64, noise float64) map[string][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]float64, len(snap))
	for id, vec := range snap {
		cp := make([]float64, len(vec))
		for j, v := range vec {
			cp[j] = v + r.rand.NormFloat64()*noise
		}
		out[id] = cp
	}
	return out
}
