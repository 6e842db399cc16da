package service

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomSource draws the variates the scenario sampler needs. Implementations are
// used by one goroutine at a time.
type RandomSource interface {
	Normal(mean, stddev float64) float64
	Beta(alpha, beta float64) float64
}

// SourceFactory creates the source for one stream of a seeded run. Equal
// (seed, stream) pairs must yield identical sequences.
type SourceFactory func(seed, stream uint64) RandomSource

type pcgSource struct {
	src rand.Source
}

// NewPCGSource returns a RandomSource backed by a PCG generator.
func NewPCGSource(seed, stream uint64) RandomSource {
	return &pcgSource{src: rand.NewPCG(seed, stream)}
}

func (p *pcgSource) Normal(mean, stddev float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: math.Abs(stddev), Src: p.src}.Rand()
}

func (p *pcgSource) Beta(alpha, beta float64) float64 {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: p.src}.Rand()
}

// MaxRandomSeed bounds generated seeds so they survive a round trip through
// JSON clients that decode numbers as IEEE doubles.
const MaxRandomSeed = 1 << 53

// RandomSeed returns a fresh seed in [0, MaxRandomSeed) for unseeded runs.
func RandomSeed() uint64 {
	return rand.Uint64N(MaxRandomSeed)
}
