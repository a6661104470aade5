package privacy

import (
	"math"
	"math/rand"

	"github.com/aixprotocol/aix/pkg/errors"
)

// NoiseEngine applies the Gaussian mechanism to numeric vectors. It holds no
// state beyond its random source, which is injected so tests can fix the
// seed and production can pass a crypto-seeded source.
type NoiseEngine struct {
	rng      *rand.Rand
	clipNorm float64
}

const defaultClipNorm = 1.0

func NewNoiseEngine(rng *rand.Rand, clipNorm float64) *NoiseEngine {
	if clipNorm <= 0 {
		clipNorm = defaultClipNorm
	}

	return &NoiseEngine{
		rng:      rng,
		clipNorm: clipNorm,
	}
}

// Sigma is the Gaussian-mechanism noise scale for (eps, delta) with the
// engine's clipping norm as L2 sensitivity.
func (e *NoiseEngine) Sigma(eps, delta float64) float64 {
	return math.Sqrt(2*math.Log(1.25/delta)) * e.clipNorm / eps
}

// AddNoise clips the vector to the engine's L2 norm bound and perturbs each
// component with N(0, sigma^2) noise. The input is not modified.
func (e *NoiseEngine) AddNoise(vec []float64, eps, delta float64) ([]float64, error) {
	if eps <= 0 || delta <= 0 || delta >= 1 {
		return nil, errors.ErrInvalidData
	}

	out := clip(vec, e.clipNorm)
	sigma := e.Sigma(eps, delta)
	for i := range out {
		out[i] += e.rng.NormFloat64() * sigma
	}

	return out, nil
}

// AddNoiseMap applies AddNoise layer by layer, preserving key order
// independence: each layer is noised on its own.
func (e *NoiseEngine) AddNoiseMap(layers map[string][]float64, eps, delta float64) (map[string][]float64, error) {
	out := make(map[string][]float64, len(layers))
	for name, vec := range layers {
		noised, err := e.AddNoise(vec, eps, delta)
		if err != nil {
			return nil, err
		}
		out[name] = noised
	}

	return out, nil
}

func clip(vec []float64, bound float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)

	var sq float64
	for _, v := range vec {
		sq += v * v
	}
	norm := math.Sqrt(sq)
	if norm <= bound || norm == 0 {
		return out
	}

	scale := bound / norm
	for i := range out {
		out[i] *= scale
	}

	return out
}
