package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Design kinds accepted by -design.
const (
	designUniform = "uniform"
	designRandom  = "random"
	designRing    = "ring"
)

// designer produces the density map for one iteration.
type designer func(iter int) *mat.Dense

func newDesigner(kind string, nx, ny int, value float64, seed uint64) (designer, error) {
	switch kind {
	case designUniform:
		if value < 0 || value > 1 || math.IsNaN(value) {
			return nil, fmt.Errorf("-value %v outside [0,1]", value)
		}
		return func(int) *mat.Dense { return uniformDesign(nx, ny, value) }, nil
	case designRandom:
		u := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
		return func(int) *mat.Dense {
			m := mat.NewDense(nx, ny, nil)
			for i := range nx {
				for j := range ny {
					m.Set(i, j, u.Rand())
				}
			}
			return m
		}, nil
	case designRing:
		// The ring widens by one sample per iteration until it fills the map.
		return func(iter int) *mat.Dense {
			outer := float64(min(nx, ny)) / 2
			inner := math.Max(0, outer/2-float64(iter))
			return ringDesign(nx, ny, inner, outer)
		}, nil
	default:
		return nil, fmt.Errorf("unknown design %q (want %s, %s or %s)", kind, designUniform, designRandom, designRing)
	}
}

func uniformDesign(nx, ny int, v float64) *mat.Dense {
	m := mat.NewDense(nx, ny, nil)
	for i := range nx {
		for j := range ny {
			m.Set(i, j, v)
		}
	}
	return m
}

// ringDesign is solid on the annulus inner <= d <= outer around the map
// centre, in sample units.
func ringDesign(nx, ny int, inner, outer float64) *mat.Dense {
	m := mat.NewDense(nx, ny, nil)
	cx, cy := float64(nx-1)/2, float64(ny-1)/2
	for i := range nx {
		for j := range ny {
			d := math.Hypot(float64(i)-cx, float64(j)-cy)
			if d >= inner && d <= outer {
				m.Set(i, j, 1)
			}
		}
	}
	return m
}
