package density

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// kernelRow holds the conic weights along the innermost axis for one outer
// offset (di, dj). w[m] is the weight at innermost offset m-reach.
type kernelRow struct {
	di, dj int
	reach  int
	w      []float64
}

// conicRows returns the conic kernel max(0, R - d), d the physical distance
// of the offset, as rows over the innermost axis (pitch dk). Rows whose
// outer offset already lies on or beyond R are omitted. A zero pitch along
// an outer axis disables it.
func conicRows(radius, di, dj, dk float64) []kernelRow {
	if radius <= 0 {
		return []kernelRow{{w: []float64{1}}}
	}
	reach := func(pitch, r float64) int {
		if pitch <= 0 {
			return 0
		}
		return int(math.Floor(r / pitch))
	}
	ri, rj := reach(di, radius), reach(dj, radius)

	var rows []kernelRow
	for a := -ri; a <= ri; a++ {
		for b := -rj; b <= rj; b++ {
			x, y := float64(a)*di, float64(b)*dj
			lat := math.Sqrt(x*x + y*y)
			if lat >= radius {
				continue
			}
			rk := reach(dk, math.Sqrt(radius*radius-lat*lat))
			w := make([]float64, 2*rk+1)
			for c := -rk; c <= rk; c++ {
				z := float64(c) * dk
				w[c+rk] = math.Max(0, radius-math.Sqrt(lat*lat+z*z))
			}
			rows = append(rows, kernelRow{di: a, dj: b, reach: rk, w: w})
		}
	}
	return rows
}

// Filter2D applies the conic density filter to a lateral field. Weights are
// renormalised by the in-domain kernel mass, so a uniform field is unchanged
// up to the border.
func Filter2D(rho *mat.Dense, radius, dx, dy float64) *mat.Dense {
	nx, ny := rho.Dims()
	// Rows run over x; y is the innermost axis.
	rows := conicRows(radius, dx, 0, dy)
	out := mat.NewDense(nx, ny, nil)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			var sum, mass float64
			for _, r := range rows {
				ii := i + r.di
				if ii < 0 || ii >= nx {
					continue
				}
				src := rho.RawRowView(ii)
				lo, hi := max(-r.reach, -j), min(r.reach, ny-1-j)
				for d := lo; d <= hi; d++ {
					w := r.w[d+r.reach]
					sum += w * src[j+d]
					mass += w
				}
			}
			out.Set(i, j, sum/mass)
		}
	}
	return out
}

// Filter3D applies the conic density filter in three dimensions. Tap ranges
// are clipped to the volume, so cost scales with the in-domain kernel only.
func Filter3D(v *Volume, radius, dx, dy, dz float64) *Volume {
	rows := conicRows(radius, dx, dy, dz)
	out := NewVolume(v.NX, v.NY, v.NZ)
	for i := 0; i < v.NX; i++ {
		for j := 0; j < v.NY; j++ {
			for k := 0; k < v.NZ; k++ {
				var sum, mass float64
				for _, r := range rows {
					ii, jj := i+r.di, j+r.dj
					if ii < 0 || ii >= v.NX || jj < 0 || jj >= v.NY {
						continue
					}
					base := v.Index(ii, jj, k)
					lo, hi := max(-r.reach, -k), min(r.reach, v.NZ-1-k)
					for d := lo; d <= hi; d++ {
						w := r.w[d+r.reach]
						sum += w * v.Data[base+d]
						mass += w
					}
				}
				out.Data[out.Index(i, j, k)] = sum / mass
			}
		}
	}
	return out
}
