package density

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Volume is a dense scalar field over an nx × ny × nz lattice.
type Volume struct {
	NX, NY, NZ int
	Data       []float64
}

// NewVolume allocates a zeroed volume.
func NewVolume(nx, ny, nz int) *Volume {
	return &Volume{NX: nx, NY: ny, NZ: nz, Data: make([]float64, nx*ny*nz)}
}

// Index returns the flat offset of (i, j, k).
func (v *Volume) Index(i, j, k int) int { return (i*v.NY+j)*v.NZ + k }

// At returns the value at (i, j, k).
func (v *Volume) At(i, j, k int) float64 { return v.Data[v.Index(i, j, k)] }

// Set stores x at (i, j, k).
func (v *Volume) Set(i, j, k int, x float64) { v.Data[v.Index(i, j, k)] = x }

// Dims returns the lattice shape.
func (v *Volume) Dims() (nx, ny, nz int) { return v.NX, v.NY, v.NZ }

// Validate checks that Data matches the declared shape.
func (v *Volume) Validate() error {
	if v.NX <= 0 || v.NY <= 0 || v.NZ <= 0 {
		return fmt.Errorf("volume shape %dx%dx%d must be positive", v.NX, v.NY, v.NZ)
	}
	if len(v.Data) != v.NX*v.NY*v.NZ {
		return fmt.Errorf("volume data length %d does not match shape %dx%dx%d", len(v.Data), v.NX, v.NY, v.NZ)
	}
	return nil
}

// Extrude repeats a lateral field across nz identical layers.
func Extrude(m *mat.Dense, nz int) *Volume {
	nx, ny := m.Dims()
	v := NewVolume(nx, ny, nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			x := m.At(i, j)
			for k := 0; k < nz; k++ {
				v.Set(i, j, k, x)
			}
		}
	}
	return v
}

// Layer returns z layer k as a lateral matrix.
func (v *Volume) Layer(k int) *mat.Dense {
	m := mat.NewDense(v.NX, v.NY, nil)
	for i := 0; i < v.NX; i++ {
		for j := 0; j < v.NY; j++ {
			m.Set(i, j, v.At(i, j, k))
		}
	}
	return m
}

// Range returns the minimum and maximum value.
func (v *Volume) Range() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	return floats.Min(v.Data), floats.Max(v.Data)
}

// Mean returns the arithmetic mean.
func (v *Volume) Mean() float64 {
	if len(v.Data) == 0 {
		return 0
	}
	return floats.Sum(v.Data) / float64(len(v.Data))
}

// Map returns a new volume with f applied element-wise.
func (v *Volume) Map(f func(float64) float64) *Volume {
	out := NewVolume(v.NX, v.NY, v.NZ)
	for i, x := range v.Data {
		out.Data[i] = f(x)
	}
	return out
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	return &Volume{NX: v.NX, NY: v.NY, NZ: v.NZ, Data: append([]float64(nil), v.Data...)}
}
